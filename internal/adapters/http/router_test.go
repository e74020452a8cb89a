package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/minknguyen/versegrep/internal/core/domain"
	"github.com/minknguyen/versegrep/internal/core/ports"
)

type qaServiceFake struct {
	result       *ports.QAResult
	err          error
	lastAsk      ports.AskParams
	lastContinue ports.ContinueParams
}

func (f *qaServiceFake) Ask(_ context.Context, params ports.AskParams) (*ports.QAResult, error) {
	f.lastAsk = params
	return f.result, f.err
}

func (f *qaServiceFake) Continue(_ context.Context, params ports.ContinueParams) (*ports.QAResult, error) {
	f.lastContinue = params
	return f.result, f.err
}

type ingestorFake struct {
	upload *domain.Upload
	err    error
}

func (f *ingestorFake) Upload(_ context.Context, filename, _ string, _ io.Reader) (*domain.Upload, error) {
	if f.err != nil {
		return nil, f.err
	}
	up := *f.upload
	up.Filename = filename
	return &up, nil
}

type adminFake struct {
	upload  *domain.Upload
	stats   *domain.CorpusStats
	deleted int
	err     error
}

func (f *adminFake) ReplaceCorpus(context.Context, string, string, io.Reader) (*domain.Upload, error) {
	return f.upload, f.err
}

func (f *adminFake) DeleteCorpus(context.Context) (int, error) {
	return f.deleted, f.err
}

func (f *adminFake) Stats(context.Context) (*domain.CorpusStats, error) {
	return f.stats, f.err
}

type sessionCountFake struct{ count int }

func (f *sessionCountFake) Create(string, []string, []int) *domain.RetrievalSession { return nil }
func (f *sessionCountFake) Get(string) (*domain.RetrievalSession, bool)             { return nil, false }
func (f *sessionCountFake) Delete(string)                                           {}
func (f *sessionCountFake) SweepExpired()                                           {}
func (f *sessionCountFake) ActiveCount() int                                        { return f.count }
func (f *sessionCountFake) ClearAll()                                               {}

func newTestHandler(qa *qaServiceFake, ingestor *ingestorFake, admin *adminFake) http.Handler {
	router := NewRouter(qa, ingestor, admin, &sessionCountFake{count: 2}, nil, RouterOptions{})
	return router.Handler()
}

func TestHealthEndpoint(t *testing.T) {
	admin := &adminFake{stats: &domain.CorpusStats{TotalDocuments: 42, Ready: true}}
	handler := newTestHandler(&qaServiceFake{}, &ingestorFake{}, admin)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Fatalf("status = %v", body["status"])
	}
	if body["search_backend_connected"] != true {
		t.Fatalf("search_backend_connected = %v", body["search_backend_connected"])
	}
	if body["documents_indexed"].(float64) != 42 {
		t.Fatalf("documents_indexed = %v", body["documents_indexed"])
	}
	if body["ready"] != true {
		t.Fatalf("ready = %v", body["ready"])
	}
	if body["active_sessions"].(float64) != 2 {
		t.Fatalf("active_sessions = %v", body["active_sessions"])
	}
}

func TestHealthEndpointDegradedStates(t *testing.T) {
	cases := []struct {
		name      string
		admin     *adminFake
		status    string
		connected bool
	}{
		{"backend down", &adminFake{err: errors.New("connection refused")}, "unhealthy", false},
		{"empty corpus", &adminFake{stats: &domain.CorpusStats{}}, "degraded", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestHandler(&qaServiceFake{}, &ingestorFake{}, tc.admin)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["status"] != tc.status {
				t.Fatalf("status = %v, want %s", body["status"], tc.status)
			}
			if body["search_backend_connected"] != tc.connected {
				t.Fatalf("search_backend_connected = %v, want %v", body["search_backend_connected"], tc.connected)
			}
			if body["ready"] != false {
				t.Fatalf("ready = %v, want false", body["ready"])
			}
		})
	}
}

func TestAskHappyPath(t *testing.T) {
	qa := &qaServiceFake{
		result: &ports.QAResult{
			SessionID: "s1",
			Answer:    "an answer",
			Sources: []domain.RetrievedSentence{
				{Text: "a source sentence", RetrievalLevel: 0, SourceLabel: "keyword combination"},
			},
			CurrentLevel:       0,
			MaxLevel:           domain.MaxRetrievalLevel,
			CanContinue:        true,
			SentencesRetrieved: 1,
		},
	}
	handler := newTestHandler(qa, &ingestorFake{}, &adminFake{})

	payload := `{"query":"what is grace","limit":5,"buffer_percentage":0.3,"enabled_levels":[0,1]}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(payload)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if qa.lastAsk.Query != "what is grace" || qa.lastAsk.Limit != 5 {
		t.Fatalf("params = %+v", qa.lastAsk)
	}
	if len(qa.lastAsk.EnabledLevels) != 2 {
		t.Fatalf("enabled levels = %v", qa.lastAsk.EnabledLevels)
	}

	var body qaResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.SessionID != "s1" || body.Answer != "an answer" || !body.CanContinue {
		t.Fatalf("body = %+v", body)
	}
	if len(body.SourceSentences) != 1 || body.SourceSentences[0].Text != "a source sentence" {
		t.Fatalf("sources = %v", body.SourceSentences)
	}
	if body.MaxLevel != domain.MaxRetrievalLevel {
		t.Fatalf("max level = %d", body.MaxLevel)
	}
}

func TestAskErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", domain.ErrInvalidInput, http.StatusBadRequest},
		{"no documents", domain.ErrNoDocuments, http.StatusNotFound},
		{"no matches", domain.ErrNoMatches, http.StatusNotFound},
		{"session not found", domain.ErrSessionNotFound, http.StatusNotFound},
		{"temporary", domain.ErrTemporary, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			qa := &qaServiceFake{err: fmt.Errorf("wrapped: %w", tc.err)}
			handler := newTestHandler(qa, &ingestorFake{}, &adminFake{})

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"query":"q"}`)))

			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestAskRejectsBadJSONAndMethod(t *testing.T) {
	handler := newTestHandler(&qaServiceFake{}, &ingestorFake{}, &adminFake{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ask", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("method status = %d", rec.Code)
	}
}

func TestContinueRequiresSessionID(t *testing.T) {
	handler := newTestHandler(&qaServiceFake{}, &ingestorFake{}, &adminFake{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/continue", strings.NewReader(`{"limit":5}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestContinuePassesParams(t *testing.T) {
	qa := &qaServiceFake{result: &ports.QAResult{SessionID: "s1", Answer: "more"}}
	handler := newTestHandler(qa, &ingestorFake{}, &adminFake{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/continue",
		strings.NewReader(`{"session_id":"s1","limit":3,"custom_prompt":"shorter"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if qa.lastContinue.SessionID != "s1" || qa.lastContinue.Limit != 3 || qa.lastContinue.CustomPrompt != "shorter" {
		t.Fatalf("params = %+v", qa.lastContinue)
	}
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestUploadAccepted(t *testing.T) {
	ingestor := &ingestorFake{upload: &domain.Upload{ID: "u1", Status: domain.UploadStatusUploaded}}
	handler := newTestHandler(&qaServiceFake{}, ingestor, &adminFake{})

	body, contentType := multipartBody(t, "psalms.txt", "content")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var up domain.Upload
	if err := json.Unmarshal(rec.Body.Bytes(), &up); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if up.ID != "u1" || up.Filename != "psalms.txt" {
		t.Fatalf("upload = %+v", up)
	}
}

func TestUploadRequiresFileField(t *testing.T) {
	handler := newTestHandler(&qaServiceFake{}, &ingestorFake{}, &adminFake{})

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("plain body"))
	req.Header.Set("Content-Type", "text/plain")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDeleteDocuments(t *testing.T) {
	admin := &adminFake{deleted: 7}
	handler := newTestHandler(&qaServiceFake{}, &ingestorFake{}, admin)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/documents", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["deleted"].(float64) != 7 {
		t.Fatalf("deleted = %v", body["deleted"])
	}
}

func TestDocumentsCount(t *testing.T) {
	admin := &adminFake{stats: &domain.CorpusStats{TotalDocuments: 420, LevelsAvailable: 3, Ready: true}}
	handler := newTestHandler(&qaServiceFake{}, &ingestorFake{}, admin)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/count", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats domain.CorpusStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if stats.TotalDocuments != 420 || stats.LevelsAvailable != 3 || !stats.Ready {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestRequestIDHeaderSet(t *testing.T) {
	handler := newTestHandler(&qaServiceFake{}, &ingestorFake{}, &adminFake{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}
