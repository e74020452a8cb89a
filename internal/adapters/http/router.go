package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/minknguyen/versegrep/internal/core/domain"
	"github.com/minknguyen/versegrep/internal/core/ports"
	"github.com/minknguyen/versegrep/internal/observability/metrics"
)

type Router struct {
	service  string
	qa       ports.QuestionService
	ingestor ports.CorpusIngestor
	admin    ports.CorpusAdmin
	sessions ports.SessionStore
	metrics  *metrics.HTTPServerMetrics

	rateLimitRPS   float64
	rateLimitBurst int
	maxConcurrent  int
}

type RouterOptions struct {
	Service        string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxConcurrent  int
}

func NewRouter(
	qa ports.QuestionService,
	ingestor ports.CorpusIngestor,
	admin ports.CorpusAdmin,
	sessions ports.SessionStore,
	m *metrics.HTTPServerMetrics,
	options RouterOptions,
) *Router {
	service := options.Service
	if service == "" {
		service = "api"
	}
	return &Router{
		service:        service,
		qa:             qa,
		ingestor:       ingestor,
		admin:          admin,
		sessions:       sessions,
		metrics:        m,
		rateLimitRPS:   options.RateLimitRPS,
		rateLimitBurst: options.RateLimitBurst,
		maxConcurrent:  options.MaxConcurrent,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", rt.health)
	mux.HandleFunc("/ask", rt.ask)
	mux.HandleFunc("/continue", rt.continueAsk)
	mux.HandleFunc("/upload", rt.upload)
	mux.HandleFunc("/replace", rt.replace)
	mux.HandleFunc("/documents", rt.documents)
	mux.HandleFunc("/documents/count", rt.documentsCount)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxConcurrent, 5*time.Second)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

type askRequest struct {
	Query         string `json:"query"`
	Limit         int    `json:"limit"`
	CustomPrompt  string `json:"custom_prompt"`
	EnabledLevels []int  `json:"enabled_levels"`
	// Accepted for request compatibility; the semantic quota supersedes
	// buffer-based over-fetching.
	BufferPercentage float64 `json:"buffer_percentage"`
}

type continueRequest struct {
	SessionID    string `json:"session_id"`
	Limit        int    `json:"limit"`
	CustomPrompt string `json:"custom_prompt"`
}

type qaResponse struct {
	SessionID          string                     `json:"session_id"`
	Answer             string                     `json:"answer"`
	SourceSentences    []domain.RetrievedSentence `json:"source_sentences"`
	CurrentLevel       int                        `json:"current_level"`
	MaxLevel           int                        `json:"max_level"`
	CanContinue        bool                       `json:"can_continue"`
	SentencesRetrieved int                        `json:"sentences_retrieved"`
	ContinueCount      int                        `json:"continue_count"`
}

// health reports backend connectivity and corpus readiness alongside the
// session count. An unreachable backend degrades the status instead of
// failing the endpoint.
func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"active_sessions": rt.sessions.ActiveCount(),
	}

	stats, err := rt.admin.Stats(r.Context())
	switch {
	case err != nil || stats == nil:
		body["status"] = "unhealthy"
		body["search_backend_connected"] = false
		body["documents_indexed"] = 0
		body["ready"] = false
	case stats.TotalDocuments == 0:
		body["status"] = "degraded"
		body["search_backend_connected"] = true
		body["documents_indexed"] = 0
		body["ready"] = false
	default:
		body["status"] = "healthy"
		body["search_backend_connected"] = true
		body["documents_indexed"] = stats.TotalDocuments
		body["ready"] = stats.Ready
	}

	writeJSON(w, http.StatusOK, body)
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	result, err := rt.qa.Ask(r.Context(), ports.AskParams{
		Query:         req.Query,
		Limit:         req.Limit,
		CustomPrompt:  req.CustomPrompt,
		EnabledLevels: req.EnabledLevels,
	})
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.observeQA("ask", result, time.Since(start))
	writeJSON(w, http.StatusOK, toQAResponse(result))
}

func (rt *Router) continueAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req continueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id is required"})
		return
	}

	start := time.Now()
	result, err := rt.qa.Continue(r.Context(), ports.ContinueParams{
		SessionID:    req.SessionID,
		Limit:        req.Limit,
		CustomPrompt: req.CustomPrompt,
	})
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.observeQA("continue", result, time.Since(start))
	writeJSON(w, http.StatusOK, toQAResponse(result))
}

func (rt *Router) upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	up, err := rt.ingestor.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, up)
}

func (rt *Router) replace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	up, err := rt.admin.ReplaceCorpus(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, up)
}

func (rt *Router) documents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	deleted, err := rt.admin.DeleteCorpus(r.Context())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (rt *Router) documentsCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	stats, err := rt.admin.Stats(r.Context())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) observeQA(endpoint string, result *ports.QAResult, duration time.Duration) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordQAObservation(
		rt.service, endpoint,
		result.CurrentLevel, result.SentencesRetrieved, result.CanContinue,
		duration,
	)
	rt.metrics.SetActiveSessions(rt.sessions.ActiveCount())
}

func toQAResponse(result *ports.QAResult) qaResponse {
	return qaResponse{
		SessionID:          result.SessionID,
		Answer:             result.Answer,
		SourceSentences:    result.Sources,
		CurrentLevel:       result.CurrentLevel,
		MaxLevel:           result.MaxLevel,
		CanContinue:        result.CanContinue,
		SentencesRetrieved: result.SentencesRetrieved,
		ContinueCount:      result.ContinueCount,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
