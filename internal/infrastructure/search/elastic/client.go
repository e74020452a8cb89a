package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/minknguyen/versegrep/internal/core/domain"
)

// Client talks to Elasticsearch over its JSON REST API. One index holds
// one sentence per document, with a dense_vector field for cosine
// similarity scoring.
type Client struct {
	baseURL    string
	index      string
	dims       int
	httpClient *http.Client

	ensureMu     sync.Mutex
	ensuredIndex bool
}

func New(baseURL, index string, dims int) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		index:      index,
		dims:       dims,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) BulkInsert(ctx context.Context, records []domain.SentenceRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := c.ensureIndex(ctx); err != nil {
		return err
	}

	var body bytes.Buffer
	action := fmt.Sprintf(`{"index":{"_index":%q}}`, c.index)
	enc := json.NewEncoder(&body)
	for _, rec := range records {
		body.WriteString(action)
		body.WriteByte('\n')
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("marshal bulk line: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/_bulk?refresh=wait_for", &body)
	if err != nil {
		return fmt.Errorf("create bulk request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("elasticsearch bulk request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("elasticsearch bulk status: %s", resp.Status)
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if bulkResp.Errors {
		return fmt.Errorf("elasticsearch bulk reported item errors")
	}
	return nil
}

func (c *Client) DeleteAll(ctx context.Context) error {
	reqBody := map[string]any{"query": map[string]any{"match_all": map[string]any{}}}
	url := fmt.Sprintf("%s/%s/_delete_by_query?refresh=true&conflicts=proceed", c.baseURL, c.index)

	resp, err := c.postJSON(ctx, url, reqBody)
	if err != nil {
		return fmt.Errorf("elasticsearch delete request: %w", err)
	}
	defer resp.Body.Close()

	// A missing index means there is nothing to delete.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("elasticsearch delete status: %s", resp.Status)
	}
	return nil
}

func (c *Client) Count(ctx context.Context) (int, error) {
	url := fmt.Sprintf("%s/%s/_count", c.baseURL, c.index)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create count request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("elasticsearch count request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("elasticsearch count status: %s", resp.Status)
	}

	var countResp struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&countResp); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return countResp.Count, nil
}

func (c *Client) ensureIndex(ctx context.Context) error {
	c.ensureMu.Lock()
	if c.ensuredIndex {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"text": map[string]any{"type": "text"},
				"embedding": map[string]any{
					"type": "dense_vector",
					"dims": c.dims,
				},
				"level":          map[string]any{"type": "integer"},
				"sentence_index": map[string]any{"type": "integer"},
				"source_file_id": map[string]any{"type": "keyword"},
			},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal create index body: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, c.index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create index request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("elasticsearch ensure index request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusBadRequest {
		return fmt.Errorf("elasticsearch ensure index status: %s", resp.Status)
	}
	if resp.StatusCode == http.StatusBadRequest {
		// 400 with resource_already_exists_exception is the normal
		// already-created case; anything else is a real mapping error.
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if !strings.Contains(string(raw), "resource_already_exists_exception") {
			return fmt.Errorf("elasticsearch ensure index status: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
		}
	}

	c.ensureMu.Lock()
	c.ensuredIndex = true
	c.ensureMu.Unlock()
	return nil
}

func (c *Client) postJSON(ctx context.Context, url string, reqBody any) (*http.Response, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}
