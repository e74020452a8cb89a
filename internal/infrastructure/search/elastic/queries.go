package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/minknguyen/versegrep/internal/core/domain"
)

// maxExcludeClauses bounds the must_not filter; Elasticsearch rejects
// queries with too many clauses and callers dedup beyond it anyway.
const maxExcludeClauses = 50

func (c *Client) PhraseSearch(ctx context.Context, phrase string, slop, limit int, exclude []string) ([]domain.SentenceHit, error) {
	query := map[string]any{
		"bool": map[string]any{
			"must": []map[string]any{
				{
					"match_phrase": map[string]any{
						"text": map[string]any{
							"query": phrase,
							"slop":  slop,
						},
					},
				},
			},
			"must_not": excludeClauses(exclude),
		},
	}
	return c.search(ctx, query, limit)
}

func (c *Client) TermSearch(ctx context.Context, terms []string, allRequired bool, limit int, exclude []string) ([]domain.SentenceHit, error) {
	operator := "or"
	if allRequired {
		operator = "and"
	}
	query := map[string]any{
		"bool": map[string]any{
			"must": []map[string]any{
				{
					"match": map[string]any{
						"text": map[string]any{
							"query":    strings.Join(terms, " "),
							"operator": operator,
						},
					},
				},
			},
			"must_not": excludeClauses(exclude),
		},
	}
	return c.search(ctx, query, limit)
}

func (c *Client) HybridSearch(ctx context.Context, terms []string, vector []float32, limit int, exclude []string) ([]domain.SentenceHit, error) {
	textQuery := map[string]any{
		"bool": map[string]any{
			"must": []map[string]any{
				{
					"match": map[string]any{
						"text": map[string]any{
							"query":    strings.Join(terms, " "),
							"operator": "and",
						},
					},
				},
			},
			"must_not": excludeClauses(exclude),
		},
	}
	return c.search(ctx, scriptScore(textQuery, vector), limit)
}

func (c *Client) SemanticSearch(ctx context.Context, vector []float32, limit int, exclude []string) ([]domain.SentenceHit, error) {
	baseQuery := map[string]any{
		"bool": map[string]any{
			"must":     []map[string]any{{"match_all": map[string]any{}}},
			"must_not": excludeClauses(exclude),
		},
	}
	return c.search(ctx, scriptScore(baseQuery, vector), limit)
}

// scriptScore wraps a query so hits are ranked by cosine similarity to
// the stored embedding. The +1.0 keeps scores positive as required by
// Elasticsearch.
func scriptScore(query map[string]any, vector []float32) map[string]any {
	return map[string]any{
		"script_score": map[string]any{
			"query": query,
			"script": map[string]any{
				"source": "cosineSimilarity(params.query_vector, 'embedding') + 1.0",
				"params": map[string]any{"query_vector": vector},
			},
		},
	}
}

// excludeClauses builds must_not match_phrase filters for texts already
// returned to the caller.
func excludeClauses(exclude []string) []map[string]any {
	if len(exclude) > maxExcludeClauses {
		exclude = exclude[:maxExcludeClauses]
	}
	out := make([]map[string]any, 0, len(exclude))
	for _, text := range exclude {
		if text == "" {
			continue
		}
		out = append(out, map[string]any{
			"match_phrase": map[string]any{
				"text": map[string]any{"query": text},
			},
		})
	}
	return out
}

func (c *Client) search(ctx context.Context, query map[string]any, limit int) ([]domain.SentenceHit, error) {
	if limit <= 0 {
		return nil, nil
	}
	reqBody := map[string]any{
		"size":    limit,
		"query":   query,
		"_source": []string{"text", "level", "sentence_index"},
	}

	url := fmt.Sprintf("%s/%s/_search", c.baseURL, c.index)
	resp, err := c.postJSON(ctx, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("elasticsearch search status: %s", resp.Status)
	}

	var searchResp struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source struct {
					Text          string `json:"text"`
					Level         int    `json:"level"`
					SentenceIndex int    `json:"sentence_index"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.SentenceHit, 0, len(searchResp.Hits.Hits))
	for _, hit := range searchResp.Hits.Hits {
		out = append(out, domain.SentenceHit{
			Text:          hit.Source.Text,
			DocLevel:      hit.Source.Level,
			Score:         hit.Score,
			SentenceIndex: hit.Source.SentenceIndex,
		})
	}
	return out, nil
}
