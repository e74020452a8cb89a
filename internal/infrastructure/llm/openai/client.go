package openai

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/minknguyen/versegrep/internal/infrastructure/resilience"
)

// Client talks to an OpenAI-compatible API (chat completions plus
// embeddings). All calls run through the resilience executor: transient
// failures retry with backoff, repeated failures open the breaker.
type Client struct {
	baseURL    string
	apiKey     string
	chatModel  string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, apiKey, chatModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		chatModel:  chatModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.client.chat(ctx, prompt, 0.7)
}

// GenerateJSON asks for machine-readable output; callers still parse
// permissively because models wrap JSON in prose under load.
func (g *Generator) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return g.client.chat(ctx, prompt, 0.0)
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}
	var response struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	err := e.client.execute(ctx, "openai.embed", func(ctx context.Context) error {
		return e.client.postJSON(ctx, "/v1/embeddings", request, &response, "embed")
	})
	if err != nil {
		return nil, wrapTemporaryIfNeeded("embed", err)
	}
	if len(response.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings/inputs mismatch: %d/%d", len(response.Data), len(texts))
	}

	sort.Slice(response.Data, func(a, b int) bool { return response.Data[a].Index < response.Data[b].Index })
	out := make([][]float32, len(response.Data))
	for i, item := range response.Data {
		out[i] = item.Embedding
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

func (c *Client) chat(ctx context.Context, prompt string, temperature float64) (string, error) {
	request := map[string]any{
		"model":       c.chatModel,
		"temperature": temperature,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}
	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	err := c.execute(ctx, "openai.chat", func(ctx context.Context) error {
		return c.postJSON(ctx, "/v1/chat/completions", request, &response, "chat")
	})
	if err != nil {
		return "", wrapTemporaryIfNeeded("chat", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("empty chat completion result")
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, operation, fn, classifyOpenAIError)
}
