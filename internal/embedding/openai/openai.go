package openai

import (
	"context"
	"fmt"
	"sync"

	goopenai "github.com/sashabaranov/go-openai"

	"pdfqa/internal/domain"
	"pdfqa/internal/llm"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = string(goopenai.AdaEmbeddingV2)

// EmbeddingsAPI is the subset of the go-openai client used for embeddings.
type EmbeddingsAPI interface {
	CreateEmbeddings(ctx context.Context, conv goopenai.EmbeddingRequestConverter) (goopenai.EmbeddingResponse, error)
}

// Client is an OpenAI-compatible embeddings client implementing domain.Embedder.
// Every Embed call is sent as a single batch request.
type Client struct {
	api   EmbeddingsAPI
	model string

	mu        sync.Mutex
	dimension int
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	llm.ClientConfig
	Model string
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	api, err := llm.NewClient(cfg.ClientConfig)
	if err != nil {
		return nil, err
	}
	return New(api, cfg.Model), nil
}

// New wraps an existing API client.
func New(api EmbeddingsAPI, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{api: api, model: model}
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "remote:" + c.model }

// Dimension returns the dimensionality learned from the first response, or 0
// before any successful call.
func (c *Client) Dimension() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dimension
}

// Embed returns one vector per text in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	resp, err := c.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: texts,
		Model: goopenai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create embeddings: %w", domain.ErrRemoteService, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: embeddings response has %d vectors for %d inputs", domain.ErrRemoteService, len(resp.Data), len(texts))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	dim := c.dimension
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) || out[d.Index] != nil {
			return nil, fmt.Errorf("%w: embeddings response has invalid index %d", domain.ErrRemoteService, d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at index %d", domain.ErrRemoteService, d.Index)
		}
		if dim == 0 {
			dim = len(d.Embedding)
		}
		if len(d.Embedding) != dim {
			return nil, fmt.Errorf("%w: embedding at index %d has %d dimensions, want %d", domain.ErrRemoteService, d.Index, len(d.Embedding), dim)
		}
		out[d.Index] = d.Embedding
	}
	c.dimension = dim
	return out, nil
}
