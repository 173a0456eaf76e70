// Package ollama provides an Ollama-backed embedder over the local HTTP
// API. It satisfies the engine's Embedder surface: deterministic per
// model version, one vector per text, and no internal retries.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/EarthmarkAI/earthmark-mvp/engine/domain"
)

const (
	// DefaultModel is the embedding model the engine is tuned for.
	DefaultModel = "nomic-embed-text"
	// DefaultDims is the vector dimension of DefaultModel.
	DefaultDims = 768
)

// EmbedClient calls Ollama's /api/embeddings endpoint.
type EmbedClient struct {
	baseURL string
	model   string
	dims    int
	client  *http.Client
	limiter *rate.Limiter
}

// Option configures an EmbedClient.
type Option func(*EmbedClient)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *EmbedClient) { c.client = hc }
}

// WithRateLimit caps requests per second against the Ollama host.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *EmbedClient) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithDims overrides the expected vector dimension for non-default models.
func WithDims(dims int) Option {
	return func(c *EmbedClient) { c.dims = dims }
}

// NewEmbedClient creates an embedding client. Empty model selects
// DefaultModel.
func NewEmbedClient(baseURL, model string, opts ...Option) *EmbedClient {
	if model == "" {
		model = DefaultModel
	}
	c := &EmbedClient{
		baseURL: baseURL,
		model:   model,
		dims:    DefaultDims,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dims returns the vector dimension of the configured model.
func (c *EmbedClient) Dims() int { return c.dims }

type embedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResp struct {
	Embedding []float64 `json:"embedding"`
}

func (c *EmbedClient) embed(ctx context.Context, text string) ([]float32, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, unavailable(err)
		}
	}

	body, _ := json.Marshal(embedReq{Model: c.model, Prompt: text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, unavailable(fmt.Errorf("status %d", resp.StatusCode))
	}

	var result embedResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, unavailable(err)
	}
	if len(result.Embedding) != c.dims {
		return nil, fmt.Errorf("ollama: model %s returned %d dims, expected %d: %w",
			c.model, len(result.Embedding), c.dims, domain.ErrDimensionMismatch)
	}

	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

// EmbedBatch embeds each text sequentially, preserving order. Ollama's
// embeddings endpoint takes one prompt per call, so the batch is a loop;
// the rate limiter spaces the calls.
func (c *EmbedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d]: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func unavailable(err error) error {
	return fmt.Errorf("ollama embed: %w", errors.Join(domain.ErrEmbedderUnavailable, err))
}
