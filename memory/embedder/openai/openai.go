// Package openai embeds text with the OpenAI embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/becomeliminal/nim-recall/memory"
)

// Config for the OpenAI embedder.
type Config struct {
	APIKey string
	// BaseURL overrides the API endpoint, e.g. for Azure proxies or tests.
	BaseURL string
	// Model defaults to text-embedding-3-small.
	Model openai.EmbeddingModel
	// Dimensions defaults to 1536, the native size of the small model.
	Dimensions int
}

// Embedder implements memory.Embedder. CostUnits is the token count the API
// reports for the request.
type Embedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dims   int
}

var _ memory.Embedder = (*Embedder)(nil)

// New creates an OpenAI embedder.
func New(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("API key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = openai.SmallEmbedding3
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 1536
	}

	return &Embedder{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
		dims:   cfg.Dimensions,
	}, nil
}

// Embed converts text to a vector.
func (e *Embedder) Embed(ctx context.Context, text string) (memory.Embedding, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return memory.Embedding{}, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return memory.Embedding{}, fmt.Errorf("no embedding returned")
	}
	return memory.Embedding{
		Vector:    resp.Data[0].Embedding,
		CostUnits: float64(resp.Usage.TotalTokens),
	}, nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dims
}
