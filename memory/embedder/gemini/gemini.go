// Package gemini embeds text with Google's Gemini embedding models.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/becomeliminal/nim-recall/memory"
)

// Embedder implements memory.Embedder. The API bills per request, so each
// call costs one unit.
type Embedder struct {
	client *genai.Client
	model  *genai.EmbeddingModel
	dims   int
}

var _ memory.Embedder = (*Embedder)(nil)

// Config for the Gemini embedder.
type Config struct {
	APIKey     string
	Model      string // defaults to text-embedding-004
	Dimensions int    // defaults to 768
}

// New creates a Gemini embedder. Close releases the underlying client.
func New(ctx context.Context, cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 768
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	em := client.EmbeddingModel(cfg.Model)
	em.TaskType = genai.TaskTypeRetrievalQuery

	return &Embedder{
		client: client,
		model:  em,
		dims:   cfg.Dimensions,
	}, nil
}

// Embed converts text to a vector.
func (e *Embedder) Embed(ctx context.Context, text string) (memory.Embedding, error) {
	res, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return memory.Embedding{}, fmt.Errorf("gemini embed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return memory.Embedding{}, fmt.Errorf("no embedding returned")
	}
	return memory.Embedding{Vector: res.Embedding.Values, CostUnits: 1}, nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dims
}

// Close releases the client.
func (e *Embedder) Close() error {
	return e.client.Close()
}
