// Package ollama embeds text with a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/ollama/ollama/api"

	"github.com/becomeliminal/nim-recall/memory"
)

// DefaultHost is used when neither Config.Host nor OLLAMA_HOST is set.
const DefaultHost = "http://localhost:11434"

// Config for the Ollama embedder.
type Config struct {
	Host       string
	Model      string // defaults to nomic-embed-text
	Dimensions int    // defaults to 768
	HTTPClient *http.Client
}

// Embedder implements memory.Embedder. Local inference is free, so
// CostUnits is always 0.
type Embedder struct {
	client *api.Client
	model  string
	dims   int
}

var _ memory.Embedder = (*Embedder)(nil)

// New creates an Ollama embedder.
func New(cfg Config) (*Embedder, error) {
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 768
	}
	host := cfg.Host
	if host == "" {
		host = DefaultHost
		if env := os.Getenv("OLLAMA_HOST"); env != "" {
			host = env
		}
	}
	uri, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Embedder{
		client: api.NewClient(uri, httpClient),
		model:  cfg.Model,
		dims:   cfg.Dimensions,
	}, nil
}

// Embed converts text to a vector.
func (e *Embedder) Embed(ctx context.Context, text string) (memory.Embedding, error) {
	resp, err := e.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:  e.model,
		Prompt: text,
	})
	if err != nil {
		return memory.Embedding{}, fmt.Errorf("ollama embeddings: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return memory.Embedding{}, fmt.Errorf("no embedding returned")
	}
	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	return memory.Embedding{Vector: vec}, nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dims
}
