package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync"

	"github.com/becomeliminal/nim-recall/memory"
)

// MockEmbedder is a deterministic embedder for tests and local runs.
// Unknown texts get a hash-seeded unit vector; texts registered with
// WithVector return that vector instead, which lets tests control
// similarities exactly.
type MockEmbedder struct {
	dimensions  int
	costPerCall float64
	err         error

	mu      sync.Mutex
	vectors map[string][]float32
	calls   int
}

// Option configures a MockEmbedder.
type Option func(*MockEmbedder)

// WithDimensions overrides the default of 384 (all-MiniLM-L6-v2).
func WithDimensions(n int) Option {
	return func(m *MockEmbedder) {
		m.dimensions = n
	}
}

// WithVector pins the embedding returned for text.
func WithVector(text string, vec []float32) Option {
	return func(m *MockEmbedder) {
		m.vectors[text] = vec
	}
}

// WithCost sets the cost units reported per call.
func WithCost(units float64) Option {
	return func(m *MockEmbedder) {
		m.costPerCall = units
	}
}

// WithError makes every call fail with err.
func WithError(err error) Option {
	return func(m *MockEmbedder) {
		m.err = err
	}
}

// New creates a new mock embedder.
func New(opts ...Option) *MockEmbedder {
	m := &MockEmbedder{
		dimensions: 384,
		vectors:    make(map[string][]float32),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Embed returns the pinned vector for text, or a deterministic one derived
// from its hash.
func (m *MockEmbedder) Embed(ctx context.Context, text string) (memory.Embedding, error) {
	m.mu.Lock()
	m.calls++
	pinned, ok := m.vectors[text]
	m.mu.Unlock()

	if m.err != nil {
		return memory.Embedding{}, m.err
	}
	if err := ctx.Err(); err != nil {
		return memory.Embedding{}, err
	}
	if ok {
		return memory.Embedding{Vector: append([]float32(nil), pinned...), CostUnits: m.costPerCall}, nil
	}
	return memory.Embedding{Vector: hashVector(text, m.dimensions), CostUnits: m.costPerCall}, nil
}

// Dimensions returns the embedding size.
func (m *MockEmbedder) Dimensions() int {
	return m.dimensions
}

// Calls returns how many times Embed was called.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func hashVector(text string, dims int) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dims)
	for i := range vec {
		// LCG step, mapped into [-1, 1]
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return memory.Normalize(vec)
}
