package memory

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Category classifies a memory.
type Category string

const (
	CategoryPreference  Category = "preference"
	CategoryFact        Category = "fact"
	CategoryInstruction Category = "instruction"
	CategoryContext     Category = "context"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryPreference, CategoryFact, CategoryInstruction, CategoryContext:
		return true
	}
	return false
}

// Memory is a user-declared fact or preference. (OwnerID, Key) is unique:
// storing the same key again updates the existing row in place.
type Memory struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Category  Category  `json:"category"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Text is the "key: value" form that gets embedded and rendered.
func (m Memory) Text() string {
	return fmt.Sprintf("%s: %s", m.Key, m.Value)
}

// Match is a memory returned from a similarity search.
type Match struct {
	Memory     Memory
	Similarity float64
}

// Searcher finds an owner's memories by vector similarity.
// Results are sorted by similarity (highest first) and all score >= threshold.
type Searcher interface {
	Search(ctx context.Context, ownerID string, vector []float32, threshold float64, limit int) ([]Match, error)
}

// Store is the memory persistence backend.
// Implementations: sqlite.Store.
type Store interface {
	Searcher

	// Upsert inserts mem or, when (OwnerID, Key) already exists, overwrites
	// Value, Category, Embedding and UpdatedAt in place. It returns the
	// stored row, including the ID and CreatedAt of an existing row.
	Upsert(ctx context.Context, mem Memory) (*Memory, error)

	// Get returns one memory. Unknown and foreign ids are core.ErrNotFound.
	Get(ctx context.Context, ownerID, id string) (*Memory, error)

	// List returns all memories of an owner, most recently updated first.
	List(ctx context.Context, ownerID string) ([]Memory, error)

	// Delete removes a memory owned by ownerID. Deleting an unknown or
	// foreign id succeeds without effect.
	Delete(ctx context.Context, ownerID, id string) error

	// Close releases resources.
	Close() error
}

// Embedding is a vector together with what it cost to produce.
type Embedding struct {
	Vector    []float32
	CostUnits float64
}

// Embedder converts text to vector embeddings.
// Implementations: mock (testing), openai, ollama, gemini, onnx (local) and
// cache, which wraps any of them.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) (Embedding, error)

	// Dimensions returns embedding vector size.
	Dimensions() int
}

// Normalize scales vec to unit length. Zero vectors are returned unchanged.
func Normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}
