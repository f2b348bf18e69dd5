package memory

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/becomeliminal/nim-recall/core"
	"github.com/becomeliminal/nim-recall/observe"
)

// Manager is the CRUD surface for user-declared memories.
//
// Store embeds "key: value" and upserts on (owner, key); it never creates a
// second row for a key. Write failures are always returned: losing an
// explicit "remember this" silently is worse than surfacing an error.
type Manager struct {
	store    Store
	embedder Embedder
	config   *Config
	obs      *observe.Observer
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver sets the logger/tracer.
func WithObserver(o *observe.Observer) Option {
	return func(m *Manager) {
		m.obs = o
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a new Manager.
func NewManager(store Store, embedder Embedder, config *Config, opts ...Option) *Manager {
	if config == nil {
		config = DefaultConfig
	}
	m := &Manager{
		store:    store,
		embedder: embedder,
		config:   config,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.obs = observe.Or(m.obs)
	return m
}

// Store saves (or overwrites) the memory key for ownerID. An empty category
// falls back to Config.DefaultCategory.
func (m *Manager) Store(ctx context.Context, ownerID, key, value string, category Category) (*Memory, error) {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if category == "" {
		category = m.config.DefaultCategory
	}
	if err := m.validate(ownerID, key, value, category); err != nil {
		return nil, err
	}

	ctx, span := m.obs.StartSpan(ctx, "memory.Store", "owner_id", ownerID, "key", key)
	defer span.End()

	now := m.now().UTC()
	mem := Memory{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Key:       key,
		Value:     value,
		Category:  category,
		CreatedAt: now,
		UpdatedAt: now,
	}

	emb, err := m.embedder.Embed(ctx, mem.Text())
	if err != nil {
		observe.Fail(span, err)
		return nil, core.MemoryWriteFailure("store memory", fmt.Errorf("embed memory: %w", err))
	}
	mem.Embedding = emb.Vector

	stored, err := m.store.Upsert(ctx, mem)
	if err != nil {
		observe.Fail(span, err)
		m.obs.Log().Error().Err(err).Str("owner_id", ownerID).Str("key", key).Msg("memory upsert failed")
		return nil, core.MemoryWriteFailure("store memory", err)
	}

	m.obs.Log().Info().
		Str("owner_id", ownerID).
		Str("key", key).
		Str("category", string(category)).
		Str("memory_id", stored.ID).
		Msg("memory stored")
	return stored, nil
}

// Get returns one memory owned by ownerID.
func (m *Manager) Get(ctx context.Context, ownerID, id string) (*Memory, error) {
	if ownerID == "" || id == "" {
		return nil, core.InvalidInput("get memory", "owner id and memory id are required")
	}
	return m.store.Get(ctx, ownerID, id)
}

// List returns all of ownerID's memories, most recently updated first.
func (m *Manager) List(ctx context.Context, ownerID string) ([]Memory, error) {
	if ownerID == "" {
		return nil, core.InvalidInput("list memories", "owner id is required")
	}
	mems, err := m.store.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	return mems, nil
}

// Delete removes a memory. Unknown or foreign ids are a successful no-op.
func (m *Manager) Delete(ctx context.Context, ownerID, id string) error {
	if ownerID == "" || id == "" {
		return core.InvalidInput("delete memory", "owner id and memory id are required")
	}
	if err := m.store.Delete(ctx, ownerID, id); err != nil {
		return core.MemoryWriteFailure("delete memory", err)
	}
	m.obs.Log().Info().Str("owner_id", ownerID).Str("memory_id", id).Msg("memory deleted")
	return nil
}

func (m *Manager) validate(ownerID, key, value string, category Category) error {
	switch {
	case ownerID == "":
		return core.InvalidInput("store memory", "owner id is required")
	case key == "":
		return core.InvalidInput("store memory", "key is required")
	case value == "":
		return core.InvalidInput("store memory", "value is required")
	case !category.Valid():
		return core.InvalidInput("store memory", "unknown category %q", category)
	case m.config.MaxKeyLength > 0 && utf8.RuneCountInString(key) > m.config.MaxKeyLength:
		return core.InvalidInput("store memory", "key longer than %d characters", m.config.MaxKeyLength)
	case m.config.MaxValueLength > 0 && utf8.RuneCountInString(value) > m.config.MaxValueLength:
		return core.InvalidInput("store memory", "value longer than %d characters", m.config.MaxValueLength)
	}
	return nil
}

// Config holds Manager configuration.
type Config struct {
	// DefaultCategory is used when Store is called without a category.
	// Default: fact.
	DefaultCategory Category

	// MaxKeyLength caps key length in characters. Zero disables the check.
	// Default: 100.
	MaxKeyLength int

	// MaxValueLength caps value length in characters. Zero disables the check.
	// Default: 2000.
	MaxValueLength int
}

// DefaultConfig returns sensible defaults.
var DefaultConfig = &Config{
	DefaultCategory: CategoryFact,
	MaxKeyLength:    100,
	MaxValueLength:  2000,
}
