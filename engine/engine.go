// Package engine is the host-facing entry point: it wires an embedder, the
// content index, the memory store and connectors into one Engine.
package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/becomeliminal/nim-recall/connector"
	"github.com/becomeliminal/nim-recall/core"
	"github.com/becomeliminal/nim-recall/memory"
	"github.com/becomeliminal/nim-recall/memory/store/chromem"
	"github.com/becomeliminal/nim-recall/observe"
	"github.com/becomeliminal/nim-recall/retrieval"
)

// ErrNoMemoryStore is returned by memory operations on an Engine built
// without WithMemoryStore.
var ErrNoMemoryStore = errors.New("memory store not configured")

// ContentStore is the writable vector index for messages and files.
// Implementations: chromem.ChromemStore.
type ContentStore interface {
	retrieval.ContentIndex
	Add(ctx context.Context, doc chromem.Document) error
	DeleteContainer(ctx context.Context, ownerID, containerID string) error
}

// Engine retrieves context for a message and manages declared memories.
// All methods are safe for concurrent use.
type Engine struct {
	embedder  memory.Embedder
	content   ContentStore         // Optional: past conversations and files
	store     memory.Store         // Optional: declared memories
	creds     connector.CredentialProvider
	conns     []connector.Connector
	extra     []retrieval.Source
	config    *retrieval.Config
	memConfig *memory.Config
	obs       *observe.Observer

	retriever *retrieval.Retriever
	memories  *memory.Manager
}

// Option configures the engine.
type Option func(*Engine)

// WithContentStore enables the message and file source and IndexContent.
func WithContentStore(s ContentStore) Option {
	return func(e *Engine) {
		e.content = s
	}
}

// WithMemoryStore enables declared memories, both as a retrieval source
// and for StoreMemory / GetMemories / DeleteMemory.
func WithMemoryStore(s memory.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithConnectors registers external connectors and their credentials.
func WithConnectors(creds connector.CredentialProvider, conns ...connector.Connector) Option {
	return func(e *Engine) {
		e.creds = creds
		e.conns = append(e.conns, conns...)
	}
}

// WithSource registers a custom retrieval source.
func WithSource(s retrieval.Source) Option {
	return func(e *Engine) {
		e.extra = append(e.extra, s)
	}
}

// WithConfig sets retrieval tunables.
func WithConfig(cfg *retrieval.Config) Option {
	return func(e *Engine) {
		e.config = cfg
	}
}

// WithMemoryConfig sets memory validation limits.
func WithMemoryConfig(cfg *memory.Config) Option {
	return func(e *Engine) {
		e.memConfig = cfg
	}
}

// WithObserver sets the logger/tracer shared by every component.
func WithObserver(o *observe.Observer) Option {
	return func(e *Engine) {
		e.obs = o
	}
}

// New creates an Engine. The embedder is required; every store and
// connector is optional and simply contributes nothing when absent.
func New(embedder memory.Embedder, opts ...Option) (*Engine, error) {
	if embedder == nil {
		return nil, core.InvalidInput("new engine", "embedder is required")
	}
	e := &Engine{embedder: embedder}
	for _, opt := range opts {
		opt(e)
	}
	if e.config == nil {
		e.config = retrieval.DefaultConfig
	}
	e.obs = observe.Or(e.obs)

	ropts := []retrieval.Option{
		retrieval.WithConfig(e.config),
		retrieval.WithObserver(e.obs),
	}
	if e.content != nil {
		ropts = append(ropts, retrieval.WithContentIndex(e.content))
	}
	if e.store != nil {
		ropts = append(ropts, retrieval.WithMemorySearcher(e.store))
		e.memories = memory.NewManager(e.store, embedder, e.memConfig, memory.WithObserver(e.obs))
	}
	if len(e.conns) > 0 {
		ropts = append(ropts, retrieval.WithConnectors(e.creds, e.conns...))
	}
	for _, s := range e.extra {
		ropts = append(ropts, retrieval.WithSource(s))
	}
	r, err := retrieval.New(embedder, ropts...)
	if err != nil {
		return nil, err
	}
	e.retriever = r

	e.obs.Log().Info().
		Int("sources", len(e.retriever.SourceNames(true))).
		Int("embedding_dimensions", embedder.Dimensions()).
		Msg("engine ready")
	return e, nil
}

// RetrieveContext returns ranked, formatted context for req. Only an
// embedding failure is returned as an error; unavailable sources are
// logged and skipped.
func (e *Engine) RetrieveContext(ctx context.Context, req core.ContextRequest) (*core.RetrievalResult, error) {
	return e.retriever.RetrieveContext(ctx, req)
}

// StoreMemory saves key=value for ownerID, overwriting any memory with the
// same key. An empty category defaults to fact.
func (e *Engine) StoreMemory(ctx context.Context, ownerID, key, value string, category memory.Category) (*memory.Memory, error) {
	if e.memories == nil {
		return nil, core.MemoryWriteFailure("store memory", ErrNoMemoryStore)
	}
	return e.memories.Store(ctx, ownerID, key, value, category)
}

// GetMemories lists ownerID's memories, most recently updated first.
func (e *Engine) GetMemories(ctx context.Context, ownerID string) ([]memory.Memory, error) {
	if e.memories == nil {
		return nil, ErrNoMemoryStore
	}
	return e.memories.List(ctx, ownerID)
}

// GetMemory returns one memory. Unknown and foreign ids are core.ErrNotFound.
func (e *Engine) GetMemory(ctx context.Context, ownerID, id string) (*memory.Memory, error) {
	if e.memories == nil {
		return nil, ErrNoMemoryStore
	}
	return e.memories.Get(ctx, ownerID, id)
}

// DeleteMemory removes a memory. Unknown or foreign ids succeed without
// effect.
func (e *Engine) DeleteMemory(ctx context.Context, ownerID, id string) error {
	if e.memories == nil {
		return core.MemoryWriteFailure("delete memory", ErrNoMemoryStore)
	}
	return e.memories.Delete(ctx, ownerID, id)
}

// ParseRememberCommand detects an explicit "remember ..." instruction.
func (e *Engine) ParseRememberCommand(text string) (memory.RememberCommand, bool) {
	return memory.ParseRememberCommand(text)
}

// HandleRememberCommand stores the memory text asks for, if any. It reports
// false with a nil error when text holds no remember command.
func (e *Engine) HandleRememberCommand(ctx context.Context, ownerID, text string) (*memory.Memory, bool, error) {
	cmd, ok := memory.ParseRememberCommand(text)
	if !ok {
		return nil, false, nil
	}
	mem, err := e.StoreMemory(ctx, ownerID, cmd.Key, cmd.Value, "")
	if err != nil {
		return nil, true, err
	}
	return mem, true, nil
}

// Content is a message or file to make searchable.
type Content struct {
	ID             string // generated when empty
	OwnerID        string
	Type           core.ItemType // core.ItemMessage or core.ItemFile
	Text           string
	Summary        string
	ContainerID    string
	ContainerTitle string
	ScopeID        string
	ScopeName      string
}

// IndexContent embeds c and adds it to the content store. It returns the
// document id and the embedding cost.
func (e *Engine) IndexContent(ctx context.Context, c Content) (string, float64, error) {
	if e.content == nil {
		return "", 0, core.NotProvisioned("content", errors.New("content store not configured"))
	}
	if strings.TrimSpace(c.Text) == "" {
		return "", 0, core.InvalidInput("index content", "text is required")
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	ctx, span := e.obs.StartSpan(ctx, "engine.IndexContent", "owner_id", c.OwnerID, "type", string(c.Type))
	defer span.End()

	emb, err := e.embedder.Embed(ctx, c.Text)
	if err != nil {
		observe.Fail(span, err)
		return "", 0, core.EmbeddingFailure(err)
	}

	err = e.content.Add(ctx, chromem.Document{
		ID:             c.ID,
		OwnerID:        c.OwnerID,
		Type:           c.Type,
		Content:        c.Text,
		Summary:        c.Summary,
		ContainerID:    c.ContainerID,
		ContainerTitle: c.ContainerTitle,
		ScopeID:        c.ScopeID,
		ScopeName:      c.ScopeName,
		Embedding:      emb.Vector,
	})
	if err != nil {
		observe.Fail(span, err)
		return "", 0, err
	}

	e.obs.Log().Debug().
		Str("owner_id", c.OwnerID).
		Str("doc_id", c.ID).
		Str("container_id", c.ContainerID).
		Msg("content indexed")
	return c.ID, emb.CostUnits, nil
}

// ForgetContainer drops every indexed document of a container, e.g. a
// deleted conversation.
func (e *Engine) ForgetContainer(ctx context.Context, ownerID, containerID string) error {
	if e.content == nil {
		return nil
	}
	if ownerID == "" || containerID == "" {
		return core.InvalidInput("forget container", "owner id and container id are required")
	}
	return e.content.DeleteContainer(ctx, ownerID, containerID)
}

// Sources lists the sources a retrieval with connectors would search.
func (e *Engine) Sources() []string {
	return e.retriever.SourceNames(true)
}
