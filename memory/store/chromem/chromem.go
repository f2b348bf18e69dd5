package chromem

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/becomeliminal/nim-recall/core"
)

const sourceName = "content"

// Metadata keys stored alongside each chromem document.
const (
	keyOwnerID        = "owner_id"
	keyType           = "type"
	keySummary        = "summary"
	keyContainerID    = "container_id"
	keyContainerTitle = "container_title"
	keyScopeID        = "scope_id"
	keyScopeName      = "scope_name"
	keyCreatedAt      = "created_at"
)

// Document is one piece of indexed conversational or file content.
type Document struct {
	ID             string
	OwnerID        string
	Type           core.ItemType // core.ItemMessage or core.ItemFile
	Content        string
	Summary        string
	ContainerID    string
	ContainerTitle string
	ScopeID        string
	ScopeName      string
	CreatedAt      time.Time
	Embedding      []float32
}

// ChromemStore wraps chromem-go as the vector content index.
// chromem-go is a pure Go, embedded vector database.
type ChromemStore struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection // Per-owner collections
	mu          sync.RWMutex
}

// New creates an in-memory store.
func New() (*ChromemStore, error) {
	return &ChromemStore{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// NewPersistent creates a store persisted under path.
func NewPersistent(path string, compress bool) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return &ChromemStore{
		db:          db,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func collectionName(ownerID string) string {
	return "owner_" + ownerID
}

// collection returns the owner's collection, or nil if nothing has ever
// been indexed for them.
func (s *ChromemStore) collection(ownerID string) *chromem.Collection {
	s.mu.RLock()
	col, ok := s.collections[ownerID]
	s.mu.RUnlock()
	if ok {
		return col
	}

	// Persistent DBs load collections from disk without going through us.
	col = s.db.GetCollection(collectionName(ownerID), nil)
	if col == nil {
		return nil
	}
	s.mu.Lock()
	s.collections[ownerID] = col
	s.mu.Unlock()
	return col
}

func (s *ChromemStore) getOrCreateCollection(ownerID string) (*chromem.Collection, error) {
	if col := s.collection(ownerID); col != nil {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if col, ok := s.collections[ownerID]; ok {
		return col, nil
	}

	// Embeddings are always supplied by the caller, so no embedding func.
	col, err := s.db.GetOrCreateCollection(collectionName(ownerID), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	s.collections[ownerID] = col
	return col, nil
}

// Add indexes doc. Adding a document with an existing ID replaces it.
func (s *ChromemStore) Add(ctx context.Context, doc Document) error {
	switch {
	case doc.ID == "" || doc.OwnerID == "":
		return core.InvalidInput("index content", "document id and owner id are required")
	case doc.Type != core.ItemMessage && doc.Type != core.ItemFile:
		return core.InvalidInput("index content", "unsupported content type %q", doc.Type)
	case len(doc.Embedding) == 0:
		return core.InvalidInput("index content", "document %s has no embedding", doc.ID)
	}

	col, err := s.getOrCreateCollection(doc.OwnerID)
	if err != nil {
		return err
	}

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	metadata := map[string]string{
		keyOwnerID:   doc.OwnerID,
		keyType:      string(doc.Type),
		keyCreatedAt: doc.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	setIf(metadata, keySummary, doc.Summary)
	setIf(metadata, keyContainerID, doc.ContainerID)
	setIf(metadata, keyContainerTitle, doc.ContainerTitle)
	setIf(metadata, keyScopeID, doc.ScopeID)
	setIf(metadata, keyScopeName, doc.ScopeName)

	err = col.AddDocument(ctx, chromem.Document{
		ID:        doc.ID,
		Content:   doc.Content,
		Embedding: doc.Embedding,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// DeleteContainer removes every document of ownerID that belongs to
// containerID, e.g. when a conversation is deleted.
func (s *ChromemStore) DeleteContainer(ctx context.Context, ownerID, containerID string) error {
	col := s.collection(ownerID)
	if col == nil {
		return nil
	}
	if err := col.Delete(ctx, map[string]string{keyContainerID: containerID}, nil); err != nil {
		return fmt.Errorf("delete container %s: %w", containerID, err)
	}
	return nil
}

// Search returns the owner's content most similar to q.Vector, scoring at
// least q.Threshold, never from q.ExcludeContainerID. An owner without a
// collection yields core.ErrSourceNotProvisioned.
func (s *ChromemStore) Search(ctx context.Context, q core.VectorQuery) ([]core.RetrievedItem, error) {
	if q.Limit <= 0 {
		return nil, nil
	}
	col := s.collection(q.OwnerID)
	if col == nil {
		return nil, core.NotProvisioned(sourceName, fmt.Errorf("no content indexed for owner %s", q.OwnerID))
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}

	// chromem has no "not equal" filter. The excluded container is often
	// the closest match to its own query, so rank every document and drop
	// it afterwards.
	n := q.Limit
	if q.ExcludeContainerID != "" {
		n = count
	}
	if n > count {
		n = count
	}

	where := map[string]string{keyOwnerID: q.OwnerID}
	if q.ScopeID != "" {
		where[keyScopeID] = q.ScopeID
	}

	results, err := queryEmbedding(ctx, col, q.Vector, n, where)
	if err != nil {
		return nil, core.SourceUnavailable(sourceName, err)
	}

	items := make([]core.RetrievedItem, 0, len(results))
	for _, r := range results {
		if float64(r.Similarity) < q.Threshold {
			continue
		}
		if q.ExcludeContainerID != "" && r.Metadata[keyContainerID] == q.ExcludeContainerID {
			continue
		}
		items = append(items, toItem(r))
		if len(items) == q.Limit {
			break
		}
	}
	return items, nil
}

// queryEmbedding asks for n results. When the where filter leaves fewer
// documents than that, which chromem reports as an error, it searches for
// the largest limit the filter can satisfy.
func queryEmbedding(ctx context.Context, col *chromem.Collection, vec []float32, n int, where map[string]string) ([]chromem.Result, error) {
	results, err := col.QueryEmbedding(ctx, vec, n, where, nil)
	if err == nil {
		return results, nil
	}
	if !isInsufficientDocsError(err) {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	// n fails, so the answer lies in [0, n). results always holds the
	// query for lo.
	results = nil
	lo, hi := 0, n-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		res, err := col.QueryEmbedding(ctx, vec, mid, where, nil)
		switch {
		case err == nil:
			lo, results = mid, res
		case isInsufficientDocsError(err):
			hi = mid - 1
		default:
			return nil, fmt.Errorf("chromem query: %w", err)
		}
	}
	if lo == 0 {
		return nil, nil
	}
	return results, nil
}

func toItem(r chromem.Result) core.RetrievedItem {
	createdAt, _ := time.Parse(time.RFC3339Nano, r.Metadata[keyCreatedAt])
	return core.RetrievedItem{
		Type:       core.ItemType(r.Metadata[keyType]),
		ID:         r.ID,
		Content:    r.Content,
		Summary:    r.Metadata[keySummary],
		Similarity: core.ClampSimilarity(float64(r.Similarity)),
		Metadata: core.ItemMetadata{
			ContainerID:    r.Metadata[keyContainerID],
			ContainerTitle: r.Metadata[keyContainerTitle],
			ScopeID:        r.Metadata[keyScopeID],
			ScopeName:      r.Metadata[keyScopeName],
			CreatedAt:      createdAt,
			Provenance:     core.ProvenanceLocal,
		},
	}
}

// Close releases resources.
func (s *ChromemStore) Close() error {
	// chromem-go flushes persistent collections on every write
	return nil
}

func setIf(m map[string]string, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func isInsufficientDocsError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
