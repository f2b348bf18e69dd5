package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/becomeliminal/nim-recall/connector"
	"github.com/becomeliminal/nim-recall/core"
	"github.com/becomeliminal/nim-recall/memory"
	"github.com/becomeliminal/nim-recall/observe"
)

// Query is what every source receives for one retrieval.
type Query struct {
	OwnerID            string
	ScopeID            string
	ExcludeContainerID string

	// Text is the raw query, used by lexical sources.
	Text string
	// Vector is the query embedding, used by vector sources.
	Vector []float32

	// Limit is the request's MaxResults. Sources may return fewer.
	Limit int
}

// Source is one searchable backend. Search never fails: a source that
// cannot answer logs why and returns nothing, so one broken backend never
// sinks a retrieval.
type Source interface {
	Name() string
	Search(ctx context.Context, q Query) []core.RetrievedItem
}

// ContentIndex runs vector queries over messages and files.
// Implementations: chromem.ChromemStore.
type ContentIndex interface {
	Search(ctx context.Context, q core.VectorQuery) ([]core.RetrievedItem, error)
}

// ContentSource searches past conversations and files.
type ContentSource struct {
	index     ContentIndex
	threshold float64
	obs       *observe.Observer
}

// NewContentSource creates a ContentSource.
func NewContentSource(index ContentIndex, threshold float64, obs *observe.Observer) *ContentSource {
	return &ContentSource{index: index, threshold: threshold, obs: observe.Or(obs)}
}

// Name implements Source.
func (s *ContentSource) Name() string { return "content" }

// Search implements Source.
func (s *ContentSource) Search(ctx context.Context, q Query) []core.RetrievedItem {
	found, err := s.index.Search(ctx, core.VectorQuery{
		OwnerID:            q.OwnerID,
		Vector:             q.Vector,
		ScopeID:            q.ScopeID,
		ExcludeContainerID: q.ExcludeContainerID,
		Threshold:          s.threshold,
		Limit:              q.Limit,
	})
	if err != nil {
		reportFailure(s.obs, s.Name(), err)
		return nil
	}

	// The index is trusted to filter, but the in-flight container must
	// never leak back into its own context.
	items := make([]core.RetrievedItem, 0, len(found))
	for _, it := range found {
		if it.Type != core.ItemMessage && it.Type != core.ItemFile {
			continue
		}
		if q.ExcludeContainerID != "" && it.Metadata.ContainerID == q.ExcludeContainerID {
			continue
		}
		if it.Similarity < s.threshold {
			continue
		}
		if it.Metadata.Provenance == "" {
			it.Metadata.Provenance = core.ProvenanceLocal
		}
		it.Similarity = core.ClampSimilarity(it.Similarity)
		items = append(items, it)
		if len(items) == q.Limit {
			break
		}
	}
	return items
}

// MemorySource searches the owner's declared memories. Memories are not
// scoped: ScopeID is ignored.
type MemorySource struct {
	searcher  memory.Searcher
	threshold float64
	limit     int
	obs       *observe.Observer
}

// NewMemorySource creates a MemorySource returning at most limit memories.
func NewMemorySource(searcher memory.Searcher, threshold float64, limit int, obs *observe.Observer) *MemorySource {
	return &MemorySource{searcher: searcher, threshold: threshold, limit: limit, obs: observe.Or(obs)}
}

// Name implements Source.
func (s *MemorySource) Name() string { return "memory" }

// Search implements Source.
func (s *MemorySource) Search(ctx context.Context, q Query) []core.RetrievedItem {
	limit := min(s.limit, q.Limit)
	if limit <= 0 {
		return nil
	}
	matches, err := s.searcher.Search(ctx, q.OwnerID, q.Vector, s.threshold, limit)
	if err != nil {
		reportFailure(s.obs, s.Name(), err)
		return nil
	}

	items := make([]core.RetrievedItem, 0, len(matches))
	for _, m := range matches {
		if m.Similarity < s.threshold {
			continue
		}
		items = append(items, core.RetrievedItem{
			Type:       core.ItemMemory,
			ID:         m.Memory.ID,
			Content:    m.Memory.Text(),
			Similarity: core.ClampSimilarity(m.Similarity),
			Metadata: core.ItemMetadata{
				CreatedAt:  m.Memory.CreatedAt,
				Provenance: core.ProvenanceMemory,
			},
		})
		if len(items) == limit {
			break
		}
	}
	return items
}

// ConnectorSource runs a lexical search against one external connector and
// scores every hit with the kind's fixed pseudo-similarity.
type ConnectorSource struct {
	conn       connector.Connector
	creds      connector.CredentialProvider
	similarity float64
	limit      int
	obs        *observe.Observer
}

// NewConnectorSource creates a ConnectorSource.
func NewConnectorSource(conn connector.Connector, creds connector.CredentialProvider, similarity float64, limit int, obs *observe.Observer) *ConnectorSource {
	return &ConnectorSource{
		conn:       conn,
		creds:      creds,
		similarity: core.ClampSimilarity(similarity),
		limit:      limit,
		obs:        observe.Or(obs),
	}
}

// Name implements Source.
func (s *ConnectorSource) Name() string { return string(core.ConnectorType(s.conn.Kind())) }

// Search implements Source.
func (s *ConnectorSource) Search(ctx context.Context, q Query) []core.RetrievedItem {
	kind := s.conn.Kind()
	limit := min(s.limit, q.Limit)
	if limit <= 0 {
		return nil
	}

	if s.creds == nil {
		reportFailure(s.obs, s.Name(), core.NotProvisioned(kind, connector.ErrNoCredentials))
		return nil
	}
	creds, err := s.creds.Credentials(ctx, q.OwnerID, kind)
	if err != nil {
		reportFailure(s.obs, s.Name(), err)
		return nil
	}
	if creds.AccessToken == "" {
		reportFailure(s.obs, s.Name(), core.NotProvisioned(kind, connector.ErrNoCredentials))
		return nil
	}
	if !creds.Valid() {
		reportFailure(s.obs, s.Name(), core.SourceUnavailable(kind, errors.New("credentials expired")))
		return nil
	}

	found, err := s.conn.Search(ctx, q.Text, creds, limit)
	if err != nil {
		reportFailure(s.obs, s.Name(), core.SourceUnavailable(kind, err))
		return nil
	}

	itemType := core.ConnectorType(kind)
	items := make([]core.RetrievedItem, 0, len(found))
	for _, it := range found {
		it.Type = itemType
		it.Similarity = s.similarity
		if it.Metadata.Provenance == "" {
			it.Metadata.Provenance = kind
		}
		items = append(items, it)
		if len(items) == limit {
			break
		}
	}
	return items
}

// reportFailure logs a source failure. Unprovisioned sources are an
// expected first-run state and log at info; everything else is a warning.
func reportFailure(obs *observe.Observer, source string, err error) {
	if core.IsNotProvisioned(err) {
		obs.Log().Info().Str("source", source).Err(err).Msg("source not provisioned, skipping")
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		obs.Log().Warn().Str("source", source).Err(err).Msg("source timed out")
		return
	}
	obs.Log().Warn().Str("source", source).Err(err).Msg("source search failed")
}

// panicError wraps a recovered panic value.
func panicError(v any) error {
	return fmt.Errorf("panic: %v", v)
}
