// Package retrieval gathers context for a query from every configured
// source, ranks it on one similarity scale and renders it for a prompt.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/becomeliminal/nim-recall/connector"
	"github.com/becomeliminal/nim-recall/core"
	"github.com/becomeliminal/nim-recall/memory"
	"github.com/becomeliminal/nim-recall/observe"
)

// Retriever coordinates one embedding call and a concurrent fan-out to all
// sources.
//
// Only an embedding failure fails a retrieval. Each source runs under its
// own deadline; a source that errors, panics or overruns contributes
// nothing and is logged.
type Retriever struct {
	embedder memory.Embedder
	config   *Config
	obs      *observe.Observer

	contentIndex ContentIndex
	memories     memory.Searcher
	creds        connector.CredentialProvider
	conns        []connector.Connector
	extra        []Source

	sources    []boundSource // always searched
	connectors []boundSource // searched when the request asks for them
	formatter  *Formatter
}

type boundSource struct {
	Source
	timeout time.Duration
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithContentIndex enables the message and file source.
func WithContentIndex(idx ContentIndex) Option {
	return func(r *Retriever) {
		r.contentIndex = idx
	}
}

// WithMemorySearcher enables the memory source.
func WithMemorySearcher(s memory.Searcher) Option {
	return func(r *Retriever) {
		r.memories = s
	}
}

// WithConnectors adds connector sources. Credentials are looked up per
// owner on every search.
func WithConnectors(creds connector.CredentialProvider, conns ...connector.Connector) Option {
	return func(r *Retriever) {
		r.creds = creds
		r.conns = append(r.conns, conns...)
	}
}

// WithSource adds a custom source that is always searched, bounded by
// the connector timeout.
func WithSource(s Source) Option {
	return func(r *Retriever) {
		r.extra = append(r.extra, s)
	}
}

// WithConfig overrides DefaultConfig.
func WithConfig(cfg *Config) Option {
	return func(r *Retriever) {
		r.config = cfg
	}
}

// WithObserver sets the logger/tracer.
func WithObserver(o *observe.Observer) Option {
	return func(r *Retriever) {
		r.obs = o
	}
}

// New creates a Retriever. Sources are searched in a fixed order (content,
// memory, custom sources, then connectors in configured order), which is
// also the order ties are resolved in. An invalid config is rejected.
func New(embedder memory.Embedder, opts ...Option) (*Retriever, error) {
	if embedder == nil {
		return nil, core.InvalidInput("new retriever", "embedder is required")
	}
	r := &Retriever{embedder: embedder}
	for _, opt := range opts {
		opt(r)
	}
	if r.config == nil {
		r.config = DefaultConfig
	}
	if err := r.config.Validate(); err != nil {
		return nil, fmt.Errorf("retrieval config: %w", err)
	}
	r.obs = observe.Or(r.obs)
	r.formatter = NewFormatter(r.config)

	cfg := r.config
	if r.contentIndex != nil {
		r.sources = append(r.sources, boundSource{NewContentSource(r.contentIndex, cfg.ContentThreshold, r.obs), cfg.ContentTimeout})
	}
	if r.memories != nil {
		r.sources = append(r.sources, boundSource{NewMemorySource(r.memories, cfg.MemoryThreshold, cfg.MemoryLimit, r.obs), cfg.MemoryTimeout})
	}
	for _, s := range r.extra {
		r.sources = append(r.sources, boundSource{s, cfg.ConnectorTimeout})
	}
	for _, c := range r.orderedConnectors() {
		similarity := connector.SimilarityFor(c.Kind())
		timeout := cfg.ConnectorTimeout
		if cc, ok := cfg.connector(c.Kind()); ok {
			if cc.Similarity > 0 {
				similarity = cc.Similarity
			}
			if cc.Timeout > 0 {
				timeout = cc.Timeout
			}
		}
		src := NewConnectorSource(c, r.creds, similarity, cfg.ConnectorLimit, r.obs)
		r.connectors = append(r.connectors, boundSource{src, timeout})
	}
	return r, nil
}

// orderedConnectors sorts connectors by configured kind order; unconfigured
// kinds follow alphabetically.
func (r *Retriever) orderedConnectors() []connector.Connector {
	rank := make(map[string]int, len(r.config.Connectors))
	for i, cc := range r.config.Connectors {
		rank[cc.Kind] = i
	}
	out := append([]connector.Connector(nil), r.conns...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := rank[out[i].Kind()]
		rj, jok := rank[out[j].Kind()]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return out[i].Kind() < out[j].Kind()
	})
	return out
}

// RetrieveContext embeds req.QueryText once, searches every enabled source
// concurrently and returns at most req.MaxResults ranked items together
// with their rendered text.
func (r *Retriever) RetrieveContext(ctx context.Context, req core.ContextRequest) (*core.RetrievalResult, error) {
	result := &core.RetrievalResult{Query: req.QueryText, Items: []core.RetrievedItem{}}
	if req.MaxResults <= 0 {
		return result, nil
	}
	if req.OwnerID == "" {
		return nil, core.InvalidInput("retrieve context", "owner id is required")
	}

	ctx, span := r.obs.StartSpan(ctx, "retrieval.RetrieveContext", "owner_id", req.OwnerID)
	defer span.End()

	emb, err := r.embedder.Embed(ctx, req.QueryText)
	if err != nil {
		observe.Fail(span, err)
		r.obs.Log().Error().Str("owner_id", req.OwnerID).Err(err).Msg("query embedding failed")
		return nil, core.EmbeddingFailure(err)
	}

	q := Query{
		OwnerID:            req.OwnerID,
		ScopeID:            req.ScopeID,
		ExcludeContainerID: req.ExcludeContainerID,
		Text:               req.QueryText,
		Vector:             emb.Vector,
		Limit:              req.MaxResults,
	}

	sources := r.sources
	if req.IncludeConnectors {
		sources = append(sources[:len(sources):len(sources)], r.connectors...)
	}

	// One slot per source, written only by that source's goroutine.
	slots := make([][]core.RetrievedItem, len(sources))
	var g errgroup.Group
	for i, s := range sources {
		g.Go(func() error {
			slots[i] = r.search(ctx, s, q)
			return nil
		})
	}
	_ = g.Wait()

	result.Items = merge(slots, req.MaxResults, req.ExcludeContainerID)
	result.FormattedText, result.EstimatedTokens = r.formatter.Format(result.Items)
	result.CostUnits = emb.CostUnits

	r.obs.Log().Info().
		Str("owner_id", req.OwnerID).
		Int("sources", len(sources)).
		Int("items", len(result.Items)).
		Int("estimated_tokens", result.EstimatedTokens).
		Msg("retrieved context")
	return result, nil
}

// search runs one source under its timeout. A source that does not return
// by the deadline is abandoned: its goroutine may finish later, but its
// result is dropped.
func (r *Retriever) search(ctx context.Context, s boundSource, q Query) []core.RetrievedItem {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := r.obs.StartSpan(ctx, "retrieval.source", "source", s.Name())
	defer span.End()

	done := make(chan []core.RetrievedItem, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				reportFailure(r.obs, s.Name(), core.SourceUnavailable(s.Name(), panicError(p)))
				done <- nil
			}
		}()
		done <- s.Search(ctx, q)
	}()

	select {
	case items := <-done:
		r.obs.Log().Debug().Str("source", s.Name()).Int("items", len(items)).Msg("source answered")
		return items
	case <-ctx.Done():
		err := core.SourceUnavailable(s.Name(), ctx.Err())
		observe.Fail(span, err)
		reportFailure(r.obs, s.Name(), err)
		return nil
	}
}

// SourceNames lists the sources a request would search, in merge order.
func (r *Retriever) SourceNames(includeConnectors bool) []string {
	var names []string
	for _, s := range r.sources {
		names = append(names, s.Name())
	}
	if includeConnectors {
		for _, s := range r.connectors {
			names = append(names, s.Name())
		}
	}
	return names
}
