package retrieval

import (
	"context"
	"fmt"

	"github.com/scrypster/mnemora/internal/accesslog"
	"github.com/scrypster/mnemora/internal/clock"
	"github.com/scrypster/mnemora/internal/embedcache"
	"github.com/scrypster/mnemora/internal/graph"
	"github.com/scrypster/mnemora/internal/store"
	"github.com/scrypster/mnemora/pkg/types"
)

// Engine is the Hybrid Retrieval orchestrator: it ties the Memory Store,
// Embedding Cache, Relationship Graph (for PageRank), and the per-query
// Search Cache together behind a single Search call.
type Engine struct {
	store       *store.Store
	cache       *embedcache.Cache
	graph       *graph.Graph
	searchCache *SearchCache
	accessLog   *accesslog.Log
	clock       clock.Clock
}

// New creates an Engine.
func New(
	memStore *store.Store,
	embedCache *embedcache.Cache,
	g *graph.Graph,
	searchCache *SearchCache,
	accessLog *accesslog.Log,
	c clock.Clock,
) *Engine {
	return &Engine{
		store:       memStore,
		cache:       embedCache,
		graph:       g,
		searchCache: searchCache,
		accessLog:   accessLog,
		clock:       c,
	}
}

// HydrateActive implements Hydrator: it resolves ids through the Memory
// Store, silently skipping ids that no longer exist or are archived.
func (e *Engine) HydrateActive(ids []string) []*types.Memory {
	out := make([]*types.Memory, 0, len(ids))
	for _, id := range ids {
		m, err := e.store.Get(id)
		if err != nil || m.Status != types.StatusActive {
			continue
		}
		out = append(out, m)
	}
	return out
}

// SearchOptions scopes a Search call.
type SearchOptions struct {
	ProjectID string // "" means global
	Limit     int
}

// genericCacheExplanation is the degraded per-result explanation used on a
// cache hit (spec §5: an explanation path that can't recompute its normal
// output degrades to a generic string rather than failing the search).
const genericCacheExplanation = "Cached match from a prior search"

// Search ranks active memories (optionally project-scoped) against query,
// serving a cached id list when available and still sufficiently
// resolvable, and otherwise recomputing and (if cacheable) storing a fresh
// entry. A cache hit returns the persisted order as-is — it never re-runs
// BM25/cosine scoring, since the candidate subset hydrated from a cached id
// list has different corpus statistics (df, avgdl) than the full candidate
// set the order was originally computed against. Every result is logged as
// an access-log "search" event.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) ([]*types.ScoredResult, error) {
	if cached, err := e.searchCache.Lookup(query, opts.ProjectID); err == nil && cached != nil {
		if hydrated, ok := Hydrate(e, cached); ok {
			results := make([]*types.ScoredResult, len(hydrated))
			for i, m := range hydrated {
				results[i] = &types.ScoredResult{Memory: m, Explanation: genericCacheExplanation}
			}
			if opts.Limit > 0 && len(results) > opts.Limit {
				results = results[:opts.Limit]
			}
			for _, r := range results {
				_ = e.accessLog.Record(r.Memory.ID, types.AccessSearch, query)
			}
			return results, nil
		}
	}

	filter := store.ListFilter{ProjectID: opts.ProjectID}
	candidates, err := e.store.List(filter, false, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieval: list candidates: %w", err)
	}

	results, err := e.rank(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	limited := results
	if opts.Limit > 0 && len(limited) > opts.Limit {
		limited = limited[:opts.Limit]
	}

	ids := make([]string, len(limited))
	for i, r := range limited {
		ids[i] = r.Memory.ID
	}
	_ = e.searchCache.Store(query, opts.ProjectID, ids)

	for _, r := range limited {
		_ = e.accessLog.Record(r.Memory.ID, types.AccessSearch, query)
	}
	return limited, nil
}

func (e *Engine) rank(ctx context.Context, query string, candidates []*types.Memory) ([]*types.ScoredResult, error) {
	queryEmbedding, err := e.cache.Get(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}

	embeddings := make(map[string][]float64, len(candidates))
	ageDays := make(map[string]float64, len(candidates))
	pageRank := make(map[string]float64, len(candidates))
	now := e.clock.Now()

	for _, m := range candidates {
		v, err := e.cache.Get(ctx, m.Content)
		if err != nil {
			return nil, fmt.Errorf("retrieval: embed candidate %s: %w", m.ID, err)
		}
		embeddings[m.ID] = v
		ageDays[m.ID] = now.Sub(m.Created).Hours() / 24.0
		if e.graph != nil {
			pageRank[m.ID], _ = e.graph.PageRankOf(m.ID)
		}
	}

	return Score(query, queryEmbedding, candidates, embeddings, ageDays, pageRank), nil
}
