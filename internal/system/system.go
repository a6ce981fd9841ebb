// Package system wires every component into the MemorySystem façade named
// in spec §6: save, get, list, search, archive, get_stats, and
// run_maintenance. It owns construction of the subsystems so a caller only
// needs a database handle, a clock, a store root, and optional
// collaborators.
package system

import (
	"context"
	"fmt"
	"time"

	"github.com/scrypster/mnemora/internal/accesslog"
	"github.com/scrypster/mnemora/internal/clock"
	"github.com/scrypster/mnemora/internal/collaborator"
	"github.com/scrypster/mnemora/internal/config"
	"github.com/scrypster/mnemora/internal/consolidate"
	"github.com/scrypster/mnemora/internal/db"
	"github.com/scrypster/mnemora/internal/dedup"
	"github.com/scrypster/mnemora/internal/embedcache"
	"github.com/scrypster/mnemora/internal/emotion"
	"github.com/scrypster/mnemora/internal/gc"
	"github.com/scrypster/mnemora/internal/graph"
	"github.com/scrypster/mnemora/internal/refcount"
	"github.com/scrypster/mnemora/internal/reinforce"
	"github.com/scrypster/mnemora/internal/retrieval"
	"github.com/scrypster/mnemora/internal/store"
	"github.com/scrypster/mnemora/pkg/mnemerr"
	"github.com/scrypster/mnemora/pkg/types"
)

// Config configures the subsystems New builds.
type Config struct {
	StoreRoot          string
	DedupBuckets       int // 0 selects dedup.DefaultSemanticBuckets
	EmbedCacheCapacity int // 0 selects a small built-in default
	PageRank           graph.PageRankConfig
}

// DefaultConfig returns sane defaults for a local single-user deployment.
func DefaultConfig(storeRoot string) Config {
	return Config{
		StoreRoot:          storeRoot,
		EmbedCacheCapacity: 2048,
		PageRank:           graph.DefaultPageRankConfig(),
	}
}

// System is the MemorySystem façade. Exported component handles are left
// public so callers needing finer control (the maintenance daemon, CLI
// subcommands) can reach past the façade without a second wiring pass.
type System struct {
	clock clock.Clock
	cfg   Config

	Store        *store.Store
	Dedup        *dedup.Registry
	EmbedCache   *embedcache.Cache // nil when no Embedder was configured
	Graph        *graph.Graph
	AccessLog    *accesslog.Log
	RefCount     *refcount.Counter
	Emotions     *emotion.Store
	GC           *gc.GC
	Reinforce    *reinforce.Scheduler
	Retrieval    *retrieval.Engine // nil when no Embedder was configured
	SearchCache  *retrieval.SearchCache
	Consolidator *consolidate.Consolidator
}

// New constructs a System. embedder and llm are optional collaborators
// (spec §6); a nil embedder disables semantic search and semantic dedup, a
// nil llm falls the Session Consolidator back to its heuristic extractor.
func New(conn *db.DB, c clock.Clock, cfg Config, embedder collaborator.Embedder, llm collaborator.LLM) (*System, error) {
	if cfg.StoreRoot == "" {
		return nil, fmt.Errorf("system: store root is required")
	}

	memStore, err := store.New(cfg.StoreRoot, c)
	if err != nil {
		return nil, err
	}

	dedupRegistry := dedup.New(conn, c, cfg.DedupBuckets)
	g := graph.New(conn, c)
	accessLog := accesslog.New(conn, c)
	refCounter := refcount.New(conn, c)
	emotions := emotion.New(conn, c)
	gcollector := gc.New(conn, c, emotions)
	scheduler := reinforce.New(conn, c, nil)
	searchCache := retrieval.NewSearchCache(conn, c)

	var embedCache *embedcache.Cache
	var engine *retrieval.Engine
	if embedder != nil {
		capacity := cfg.EmbedCacheCapacity
		if capacity <= 0 {
			capacity = 2048
		}
		embedCache, err = embedcache.New(conn, c, embedder, capacity)
		if err != nil {
			return nil, fmt.Errorf("system: embed cache: %w", err)
		}
		engine = retrieval.New(memStore, embedCache, g, searchCache, accessLog, c)
	}

	consolidator := consolidate.New(llm, embedder, dedupRegistry, memStore, g, scheduler)

	return &System{
		clock:        c,
		cfg:          cfg,
		Store:        memStore,
		Dedup:        dedupRegistry,
		EmbedCache:   embedCache,
		Graph:        g,
		AccessLog:    accessLog,
		RefCount:     refCounter,
		Emotions:     emotions,
		GC:           gcollector,
		Reinforce:    scheduler,
		Retrieval:    engine,
		SearchCache:  searchCache,
		Consolidator: consolidator,
	}, nil
}

// NewFromConfig builds a System the same way New does, but constructs its
// Embedder/LLM collaborators from llmCfg instead of taking them pre-built.
// For provider "ollama" this gives the Ollama collaborators a real
// *breaker.Breaker and *ratelimit.Limiter — see
// github.com/scrypster/mnemora/internal/collaborator.NewFromConfig — rather
// than leaving that wiring reachable only from the collaborator package's
// own tests.
func NewFromConfig(conn *db.DB, c clock.Clock, cfg Config, llmCfg config.LLMConfig) (*System, error) {
	embedder, llm := collaborator.NewFromConfig(llmCfg, conn, c)
	return New(conn, c, cfg, embedder, llm)
}

// SaveParams carries the arguments to Save (spec §6's save()).
type SaveParams struct {
	Content             string
	Tags                []string
	Importance          float64
	ProjectID           string
	SessionID           string
	SourceSessionID     string
	CheckContradictions bool
}

// Save persists a new memory after a dedup check, registers its hashes,
// enqueues an initial review schedule, and optionally flags contradictions
// against the Relationship Graph.
func (s *System) Save(ctx context.Context, p SaveParams) (*types.Memory, error) {
	var embedding []float64
	if s.EmbedCache != nil {
		var err error
		embedding, err = s.EmbedCache.Get(ctx, p.Content)
		if err != nil {
			return nil, fmt.Errorf("system: embed: %w", err)
		}
	}

	result, err := s.Dedup.Check(p.Content, embedding)
	if err != nil {
		return nil, fmt.Errorf("system: dedup check: %w", err)
	}
	if result.Duplicate {
		return nil, fmt.Errorf("%w: %s match against %s", mnemerr.ErrDuplicateRejected, result.Level, result.MatchedID)
	}

	scope := types.ScopeProject
	if p.ProjectID == "" {
		scope = types.ScopeGlobal
	}

	m, err := s.Store.Create(store.CreateParams{
		Content:         p.Content,
		ProjectID:       p.ProjectID,
		Tags:            p.Tags,
		Importance:      p.Importance,
		Scope:           scope,
		SessionID:       p.SessionID,
		SourceSessionID: p.SourceSessionID,
		Confidence:      1.0,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.Dedup.Register(m.ID, m.Content, embedding); err != nil {
		return nil, fmt.Errorf("system: register hash: %w", err)
	}
	if _, err := s.Reinforce.Enqueue(m.ID); err != nil {
		return nil, fmt.Errorf("system: enqueue review: %w", err)
	}

	if p.CheckContradictions {
		if err := s.flagContradictions(m); err != nil {
			return nil, fmt.Errorf("system: detect contradictions: %w", err)
		}
	}

	return m, nil
}

// flagContradictions compares m against other active memories in the same
// project and records an auto-detected "contradicts" edge for any pair
// graph.SuggestContradiction flags.
func (s *System) flagContradictions(m *types.Memory) error {
	others, err := s.Store.List(store.ListFilter{ProjectID: m.ProjectID}, false, nil)
	if err != nil {
		return err
	}
	for _, other := range others {
		if other.ID == m.ID {
			continue
		}
		edge := graph.SuggestContradiction(m.ID, m.Content, other.ID, other.Content)
		if edge == nil {
			continue
		}
		if err := s.Graph.AddEdge(edge); err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves a memory by id and records a direct access.
func (s *System) Get(id string) (*types.Memory, error) {
	m, err := s.Store.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.AccessLog.Record(id, types.AccessDirect, ""); err != nil {
		return nil, fmt.Errorf("system: record access: %w", err)
	}
	return m, nil
}

// ListParams filters List's output.
type ListParams struct {
	ProjectID       string
	Scope           types.Scope
	IncludeArchived bool
}

// List enumerates memories matching filter, skipping corrupt records.
func (s *System) List(p ListParams) ([]*types.Memory, error) {
	return s.Store.List(store.ListFilter{ProjectID: p.ProjectID, Scope: p.Scope}, p.IncludeArchived, nil)
}

// SearchParams carries the arguments to Search (spec §6's search()).
type SearchParams struct {
	TopK      int
	ProjectID string
}

// Search runs the Hybrid Retrieval engine. It returns ErrEmbedderUnavailable
// if the system was built without an Embedder, since semantic ranking is
// the dominant term in the combined score.
func (s *System) Search(ctx context.Context, query string, p SearchParams) ([]*types.ScoredResult, error) {
	if s.Retrieval == nil {
		return nil, fmt.Errorf("system: search: %w", mnemerr.ErrEmbedderUnavailable)
	}
	return s.Retrieval.Search(ctx, query, retrieval.SearchOptions{ProjectID: p.ProjectID, Limit: p.TopK})
}

// Archive moves a memory to the archived directory unless the Reference
// Counter vetoes it as protected (spec §4.G).
func (s *System) Archive(id, reason string) (bool, error) {
	protected, err := s.RefCount.IsProtected(id)
	if err != nil {
		return false, fmt.Errorf("system: check protected: %w", err)
	}
	if protected {
		return false, nil
	}
	return s.Store.Archive(id, reason)
}

// Stats is the result of GetStats (spec §6's get_stats()).
type Stats struct {
	Total                  int
	AvgImportance          float64
	ConfidenceDistribution map[string]int
	TagCounts              map[string]int
	ProjectCounts          map[string]int
}

// confidenceBucket labels v into one of three coarse bands for the
// confidence_distribution histogram.
func confidenceBucket(v float64) string {
	switch {
	case v >= 0.8:
		return "high"
	case v >= 0.5:
		return "medium"
	default:
		return "low"
	}
}

// GetStats summarizes the active memory population.
func (s *System) GetStats() (*Stats, error) {
	memories, err := s.Store.List(store.ListFilter{}, false, nil)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		ConfidenceDistribution: make(map[string]int),
		TagCounts:              make(map[string]int),
		ProjectCounts:          make(map[string]int),
	}
	stats.Total = len(memories)

	var importanceSum float64
	for _, m := range memories {
		importanceSum += m.Importance
		stats.ConfidenceDistribution[confidenceBucket(m.Confidence)]++
		for _, tag := range m.Tags {
			stats.TagCounts[tag]++
		}
		if m.ProjectID != "" {
			stats.ProjectCounts[m.ProjectID]++
		}
	}
	if stats.Total > 0 {
		stats.AvgImportance = importanceSum / float64(stats.Total)
	}
	return stats, nil
}

// embedCacheCleanupDays is how stale a durable embedding-cache row must be
// before RunMaintenance evicts it.
const embedCacheCleanupDays = 90

// MaintenanceReport is the result of RunMaintenance (spec §6's
// run_maintenance()).
type MaintenanceReport struct {
	Timestamp     time.Time `json:"timestamp"`
	DurationMs    int64     `json:"duration_ms"`
	DecayCount    int       `json:"decay_count"`
	ArchivedCount int       `json:"archived_count"`
	Stats         *Stats    `json:"stats"`
	Health        string    `json:"health"`
}

// RunMaintenance sweeps the Generational GC across all three generations,
// recomputes PageRank, and sweeps expired search-cache entries. With
// dryRun, candidates are counted but nothing is archived, and the PageRank
// recompute, search-cache sweep and embed-cache cleanup are skipped; the
// "relationship" reference counts are refreshed in both modes.
func (s *System) RunMaintenance(dryRun bool) (*MaintenanceReport, error) {
	start := s.clock.Now()

	memories, err := s.Store.List(store.ListFilter{}, false, nil)
	if err != nil {
		return nil, err
	}

	// Refresh the "relationship" reference counts from the current edge set
	// before evaluating archival candidates, so this pass's is_protected
	// veto (spec §4.G, testable property #8) reflects the graph as it is
	// now rather than whatever was last persisted.
	incoming, err := s.Graph.IncomingCounts()
	if err != nil {
		return nil, fmt.Errorf("system: incoming edge counts: %w", err)
	}
	if err := s.RefCount.BulkUpdateFromRelationships(incoming); err != nil {
		return nil, fmt.Errorf("system: recompute reference counts: %w", err)
	}

	candidatesByGen := map[types.Generation][]gc.Candidate{}
	for _, m := range memories {
		ageDays := m.AgeDays(start)
		generation := gc.GenerationOf(ageDays)

		var hasLinks bool
		if related, err := s.Graph.GetRelated(m.ID, "", types.DirBoth); err == nil {
			hasLinks = len(related) > 0
		}

		accessTimes, err := s.AccessLog.AccessTimes(m.ID)
		if err != nil {
			return nil, fmt.Errorf("system: access times for %s: %w", m.ID, err)
		}
		summary, err := s.AccessLog.SummaryFor(m.ID)
		if err != nil {
			return nil, fmt.Errorf("system: access summary for %s: %w", m.ID, err)
		}

		protected, err := s.RefCount.IsProtected(m.ID)
		if err != nil {
			return nil, fmt.Errorf("system: check protected for %s: %w", m.ID, err)
		}

		candidatesByGen[generation] = append(candidatesByGen[generation], gc.Candidate{
			MemoryID:                  m.ID,
			AgeDays:                   ageDays,
			AccessCount:               summary.Total,
			Importance:                m.Importance,
			HasRelationshipLinks:      hasLinks,
			LastAccessed:              summary.LastAccessed,
			PredictedDaysToNextAccess: gc.PredictStaleness(accessTimes, start),
			Protected:                 protected,
		})
	}

	var decayCount, archivedCount int
	for generation, candidates := range candidatesByGen {
		result, err := s.GC.Collect(generation, candidates)
		if err != nil {
			return nil, fmt.Errorf("system: gc collect gen %d: %w", generation, err)
		}
		decayCount += len(result.CandidateIDs)
		if dryRun {
			continue
		}
		for _, id := range result.CandidateIDs {
			ok, err := s.Archive(id, "generational-gc")
			if err != nil {
				return nil, fmt.Errorf("system: archive %s: %w", id, err)
			}
			if ok {
				archivedCount++
			}
		}
	}

	if !dryRun {
		results, err := s.Graph.ComputePageRank(s.cfg.PageRank)
		if err != nil {
			return nil, fmt.Errorf("system: compute pagerank: %w", err)
		}
		if err := s.Graph.PersistPageRank(results); err != nil {
			return nil, fmt.Errorf("system: persist pagerank: %w", err)
		}
		if _, err := s.SearchCache.Sweep(); err != nil {
			return nil, fmt.Errorf("system: sweep search cache: %w", err)
		}
		if s.EmbedCache != nil {
			if _, err := s.EmbedCache.Cleanup(embedCacheCleanupDays); err != nil {
				return nil, fmt.Errorf("system: cleanup embed cache: %w", err)
			}
		}
	}

	stats, err := s.GetStats()
	if err != nil {
		return nil, err
	}

	health := "healthy"
	if stats.Total > 0 && float64(archivedCount)/float64(stats.Total) > 0.5 {
		health = "degraded"
	}

	end := s.clock.Now()
	return &MaintenanceReport{
		Timestamp:     start,
		DurationMs:    end.Sub(start).Milliseconds(),
		DecayCount:    decayCount,
		ArchivedCount: archivedCount,
		Stats:         stats,
		Health:        health,
	}, nil
}

