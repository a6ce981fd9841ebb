// Package consolidate implements the Session Consolidator (spec §4.J):
// ingest a transcript, extract candidate memories (LLM-backed, or a
// heuristic fallback grounded in original_source/src/entity_extractor.py
// and schema_classifier.py when no LLM is configured), dedup them, persist
// survivors, and report session quality.
package consolidate

import (
	"context"
	"fmt"

	"github.com/scrypster/mnemora/internal/attribution"
	"github.com/scrypster/mnemora/internal/collaborator"
	"github.com/scrypster/mnemora/internal/dedup"
	"github.com/scrypster/mnemora/internal/graph"
	"github.com/scrypster/mnemora/internal/reinforce"
	"github.com/scrypster/mnemora/internal/store"
	"github.com/scrypster/mnemora/pkg/types"
)

// Message is one transcript turn.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Candidate is an extracted, not-yet-persisted memory.
type Candidate struct {
	Content    string
	Importance float64
	Confidence float64
	MemoryType string
}

// Report is the outcome of consolidating one session (spec §4.J).
type Report struct {
	ExtractedCount int
	SavedCount     int
	DedupedCount   int
	SessionQuality float64
	SavedMemories  []*types.Memory
	AllExtracted   []Candidate
}

// highImportanceThreshold is the cutoff spec §4.J uses for session quality.
const highImportanceThreshold = 0.7

// sessionQualityFactor scales the high-importance ratio into the reported
// quality score; the spec names the ratio and a "factor" without pinning
// its value, so 1.0 (the ratio itself) is used here.
const sessionQualityFactor = 1.0

// Extractor produces candidate memories from a transcript.
type Extractor interface {
	Extract(ctx context.Context, messages []Message) ([]Candidate, error)
}

// Consolidator orchestrates extraction, dedup, and persistence.
type Consolidator struct {
	extractor Extractor
	dedup     *dedup.Registry
	store     *store.Store
	graph     *graph.Graph
	scheduler *reinforce.Scheduler
	embedder  collaborator.Embedder
}

// New creates a Consolidator. If llm is nil, a HeuristicExtractor is used.
func New(
	llm collaborator.LLM,
	embedder collaborator.Embedder,
	dedupRegistry *dedup.Registry,
	memStore *store.Store,
	g *graph.Graph,
	scheduler *reinforce.Scheduler,
) *Consolidator {
	var extractor Extractor
	if llm != nil {
		extractor = &LLMExtractor{llm: llm}
	} else {
		extractor = &HeuristicExtractor{}
	}
	return &Consolidator{
		extractor: extractor,
		dedup:     dedupRegistry,
		store:     memStore,
		graph:     g,
		scheduler: scheduler,
		embedder:  embedder,
	}
}

// Consolidate ingests messages, extracts candidates, dedups each against
// the registry, persists survivors (with an embedding computed for the
// dedup semantic tier and an initial review schedule enqueued), and
// optionally proposes co-occurrence edges among the session's own saved
// memories via the Relationship Graph. sourceSessionID is the provenance tag
// stamped on every saved memory (spec §3's source_session_id); when empty,
// it falls back to the detected agent/user identity so ingestion from an
// unattributed caller still records who to credit.
func (c *Consolidator) Consolidate(ctx context.Context, projectID, sourceSessionID string, messages []Message) (*Report, error) {
	if sourceSessionID == "" {
		sourceSessionID = attribution.DetectAgent()
	}

	candidates, err := c.extractor.Extract(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("consolidate: extract: %w", err)
	}

	report := &Report{ExtractedCount: len(candidates), AllExtracted: candidates}
	var highImportance int

	var savedIDs []string
	var savedContents []string

	for _, cand := range candidates {
		var embedding []float64
		if c.embedder != nil {
			embedding, err = c.embedder.Embed(ctx, cand.Content)
			if err != nil {
				return nil, fmt.Errorf("consolidate: embed candidate: %w", err)
			}
		}

		result, err := c.dedup.Check(cand.Content, embedding)
		if err != nil {
			return nil, fmt.Errorf("consolidate: dedup check: %w", err)
		}
		if result.Duplicate {
			report.DedupedCount++
			continue
		}

		m, err := c.store.Create(store.CreateParams{
			Content:         cand.Content,
			ProjectID:       projectID,
			Importance:      cand.Importance,
			Confidence:      cand.Confidence,
			Scope:           types.ScopeProject,
			SourceSessionID: sourceSessionID,
		})
		if err != nil {
			return nil, fmt.Errorf("consolidate: persist: %w", err)
		}

		if _, err := c.dedup.Register(m.ID, m.Content, embedding); err != nil {
			return nil, fmt.Errorf("consolidate: register hash: %w", err)
		}
		if c.scheduler != nil {
			if _, err := c.scheduler.Enqueue(m.ID); err != nil {
				return nil, fmt.Errorf("consolidate: enqueue review: %w", err)
			}
		}

		report.SavedMemories = append(report.SavedMemories, m)
		report.SavedCount++
		savedIDs = append(savedIDs, m.ID)
		savedContents = append(savedContents, m.Content)

		if cand.Importance >= highImportanceThreshold {
			highImportance++
		}
	}

	if c.graph != nil && len(savedIDs) > 1 {
		for _, e := range graph.SuggestEdges(savedIDs, savedContents) {
			if err := c.graph.AddEdge(e); err != nil {
				return nil, fmt.Errorf("consolidate: suggest edge: %w", err)
			}
		}
	}

	if report.ExtractedCount > 0 {
		report.SessionQuality = (float64(highImportance) / float64(report.ExtractedCount)) * sessionQualityFactor
	}

	return report, nil
}
