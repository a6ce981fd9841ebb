// Package gc implements the Generational GC (spec §4.H): age-based
// generations with per-generation collection rules, promotion of
// survivors, and an event log. Gen-2 eligibility is extended per
// SPEC_FULL.md's augmentation: a flashbulb-memory staleness multiplier and
// a predicted-staleness OR-clause, both layered on top of the base rule
// table rather than replacing it.
package gc

import (
	"fmt"
	"time"

	"github.com/scrypster/mnemora/internal/clock"
	"github.com/scrypster/mnemora/internal/db"
	"github.com/scrypster/mnemora/internal/emotion"
	"github.com/scrypster/mnemora/pkg/mnemerr"
	"github.com/scrypster/mnemora/pkg/types"
)

const (
	gen0MaxAgeDays = 7.0
	gen1MaxAgeDays = 90.0

	gen1MaxAccessCount  = 2
	gen1MaxImportance   = 0.5
	gen2MaxImportance   = 0.15
	gen2StalenessDays   = 60.0
	flashbulbMultiplier = 2.0
	predictedStaleDays  = 180.0
)

// Candidate is the input record the GC evaluates for a single memory.
type Candidate struct {
	MemoryID                  string
	AgeDays                   float64
	AccessCount               int
	Importance                float64
	HasRelationshipLinks      bool
	LastAccessed              *time.Time // nil means never accessed
	PredictedDaysToNextAccess float64    // 0 means not predicted
	Protected                 bool       // true iff the Reference Counter reports total > 0 (spec §4.G)
}

// GC is the generational garbage collector.
type GC struct {
	db       *db.DB
	clock    clock.Clock
	emotions *emotion.Store
}

// New creates a GC.
func New(conn *db.DB, c clock.Clock, emotions *emotion.Store) *GC {
	return &GC{db: conn, clock: c, emotions: emotions}
}

// GenerationOf classifies age into a generation per spec §4.H's boundaries
// (inclusive-lower, exclusive-upper).
func GenerationOf(ageDays float64) types.Generation {
	switch {
	case ageDays < gen0MaxAgeDays:
		return types.GenNursery
	case ageDays < gen1MaxAgeDays:
		return types.GenYoung
	default:
		return types.GenTenured
	}
}

// IsCandidate reports whether c should be collected (archived), given its
// generation's rule. Gen 2's staleness window doubles for flashbulb
// memories, and a memory predicted to go unaccessed for over
// predictedStaleDays is additionally eligible regardless of importance. A
// memory the Reference Counter reports as protected (total ref count > 0)
// is never a gen-2 candidate (spec §4.G, testable property #8) — the veto
// is applied here rather than left solely to the Memory Store's archive
// call, so Collect's own CandidateIDs never name a protected id.
func (g *GC) IsCandidate(c Candidate, generation types.Generation) bool {
	switch generation {
	case types.GenNursery:
		return c.AccessCount == 0
	case types.GenYoung:
		return c.AccessCount < gen1MaxAccessCount && c.Importance <= gen1MaxImportance
	case types.GenTenured:
		if c.Protected {
			return false
		}

		stalenessWindow := gen2StalenessDays
		if tag, _ := g.emotions.Get(c.MemoryID); tag != nil && tag.Flashbulb {
			stalenessWindow *= flashbulbMultiplier
		}

		stale := c.LastAccessed == nil
		if c.LastAccessed != nil {
			stale = g.clock.Now().Sub(*c.LastAccessed).Hours()/24.0 >= stalenessWindow
		}

		baseRule := c.Importance < gen2MaxImportance && !c.HasRelationshipLinks && stale
		predictedRule := c.PredictedDaysToNextAccess > predictedStaleDays
		return baseRule || predictedRule
	default:
		return false
	}
}

// CollectionResult is the outcome of one collection pass over a generation.
type CollectionResult struct {
	Generation       types.Generation
	CandidateIDs     []string
	PromotedIDs      []string
	TotalInGeneration int
}

// Collect classifies every candidate in candidates (all assumed to be in
// generation) into archive-candidates or promotion-survivors, logs a
// gc_events row, and persists each survivor's promoted generation.
func (g *GC) Collect(generation types.Generation, candidates []Candidate) (*CollectionResult, error) {
	result := &CollectionResult{Generation: generation, TotalInGeneration: len(candidates)}

	for _, c := range candidates {
		if g.IsCandidate(c, generation) {
			result.CandidateIDs = append(result.CandidateIDs, c.MemoryID)
			continue
		}

		next := generation
		if next < types.GenTenured {
			next++
		}
		if err := g.promote(c.MemoryID, next); err != nil {
			return nil, err
		}
		result.PromotedIDs = append(result.PromotedIDs, c.MemoryID)
	}

	if err := g.logEvent(generation, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (g *GC) promote(memoryID string, next types.Generation) error {
	now := g.clock.Now().UTC().Format(time.RFC3339)
	query := g.db.Bind(`
		INSERT INTO memory_generations (memory_id, generation, promoted_at, previous_generation, survived_count, created_at)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT(memory_id) DO UPDATE SET
			previous_generation = memory_generations.generation,
			generation = excluded.generation,
			promoted_at = excluded.promoted_at,
			survived_count = memory_generations.survived_count + 1
	`)
	_, err := g.db.Exec(query, memoryID, int(next), now, int(next)-1, now)
	if err != nil {
		return fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	return nil
}

func (g *GC) logEvent(generation types.Generation, result *CollectionResult) error {
	now := g.clock.Now().UTC().Format(time.RFC3339)
	query := g.db.Bind(`
		INSERT INTO gc_events (memory_id, action, generation, reason, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	_, err := g.db.Exec(query, "batch", "collect", int(generation),
		fmt.Sprintf("collected=%d promoted=%d total=%d", len(result.CandidateIDs), len(result.PromotedIDs), result.TotalInGeneration),
		now)
	if err != nil {
		return fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	return nil
}
