// Package emotion implements emotional tagging (SPEC_FULL.md's augmentation
// to spec §4.F/§4.H, grounded in original_source/src/emotional_tagging.py
// and the GLOSSARY's "flashbulb memory"): an arousal/valence annotation per
// memory, with automatic flashbulb classification at high arousal.
package emotion

import (
	"fmt"
	"time"

	"github.com/scrypster/mnemora/internal/clock"
	"github.com/scrypster/mnemora/internal/db"
	"github.com/scrypster/mnemora/pkg/mnemerr"
	"github.com/scrypster/mnemora/pkg/types"
)

// Store persists emotional tags keyed by memory id.
type Store struct {
	db    *db.DB
	clock clock.Clock
}

// New creates a Store.
func New(conn *db.DB, c clock.Clock) *Store {
	return &Store{db: conn, clock: c}
}

// Tag records arousal/valence for memoryID, classifying flashbulb status
// per types.FlashbulbArousalThreshold.
func (s *Store) Tag(memoryID string, arousal, valence float64) (*types.EmotionalTag, error) {
	tag := &types.EmotionalTag{
		MemoryID:  memoryID,
		Arousal:   arousal,
		Valence:   valence,
		Flashbulb: arousal >= types.FlashbulbArousalThreshold,
		UpdatedAt: s.clock.Now(),
	}

	flashbulb := 0
	if tag.Flashbulb {
		flashbulb = 1
	}
	query := s.db.Bind(`
		INSERT INTO emotional_tags (memory_id, valence, arousal, flashbulb, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(memory_id) DO UPDATE SET
			valence = excluded.valence, arousal = excluded.arousal, flashbulb = excluded.flashbulb
	`)
	if _, err := s.db.Exec(query, memoryID, valence, arousal, flashbulb, tag.UpdatedAt.UTC().Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	return tag, nil
}

// Get returns the emotional tag for memoryID, or nil if none is recorded.
func (s *Store) Get(memoryID string) (*types.EmotionalTag, error) {
	query := s.db.Bind(`SELECT valence, arousal, flashbulb, created_at FROM emotional_tags WHERE memory_id = ?`)
	var valence, arousal float64
	var flashbulb int
	var createdAt string
	err := s.db.QueryRow(query, memoryID).Scan(&valence, &arousal, &flashbulb, &createdAt)
	if err != nil {
		return nil, nil
	}
	updatedAt, _ := time.Parse(time.RFC3339, createdAt)
	return &types.EmotionalTag{
		MemoryID:  memoryID,
		Arousal:   arousal,
		Valence:   valence,
		Flashbulb: flashbulb != 0,
		UpdatedAt: updatedAt,
	}, nil
}
