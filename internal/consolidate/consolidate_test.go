package consolidate_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/scrypster/mnemora/internal/clock"
	"github.com/scrypster/mnemora/internal/consolidate"
	"github.com/scrypster/mnemora/internal/db"
	"github.com/scrypster/mnemora/internal/dedup"
	"github.com/scrypster/mnemora/internal/graph"
	"github.com/scrypster/mnemora/internal/reinforce"
	"github.com/scrypster/mnemora/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConsolidator(t *testing.T) *consolidate.Consolidator {
	t.Helper()
	fc := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	conn, err := db.Open(filepath.Join(t.TempDir(), "mnemora.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	memStore, err := store.New(t.TempDir(), fc)
	require.NoError(t, err)

	dedupRegistry := dedup.New(conn, fc, 0)
	g := graph.New(conn, fc)
	scheduler := reinforce.New(conn, fc, nil)

	return consolidate.New(nil, nil, dedupRegistry, memStore, g, scheduler)
}

func TestConsolidate_ExtractsAndSavesLongTurns(t *testing.T) {
	c := newConsolidator(t)
	messages := []consolidate.Message{
		{Role: "user", Content: "ok"},
		{Role: "assistant", Content: "We decided to go with PostgreSQL for the new service instead of MySQL."},
		{Role: "user", Content: "thanks"},
	}

	report, err := c.Consolidate(context.Background(), "proj1", "", messages)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ExtractedCount)
	assert.Equal(t, 1, report.SavedCount)
	assert.Equal(t, 0, report.DedupedCount)
	require.Len(t, report.SavedMemories, 1)
	assert.Equal(t, "proj1", report.SavedMemories[0].ProjectID)
}

func TestConsolidate_DedupsRepeatedContent(t *testing.T) {
	c := newConsolidator(t)
	messages := []consolidate.Message{
		{Role: "assistant", Content: "We decided to go with PostgreSQL for the new service instead of MySQL."},
	}

	_, err := c.Consolidate(context.Background(), "proj1", "", messages)
	require.NoError(t, err)

	report, err := c.Consolidate(context.Background(), "proj1", "", messages)
	require.NoError(t, err)
	assert.Equal(t, 0, report.SavedCount)
	assert.Equal(t, 1, report.DedupedCount)
}

func TestConsolidate_SkipsShortAcknowledgements(t *testing.T) {
	c := newConsolidator(t)
	messages := []consolidate.Message{
		{Role: "user", Content: "ok"},
		{Role: "user", Content: "sure thing"},
	}
	report, err := c.Consolidate(context.Background(), "proj1", "", messages)
	require.NoError(t, err)
	assert.Equal(t, 0, report.ExtractedCount)
	assert.Equal(t, 0.0, report.SessionQuality)
}

func TestConsolidate_SessionQualityReflectsHighImportanceRatio(t *testing.T) {
	c := newConsolidator(t)
	messages := []consolidate.Message{
		{Role: "assistant", Content: "We decided to go with PostgreSQL for the new service instead of MySQL."},
		{Role: "assistant", Content: "The weather this afternoon is mild and pleasant for a walk outside."},
	}
	report, err := c.Consolidate(context.Background(), "proj1", "", messages)
	require.NoError(t, err)
	assert.Equal(t, 2, report.ExtractedCount)
	assert.InDelta(t, 0.5, report.SessionQuality, 1e-9)
}

func TestHeuristicExtractor_CapsConfidence(t *testing.T) {
	e := consolidate.HeuristicExtractor{}
	candidates, err := e.Extract(context.Background(), []consolidate.Message{
		{Role: "assistant", Content: "The deployment pipeline now runs integration tests before staging."},
	})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.LessOrEqual(t, candidates[0].Confidence, 0.6)
}
