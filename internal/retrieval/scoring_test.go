package retrieval_test

import (
	"testing"
	"time"

	"github.com/scrypster/mnemora/internal/retrieval"
	"github.com/scrypster/mnemora/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, retrieval.CosineSimilarity([]float64{1, 0}, []float64{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, retrieval.CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Equal(t, 0.0, retrieval.CosineSimilarity([]float64{1}, []float64{1, 2}))
}

func TestRecency_DecaysLinearlyToZero(t *testing.T) {
	assert.Equal(t, 1.0, retrieval.Recency(0))
	assert.InDelta(t, 0.5, retrieval.Recency(182.5), 1e-2)
	assert.Equal(t, 0.0, retrieval.Recency(1000))
}

func TestScore_RanksMoreSimilarContentHigher(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candidates := []*types.Memory{
		{ID: "m1", Content: "dark mode preferences for the editor", Created: now, Updated: now, Importance: 0.5},
		{ID: "m2", Content: "favorite pizza toppings", Created: now, Updated: now, Importance: 0.5},
	}
	embeddings := map[string][]float64{
		"m1": {1, 0},
		"m2": {0, 1},
	}
	ageDays := map[string]float64{"m1": 1, "m2": 1}

	results := retrieval.Score("dark mode", []float64{1, 0}, candidates, embeddings, ageDays, nil)
	require.Len(t, results, 2)
	assert.Equal(t, "m1", results[0].Memory.ID)
	assert.NotEmpty(t, results[0].Explanation)
	assert.Greater(t, results[0].Combined, results[1].Combined)
}

func TestScore_TiesBrokenByUpdatedThenID(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candidates := []*types.Memory{
		{ID: "b", Content: "same", Created: now, Updated: now, Importance: 0.5},
		{ID: "a", Content: "same", Created: now, Updated: now, Importance: 0.5},
	}
	embeddings := map[string][]float64{"a": {1, 0}, "b": {1, 0}}
	ageDays := map[string]float64{"a": 1, "b": 1}

	results := retrieval.Score("same", []float64{1, 0}, candidates, embeddings, ageDays, nil)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Memory.ID)
	assert.Equal(t, "b", results[1].Memory.ID)
}
