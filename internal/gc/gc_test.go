package gc_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/scrypster/mnemora/internal/clock"
	"github.com/scrypster/mnemora/internal/db"
	"github.com/scrypster/mnemora/internal/emotion"
	"github.com/scrypster/mnemora/internal/gc"
	"github.com/scrypster/mnemora/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGC(t *testing.T) (*gc.GC, *emotion.Store, clock.Clock) {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "mnemora.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	c := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	emotions := emotion.New(conn, c)
	return gc.New(conn, c, emotions), emotions, c
}

func TestGenerationOf_Boundaries(t *testing.T) {
	assert.Equal(t, types.GenNursery, gc.GenerationOf(0))
	assert.Equal(t, types.GenNursery, gc.GenerationOf(6.99))
	assert.Equal(t, types.GenYoung, gc.GenerationOf(7))
	assert.Equal(t, types.GenYoung, gc.GenerationOf(89.99))
	assert.Equal(t, types.GenTenured, gc.GenerationOf(90))
	assert.Equal(t, types.GenTenured, gc.GenerationOf(10000))
}

func TestIsCandidate_Gen0NeverAccessed(t *testing.T) {
	g, _, _ := newGC(t)
	assert.True(t, g.IsCandidate(gc.Candidate{MemoryID: "m1", AccessCount: 0}, types.GenNursery))
	assert.False(t, g.IsCandidate(gc.Candidate{MemoryID: "m1", AccessCount: 1}, types.GenNursery))
}

func TestIsCandidate_Gen1LowAccessAndImportance(t *testing.T) {
	g, _, _ := newGC(t)
	assert.True(t, g.IsCandidate(gc.Candidate{MemoryID: "m1", AccessCount: 1, Importance: 0.5}, types.GenYoung))
	assert.False(t, g.IsCandidate(gc.Candidate{MemoryID: "m1", AccessCount: 2, Importance: 0.5}, types.GenYoung))
	assert.False(t, g.IsCandidate(gc.Candidate{MemoryID: "m1", AccessCount: 1, Importance: 0.6}, types.GenYoung))
}

func TestIsCandidate_Gen2RequiresLowImportanceNoLinksAndStaleness(t *testing.T) {
	g, _, c := newGC(t)
	fc := c.(*clock.Fixed)
	stale := fc.Now().Add(-61 * 24 * time.Hour)

	assert.True(t, g.IsCandidate(gc.Candidate{
		MemoryID: "m1", Importance: 0.1, HasRelationshipLinks: false, LastAccessed: &stale,
	}, types.GenTenured))

	fresh := fc.Now().Add(-10 * 24 * time.Hour)
	assert.False(t, g.IsCandidate(gc.Candidate{
		MemoryID: "m1", Importance: 0.1, HasRelationshipLinks: false, LastAccessed: &fresh,
	}, types.GenTenured))

	assert.False(t, g.IsCandidate(gc.Candidate{
		MemoryID: "m1", Importance: 0.1, HasRelationshipLinks: true, LastAccessed: &stale,
	}, types.GenTenured))

	assert.False(t, g.IsCandidate(gc.Candidate{
		MemoryID: "m1", Importance: 0.2, HasRelationshipLinks: false, LastAccessed: &stale,
	}, types.GenTenured))
}

func TestIsCandidate_Gen2NeverAccessedIsStale(t *testing.T) {
	g, _, _ := newGC(t)
	assert.True(t, g.IsCandidate(gc.Candidate{
		MemoryID: "m1", Importance: 0.1, HasRelationshipLinks: false, LastAccessed: nil,
	}, types.GenTenured))
}

func TestIsCandidate_Gen2FlashbulbDoublesStalenessWindow(t *testing.T) {
	g, emotions, c := newGC(t)
	fc := c.(*clock.Fixed)
	_, err := emotions.Tag("m1", 0.9, 0.0)
	require.NoError(t, err)

	// 70 days stale: past the base 60-day window but inside the doubled 120-day window.
	past70 := fc.Now().Add(-70 * 24 * time.Hour)
	assert.False(t, g.IsCandidate(gc.Candidate{
		MemoryID: "m1", Importance: 0.1, HasRelationshipLinks: false, LastAccessed: &past70,
	}, types.GenTenured))

	past121 := fc.Now().Add(-121 * 24 * time.Hour)
	assert.True(t, g.IsCandidate(gc.Candidate{
		MemoryID: "m1", Importance: 0.1, HasRelationshipLinks: false, LastAccessed: &past121,
	}, types.GenTenured))
}

func TestIsCandidate_Gen2PredictedStalenessOverridesImportance(t *testing.T) {
	g, _, c := newGC(t)
	fc := c.(*clock.Fixed)
	fresh := fc.Now()
	assert.True(t, g.IsCandidate(gc.Candidate{
		MemoryID: "m1", Importance: 0.9, HasRelationshipLinks: true, LastAccessed: &fresh,
		PredictedDaysToNextAccess: 200,
	}, types.GenTenured))
}

func TestIsCandidate_Gen2ProtectedNeverCollected(t *testing.T) {
	g, _, c := newGC(t)
	fc := c.(*clock.Fixed)
	stale := fc.Now().Add(-200 * 24 * time.Hour)

	assert.False(t, g.IsCandidate(gc.Candidate{
		MemoryID: "m1", Importance: 0.0, HasRelationshipLinks: false, LastAccessed: &stale,
		PredictedDaysToNextAccess: 365, Protected: true,
	}, types.GenTenured))
}

func TestCollect_PromotesSurvivorsAndCollectsCandidates(t *testing.T) {
	g, _, _ := newGC(t)
	candidates := []gc.Candidate{
		{MemoryID: "dead", AccessCount: 0},
		{MemoryID: "alive", AccessCount: 1},
	}
	result, err := g.Collect(types.GenNursery, candidates)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"dead"}, result.CandidateIDs)
	assert.ElementsMatch(t, []string{"alive"}, result.PromotedIDs)
	assert.Equal(t, 2, result.TotalInGeneration)
}

func TestPredictStaleness_TooFewAccessesYieldsZero(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0.0, gc.PredictStaleness(nil, now))
	assert.Equal(t, 0.0, gc.PredictStaleness([]time.Time{now}, now))
}

func TestPredictStaleness_RegularIntervalProjectsForward(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	accesses := []time.Time{
		base,
		base.Add(10 * 24 * time.Hour),
		base.Add(20 * 24 * time.Hour),
	}
	now := base.Add(25 * 24 * time.Hour)
	predicted := gc.PredictStaleness(accesses, now)
	// five days since the last access, ten-day average gap projected forward.
	assert.InDelta(t, 10, predicted, 1)
}

func TestPredictStaleness_WideningGapsProjectFurtherOut(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	accesses := []time.Time{
		base,
		base.Add(5 * 24 * time.Hour),
		base.Add(20 * 24 * time.Hour),
	}
	now := base.Add(20 * 24 * time.Hour)
	widening := gc.PredictStaleness(accesses, now)

	narrowing := gc.PredictStaleness([]time.Time{
		base,
		base.Add(20 * 24 * time.Hour),
		base.Add(25 * 24 * time.Hour),
	}, base.Add(25*24*time.Hour))

	assert.Greater(t, widening, narrowing)
}
