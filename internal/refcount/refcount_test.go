package refcount_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/scrypster/mnemora/internal/clock"
	"github.com/scrypster/mnemora/internal/db"
	"github.com/scrypster/mnemora/internal/refcount"
	"github.com/scrypster/mnemora/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCounter(t *testing.T) *refcount.Counter {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "mnemora.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	c := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return refcount.New(conn, c)
}

func TestDecrement_ClampsAtZero(t *testing.T) {
	c := newCounter(t)
	require.NoError(t, c.Decrement("m1", types.RefChunk))

	rc, err := c.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, 0, rc.Counts[types.RefChunk])
}

func TestIncrementAndTotal(t *testing.T) {
	c := newCounter(t)
	require.NoError(t, c.Increment("m1", types.RefChunk))
	require.NoError(t, c.Increment("m1", types.RefDecision))

	rc, err := c.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, 2, rc.Total())
}

func TestIsProtected(t *testing.T) {
	c := newCounter(t)
	protected, err := c.IsProtected("m1")
	require.NoError(t, err)
	assert.False(t, protected)

	require.NoError(t, c.Increment("m1", types.RefSynthesis))
	protected, err = c.IsProtected("m1")
	require.NoError(t, err)
	assert.True(t, protected)
}

func TestAdjust_RejectsInvalidRefType(t *testing.T) {
	c := newCounter(t)
	err := c.Increment("m1", types.RefType("bogus"))
	assert.Error(t, err)
}

func TestBulkUpdateFromRelationships_OnlyTouchesRelationshipType(t *testing.T) {
	c := newCounter(t)
	require.NoError(t, c.Increment("m1", types.RefChunk))

	require.NoError(t, c.BulkUpdateFromRelationships(map[string]int{"m1": 3}))

	rc, err := c.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, 3, rc.Counts[types.RefRelationship])
	assert.Equal(t, 1, rc.Counts[types.RefChunk])
}
