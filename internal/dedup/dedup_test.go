package dedup_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/scrypster/mnemora/internal/clock"
	"github.com/scrypster/mnemora/internal/db"
	"github.com/scrypster/mnemora/internal/dedup"
	"github.com/scrypster/mnemora/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *dedup.Registry {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "mnemora.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	c := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return dedup.New(conn, c, 0)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "hello world", dedup.Normalize("Hello, World!"))
	assert.Equal(t, "a b c", dedup.Normalize("  A   B\tC "))
}

func TestCheck_ExactBeatsNormalized(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Register("mem-1", "Hello, World!", nil)
	require.NoError(t, err)

	result, err := r.Check("Hello, World!", nil)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Equal(t, types.DedupExact, result.Level)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestCheck_NormalizedMatch(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Register("mem-1", "Hello, World!", nil)
	require.NoError(t, err)

	result, err := r.Check("hello world", nil)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Equal(t, types.DedupNormalized, result.Level)
	assert.InDelta(t, 0.9, result.Confidence, 1e-9)
}

func TestCheck_SemanticMatch(t *testing.T) {
	r := newRegistry(t)
	embedding := []float64{0.9, -0.9, 0.1}
	_, err := r.Register("mem-1", "completely different text A", embedding)
	require.NoError(t, err)

	result, err := r.Check("completely different text B", embedding)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Equal(t, types.DedupSemantic, result.Level)
	assert.InDelta(t, 0.7, result.Confidence, 1e-9)
}

func TestCheck_NoMatch(t *testing.T) {
	r := newRegistry(t)
	result, err := r.Check("never seen before", nil)
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, types.DedupNone, result.Level)
}
