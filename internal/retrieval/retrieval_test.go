package retrieval_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/scrypster/mnemora/internal/accesslog"
	"github.com/scrypster/mnemora/internal/clock"
	"github.com/scrypster/mnemora/internal/collaborator"
	"github.com/scrypster/mnemora/internal/db"
	"github.com/scrypster/mnemora/internal/embedcache"
	"github.com/scrypster/mnemora/internal/graph"
	"github.com/scrypster/mnemora/internal/retrieval"
	"github.com/scrypster/mnemora/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) (*retrieval.Engine, *store.Store, *clock.Fixed) {
	t.Helper()
	fc := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	conn, err := db.Open(filepath.Join(t.TempDir(), "mnemora.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	memStore, err := store.New(t.TempDir(), fc)
	require.NoError(t, err)

	embedCache, err := embedcache.New(conn, fc, collaborator.HeuristicEmbedder{}, 0)
	require.NoError(t, err)

	g := graph.New(conn, fc)
	searchCache := retrieval.NewSearchCache(conn, fc)
	accessLog := accesslog.New(conn, fc)

	engine := retrieval.New(memStore, embedCache, g, searchCache, accessLog, fc)
	return engine, memStore, fc
}

func TestSearch_RanksByContentOverlap(t *testing.T) {
	engine, memStore, _ := newEngine(t)

	_, err := memStore.Create(store.CreateParams{Content: "dark mode is my favorite editor setting", Importance: 0.6})
	require.NoError(t, err)
	_, err = memStore.Create(store.CreateParams{Content: "pizza toppings I like best", Importance: 0.6})
	require.NoError(t, err)
	_, err = memStore.Create(store.CreateParams{Content: "dark mode keyboard shortcuts", Importance: 0.6})
	require.NoError(t, err)

	results, err := engine.Search(context.Background(), "dark mode", retrieval.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Contains(t, results[0].Memory.Content, "dark mode")
	assert.Contains(t, results[1].Memory.Content, "dark mode")
}

func TestSearch_CachesResultIDsAcrossCalls(t *testing.T) {
	engine, memStore, _ := newEngine(t)
	for i := 0; i < 3; i++ {
		_, err := memStore.Create(store.CreateParams{Content: "alpha beta gamma delta epsilon", Importance: 0.5})
		require.NoError(t, err)
	}

	first, err := engine.Search(context.Background(), "alpha beta", retrieval.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, first, 3)

	second, err := engine.Search(context.Background(), "alpha beta", retrieval.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second))
}

func TestSearch_CacheHitReturnsPersistedOrderWithoutRescoring(t *testing.T) {
	engine, memStore, _ := newEngine(t)
	for i := 0; i < 3; i++ {
		_, err := memStore.Create(store.CreateParams{Content: "alpha beta gamma delta epsilon", Importance: 0.5})
		require.NoError(t, err)
	}

	first, err := engine.Search(context.Background(), "alpha beta", retrieval.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.NotEqual(t, "Cached match from a prior search", first[0].Explanation)

	second, err := engine.Search(context.Background(), "alpha beta", retrieval.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i, r := range second {
		assert.Equal(t, first[i].Memory.ID, r.Memory.ID)
		assert.Equal(t, "Cached match from a prior search", r.Explanation)
	}
}
