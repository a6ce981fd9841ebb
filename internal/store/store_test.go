package store_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scrypster/mnemora/internal/clock"
	"github.com/scrypster/mnemora/internal/store"
	"github.com/scrypster/mnemora/pkg/mnemerr"
	"github.com/scrypster/mnemora/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*store.Store, *clock.Fixed) {
	t.Helper()
	c := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s, err := store.New(t.TempDir(), c)
	require.NoError(t, err)
	return s, c
}

func TestCreateAndGet_RoundTrips(t *testing.T) {
	s, _ := newStore(t)

	m, err := s.Create(store.CreateParams{
		Content:    "remember the milk",
		ProjectID:  "proj1",
		Tags:       []string{"todo", "groceries"},
		Importance: 0.6,
		Scope:      types.ScopeProject,
		Confidence: 0.9,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)

	got, err := s.Get(m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, "remember the milk", got.Content)
	assert.Equal(t, []string{"todo", "groceries"}, got.Tags)
	assert.Equal(t, types.StatusActive, got.Status)
}

func TestGet_NotFound(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Get("does-not-exist")
	assert.ErrorIs(t, err, mnemerr.ErrNotFound)
}

func TestGet_RejectsPathTraversal(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Get("../../etc/passwd")
	assert.Error(t, err)
}

func TestUpdate_PreservesCreatedAndID(t *testing.T) {
	s, c := newStore(t)
	m, err := s.Create(store.CreateParams{Content: "v1", Scope: types.ScopeGlobal})
	require.NoError(t, err)

	c.Advance(time.Hour)
	newContent := "v2"
	updated, err := s.Update(m.ID, types.MemoryUpdate{Content: &newContent})
	require.NoError(t, err)

	assert.Equal(t, m.ID, updated.ID)
	assert.Equal(t, m.Created, updated.Created)
	assert.Equal(t, "v2", updated.Content)
	assert.True(t, updated.Updated.After(m.Updated))
}

func TestArchive_MovesAndTagsAndIsIdempotent(t *testing.T) {
	s, _ := newStore(t)
	m, err := s.Create(store.CreateParams{Content: "x", Scope: types.ScopeGlobal, Importance: 0.4})
	require.NoError(t, err)

	ok, err := s.Archive(m.ID, "stale")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Get(m.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusArchived, got.Status)
	assert.True(t, got.HasTag("#archived"))

	again, err := s.Archive(m.ID, "stale")
	require.NoError(t, err)
	assert.False(t, again)
}

func TestList_SkipsCorruptRecords(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Create(store.CreateParams{Content: "good", Scope: types.ScopeGlobal})
	require.NoError(t, err)

	var corrupted []string
	results, err := s.List(store.ListFilter{}, false, func(path string, err error) {
		corrupted = append(corrupted, path)
	})
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Empty(t, corrupted)
}

func TestCreate_WritesFlatFileDirectlyUnderRoot(t *testing.T) {
	root := t.TempDir()
	c := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s, err := store.New(root, c)
	require.NoError(t, err)

	m, err := s.Create(store.CreateParams{Content: "flat layout", Scope: types.ScopeGlobal})
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(root, m.ID+".md"))
	assert.NoError(t, statErr)
}

func TestArchive_WritesDatedMarkdownManifest(t *testing.T) {
	root := t.TempDir()
	c := clock.NewFixed(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC))
	s, err := store.New(root, c)
	require.NoError(t, err)

	m, err := s.Create(store.CreateParams{Content: "to be archived", Scope: types.ScopeGlobal, Importance: 0.3})
	require.NoError(t, err)

	ok, err := s.Archive(m.ID, "no longer relevant")
	require.NoError(t, err)
	assert.True(t, ok)

	manifestPath := filepath.Join(root, "archived", "2026-03-14-archive.md")
	data, err := os.ReadFile(manifestPath)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, m.ID)
	assert.Contains(t, content, "no longer relevant")

	archivedPath := filepath.Join(root, "archived", m.ID+".md")
	_, statErr := os.Stat(archivedPath)
	assert.NoError(t, statErr)

	results, err := s.List(store.ListFilter{}, true, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, m.ID, results[0].ID)
}

func TestList_FiltersByProject(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Create(store.CreateParams{Content: "a", ProjectID: "p1", Scope: types.ScopeProject})
	require.NoError(t, err)
	_, err = s.Create(store.CreateParams{Content: "b", ProjectID: "p2", Scope: types.ScopeProject})
	require.NoError(t, err)

	results, err := s.List(store.ListFilter{ProjectID: "p1"}, false, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Content)
}
