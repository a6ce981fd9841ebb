package db_test

import (
	"path/filepath"
	"testing"

	"github.com/scrypster/mnemora/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLiteAppliesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mnemora.db")
	conn, err := db.Open(path)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "sqlite", conn.Driver)

	var name string
	err = conn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='memory_relationships'").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "memory_relationships", name)
}

func TestRebind_Postgres(t *testing.T) {
	got := db.Rebind("postgres", "SELECT * FROM t WHERE a = ? AND b = ?")
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", got)
}

func TestRebind_SQLiteUnchanged(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ?"
	assert.Equal(t, q, db.Rebind("sqlite", q))
}
