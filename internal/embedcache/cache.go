// Package embedcache implements the two-tier Embedding Cache (spec §4.C):
// a durable tier keyed by content hash, and a volatile LRU tier in front of
// it. Grounded on the teacher's embedding_provider.go for the durable-store
// shape (binary vector serialization, upsert-on-conflict) and on
// hashicorp/golang-lru/v2 for the volatile tier, a dependency present in
// the teacher's go.mod as an indirect transitive of gobreaker's toolchain
// neighbors and promoted to direct use here since the spec calls for an
// explicit LRU contract (ordering invariant, fixed capacity).
package embedcache

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/scrypster/mnemora/internal/clock"
	"github.com/scrypster/mnemora/internal/collaborator"
	"github.com/scrypster/mnemora/internal/dedup"
	"github.com/scrypster/mnemora/internal/db"
	"github.com/scrypster/mnemora/pkg/mnemerr"
)

// DefaultLRUCapacity is the volatile tier's default entry capacity (spec §4.C).
const DefaultLRUCapacity = 1000

// Cache is the two-tier embedding cache.
type Cache struct {
	db       *db.DB
	clock    clock.Clock
	embedder collaborator.Embedder
	lru      *lru.Cache[string, []float64]
}

// New creates a Cache with the given volatile-tier capacity (0 selects
// DefaultLRUCapacity).
func New(conn *db.DB, c clock.Clock, embedder collaborator.Embedder, capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultLRUCapacity
	}
	l, err := lru.New[string, []float64](capacity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	return &Cache{db: conn, clock: c, embedder: embedder, lru: l}, nil
}

// Get returns the embedding for content: LRU hit, then durable hit
// (promoted into the LRU), then computed via the embedder and persisted.
// After any call, hash(content) is the LRU's most-recently-used entry.
func (c *Cache) Get(ctx context.Context, content string) ([]float64, error) {
	hash := dedup.ExactHash(content)

	if v, ok := c.lru.Get(hash); ok {
		return v, nil
	}

	if v, err := c.loadDurable(hash); err == nil {
		c.touchDurable(hash)
		c.lru.Add(hash, v)
		return v, nil
	} else if err != mnemerr.ErrNotFound {
		return nil, err
	}

	v, err := c.embedder.Embed(ctx, content)
	if err != nil {
		return nil, err
	}
	if err := c.persist(hash, v); err != nil {
		return nil, err
	}
	c.lru.Add(hash, v)
	return v, nil
}

// BatchCompute filters hashes already present in the durable tier, calls
// Embed once for each remaining content, persists the results, and returns
// a map of newly computed hash -> vector only. The remainder is not sent to
// the embedder as a single batched call.
func (c *Cache) BatchCompute(ctx context.Context, contents []string) (map[string][]float64, error) {
	out := make(map[string][]float64)

	for _, content := range contents {
		hash := dedup.ExactHash(content)
		if _, err := c.loadDurable(hash); err == nil {
			continue // already persisted
		}

		v, err := c.embedder.Embed(ctx, content)
		if err != nil {
			return nil, err
		}
		if err := c.persist(hash, v); err != nil {
			return nil, err
		}
		c.lru.Add(hash, v)
		out[hash] = v
	}

	return out, nil
}

// Cleanup removes durable entries whose accessed_at predates now - days.
func (c *Cache) Cleanup(days int) (int64, error) {
	cutoff := c.clock.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)
	query := c.db.Bind("DELETE FROM embeddings WHERE accessed_at < ?")
	result, err := c.db.Exec(query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	return result.RowsAffected()
}

func (c *Cache) loadDurable(hash string) ([]float64, error) {
	query := c.db.Bind("SELECT dimensions, vector FROM embeddings WHERE memory_id = ?")
	var dims int
	var blob []byte
	err := c.db.QueryRow(query, hash).Scan(&dims, &blob)
	if err != nil {
		return nil, mnemerr.ErrNotFound
	}
	return decodeVector(blob, dims), nil
}

func (c *Cache) touchDurable(hash string) {
	now := c.clock.Now().UTC().Format(time.RFC3339)
	query := c.db.Bind("UPDATE embeddings SET accessed_at = ? WHERE memory_id = ?")
	_, _ = c.db.Exec(query, now, hash)
}

func (c *Cache) persist(hash string, v []float64) error {
	now := c.clock.Now().UTC().Format(time.RFC3339)

	if c.db.Driver == "postgres" && c.db.PgvectorAvailable {
		query := c.db.Bind(`
			INSERT INTO embeddings (memory_id, model, dimensions, vector, vector_native, created_at, accessed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(memory_id) DO UPDATE SET
				model = excluded.model, dimensions = excluded.dimensions,
				vector = excluded.vector, vector_native = excluded.vector_native,
				accessed_at = excluded.accessed_at
		`)
		if _, err := c.db.Exec(query, hash, c.embedder.Model(), len(v), encodeVector(v), toPgvector(v), now, now); err != nil {
			return fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
		}
		return nil
	}

	query := c.db.Bind(`
		INSERT INTO embeddings (memory_id, model, dimensions, vector, created_at, accessed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(memory_id) DO UPDATE SET
			model = excluded.model, dimensions = excluded.dimensions,
			vector = excluded.vector, accessed_at = excluded.accessed_at
	`)
	if _, err := c.db.Exec(query, hash, c.embedder.Model(), len(v), encodeVector(v), now, now); err != nil {
		return fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	return nil
}

// toPgvector narrows a []float64 embedding to the []float32 precision
// pgvector stores natively (mirroring the teacher's embedding_provider.go).
func toPgvector(v []float64) pgvector.Vector {
	f32 := make([]float32, len(v))
	for i, f := range v {
		f32[i] = float32(f)
	}
	return pgvector.NewVector(f32)
}

func encodeVector(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(buf []byte, dims int) []float64 {
	v := make([]float64, dims)
	for i := 0; i < dims && (i+1)*8 <= len(buf); i++ {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return v
}
