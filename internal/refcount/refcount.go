// Package refcount implements the Reference Counter (spec §4.G): per-memory
// incoming reference counts by ref_type, clamp-at-zero decrement, bulk
// recomputation from the relationship graph, and an archival veto.
package refcount

import (
	"fmt"
	"time"

	"github.com/scrypster/mnemora/internal/clock"
	"github.com/scrypster/mnemora/internal/db"
	"github.com/scrypster/mnemora/pkg/mnemerr"
	"github.com/scrypster/mnemora/pkg/types"
)

// Counter is the reference counter, backed by reference_counts.
type Counter struct {
	db    *db.DB
	clock clock.Clock
}

// New creates a Counter.
func New(conn *db.DB, c clock.Clock) *Counter {
	return &Counter{db: conn, clock: c}
}

// Increment adds 1 to memoryID's count for refType.
func (c *Counter) Increment(memoryID string, refType types.RefType) error {
	return c.adjust(memoryID, refType, 1)
}

// Decrement subtracts 1 from memoryID's count for refType, clamped at 0.
func (c *Counter) Decrement(memoryID string, refType types.RefType) error {
	return c.adjust(memoryID, refType, -1)
}

func (c *Counter) adjust(memoryID string, refType types.RefType, delta int) error {
	if !types.IsValidRefType(refType) {
		return fmt.Errorf("%w: %q", mnemerr.ErrInvalidRefType, refType)
	}

	current, err := c.countFor(memoryID, refType)
	if err != nil {
		return err
	}
	next := current + delta
	if next < 0 {
		next = 0
	}

	now := c.clock.Now().UTC().Format(time.RFC3339)
	query := c.db.Bind(`
		INSERT INTO reference_counts (memory_id, ref_type, count, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(memory_id, ref_type) DO UPDATE SET count = excluded.count, updated_at = excluded.updated_at
	`)
	if _, err := c.db.Exec(query, memoryID, string(refType), next, now); err != nil {
		return fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	return nil
}

func (c *Counter) countFor(memoryID string, refType types.RefType) (int, error) {
	query := c.db.Bind(`SELECT count FROM reference_counts WHERE memory_id = ? AND ref_type = ?`)
	var count int
	err := c.db.QueryRow(query, memoryID, string(refType)).Scan(&count)
	if err != nil {
		return 0, nil // no row yet means zero
	}
	return count, nil
}

// Get returns the full per-type breakdown for memoryID.
func (c *Counter) Get(memoryID string) (*types.ReferenceCount, error) {
	query := c.db.Bind(`SELECT ref_type, count FROM reference_counts WHERE memory_id = ?`)
	rows, err := c.db.Query(query, memoryID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	defer rows.Close()

	rc := &types.ReferenceCount{MemoryID: memoryID, Counts: map[types.RefType]int{}}
	for rows.Next() {
		var refType string
		var count int
		if err := rows.Scan(&refType, &count); err != nil {
			return nil, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
		}
		rc.Counts[types.RefType(refType)] = count
	}
	return rc, rows.Err()
}

// BulkUpdateFromRelationships recomputes only the "relationship" ref_type
// counts from scratch, based on edges; other ref types are left untouched.
// targetCounts maps memory id -> number of incoming relationship edges.
func (c *Counter) BulkUpdateFromRelationships(targetCounts map[string]int) error {
	now := c.clock.Now().UTC().Format(time.RFC3339)
	query := c.db.Bind(`
		INSERT INTO reference_counts (memory_id, ref_type, count, updated_at)
		VALUES (?, 'relationship', ?, ?)
		ON CONFLICT(memory_id, ref_type) DO UPDATE SET count = excluded.count, updated_at = excluded.updated_at
	`)
	for id, count := range targetCounts {
		if _, err := c.db.Exec(query, id, count, now); err != nil {
			return fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
		}
	}
	return nil
}

// IsProtected reports whether memoryID has any references at all
// (total > 0), used as an archival veto.
func (c *Counter) IsProtected(memoryID string) (bool, error) {
	rc, err := c.Get(memoryID)
	if err != nil {
		return false, err
	}
	return rc.Total() > 0, nil
}
