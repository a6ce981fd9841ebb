package retrieval

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/scrypster/mnemora/internal/clock"
	"github.com/scrypster/mnemora/internal/dedup"
	"github.com/scrypster/mnemora/internal/db"
	"github.com/scrypster/mnemora/pkg/mnemerr"
	"github.com/scrypster/mnemora/pkg/types"
)

const (
	// CacheTTL is the per-query cache's lifetime (spec §4.D).
	CacheTTL = 24 * time.Hour

	minCacheableResults = 3
	maxCacheableResults = 100

	// minHydratedResults is the floor below which a cache hit is treated as
	// a miss and recomputed, since enough backing records have since been
	// archived or deleted to make the cached id list stale.
	minHydratedResults = 3
)

// SearchCache is the per-query result cache (spec §4.D), storing only
// ordered result-id lists, never full records.
type SearchCache struct {
	db    *db.DB
	clock clock.Clock
}

// NewSearchCache creates a SearchCache.
func NewSearchCache(conn *db.DB, c clock.Clock) *SearchCache {
	return &SearchCache{db: conn, clock: c}
}

// Key computes the cache key for a query scoped to projectID ("" means
// global).
func Key(query, projectID string) string {
	scope := projectID
	if scope == "" {
		scope = "global"
	}
	return dedup.ExactHash(query + "|" + scope)
}

// Store saves resultIDs under Key(query, projectID) if the count falls in
// [3, 100]; otherwise it is a no-op (the result set is not cacheable). A
// freshly stored entry starts with hits=0 and no last_hit, even when it
// replaces a prior (now-expired, or invalidated) row for the same key.
func (c *SearchCache) Store(query, projectID string, resultIDs []string) error {
	if len(resultIDs) < minCacheableResults || len(resultIDs) > maxCacheableResults {
		return nil
	}
	encoded, err := json.Marshal(resultIDs)
	if err != nil {
		return fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}

	now := c.clock.Now()
	key := Key(query, projectID)
	sqlQuery := c.db.Bind(`
		INSERT INTO search_cache (cache_key, query, project_id, results, hits, last_hit, created_at, expires_at)
		VALUES (?, ?, ?, ?, 0, NULL, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			query = excluded.query, project_id = excluded.project_id,
			results = excluded.results, hits = 0, last_hit = NULL,
			created_at = excluded.created_at, expires_at = excluded.expires_at
	`)
	_, err = c.db.Exec(sqlQuery, key, query, projectID, string(encoded),
		now.UTC().Format(time.RFC3339), now.Add(CacheTTL).UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	return nil
}

// Lookup returns the cached result-id list for (query, projectID), or nil
// if no unexpired entry exists. Every successful lookup counts as a hit
// (spec §3's SearchCacheEntry.hits/last_hit): the row's hits counter is
// incremented and last_hit is set to the current time before the ids are
// returned.
func (c *SearchCache) Lookup(query, projectID string) ([]string, error) {
	key := Key(query, projectID)
	sqlQuery := c.db.Bind(`SELECT results, expires_at FROM search_cache WHERE cache_key = ?`)

	var resultsJSON, expiresAt string
	err := c.db.QueryRow(sqlQuery, key).Scan(&resultsJSON, &expiresAt)
	if err != nil {
		return nil, nil
	}

	expires, _ := time.Parse(time.RFC3339, expiresAt)
	if c.clock.Now().After(expires) {
		return nil, nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(resultsJSON), &ids); err != nil {
		return nil, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}

	touchQuery := c.db.Bind(`UPDATE search_cache SET hits = hits + 1, last_hit = ? WHERE cache_key = ?`)
	if _, err := c.db.Exec(touchQuery, c.clock.Now().UTC().Format(time.RFC3339), key); err != nil {
		return nil, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}

	return ids, nil
}

// Hits returns the current hits counter for (query, projectID), or 0 if no
// entry exists. Used by callers and tests that need to observe the S6
// "second call increments hits from 1 to 2" behavior directly.
func (c *SearchCache) Hits(query, projectID string) (int, error) {
	key := Key(query, projectID)
	sqlQuery := c.db.Bind(`SELECT hits FROM search_cache WHERE cache_key = ?`)
	var hits int
	if err := c.db.QueryRow(sqlQuery, key).Scan(&hits); err != nil {
		return 0, nil
	}
	return hits, nil
}

// Invalidate deletes the exact-key entry for (query, projectID).
func (c *SearchCache) Invalidate(query, projectID string) error {
	key := Key(query, projectID)
	sqlQuery := c.db.Bind(`DELETE FROM search_cache WHERE cache_key = ?`)
	if _, err := c.db.Exec(sqlQuery, key); err != nil {
		return fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	return nil
}

// Sweep deletes all expired entries and returns how many were removed.
func (c *SearchCache) Sweep() (int64, error) {
	now := c.clock.Now().UTC().Format(time.RFC3339)
	sqlQuery := c.db.Bind(`DELETE FROM search_cache WHERE expires_at < ?`)
	result, err := c.db.Exec(sqlQuery, now)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	return result.RowsAffected()
}

// Hydrator resolves a result-id list into live memories, the way the
// orchestrator's Memory Store lookup does; ids that no longer exist or
// that have been archived are silently skipped (not an error).
type Hydrator interface {
	HydrateActive(ids []string) []*types.Memory
}

// Hydrate resolves a cached id list through h, returning (results, true)
// when at least minHydratedResults ids still resolve to active memories,
// or (nil, false) to signal the caller should treat the entry as a miss
// and recompute.
func Hydrate(h Hydrator, ids []string) ([]*types.Memory, bool) {
	hydrated := h.HydrateActive(ids)
	if len(hydrated) < minHydratedResults {
		return nil, false
	}
	return hydrated, true
}
