package dedup

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/scrypster/mnemora/internal/clock"
	"github.com/scrypster/mnemora/internal/db"
	"github.com/scrypster/mnemora/pkg/mnemerr"
	"github.com/scrypster/mnemora/pkg/types"
)

// Registry is the dedup hash registry plus events log, backed by the
// content_hashes and dedup_events tables.
type Registry struct {
	db      *db.DB
	clock   clock.Clock
	buckets int
}

// New creates a Registry. buckets configures SemanticHash's quantization
// granularity (0 selects DefaultSemanticBuckets).
func New(conn *db.DB, c clock.Clock, buckets int) *Registry {
	if buckets <= 0 {
		buckets = DefaultSemanticBuckets
	}
	return &Registry{db: conn, clock: c, buckets: buckets}
}

// Register records id's three hashes, computing them from content and the
// optional embedding. A later call for the same id overwrites its hashes.
func (r *Registry) Register(id, content string, embedding []float64) (types.ContentHash, error) {
	hashes := types.ContentHash{
		Exact:      ExactHash(content),
		Normalized: NormalizedHash(content),
	}
	if embedding != nil {
		hashes.Semantic = SemanticHash(embedding, r.buckets)
	}

	now := r.clock.Now().UTC().Format(time.RFC3339)
	query := r.db.Bind(`
		INSERT INTO content_hashes (memory_id, exact_hash, normalized_hash, semantic_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(memory_id) DO UPDATE SET
			exact_hash = excluded.exact_hash,
			normalized_hash = excluded.normalized_hash,
			semantic_hash = excluded.semantic_hash
	`)
	if _, err := r.db.Exec(query, id, hashes.Exact, hashes.Normalized, nullable(hashes.Semantic), now); err != nil {
		return types.ContentHash{}, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	return hashes, nil
}

// Check classifies content (and optionally embedding) against the registry,
// in priority order: exact, then normalized, then semantic. It does not
// register the candidate; callers call Register separately for survivors.
func (r *Registry) Check(content string, embedding []float64) (types.DedupResult, error) {
	exact := ExactHash(content)
	if id, ok, err := r.lookup("exact_hash", exact); err != nil {
		return types.DedupResult{}, err
	} else if ok {
		result := types.DedupResult{Duplicate: true, Level: types.DedupExact, Confidence: 1.0, MatchedID: id}
		r.logEvent(content, id, types.DedupExact)
		return result, nil
	}

	normalized := NormalizedHash(content)
	if id, ok, err := r.lookup("normalized_hash", normalized); err != nil {
		return types.DedupResult{}, err
	} else if ok {
		result := types.DedupResult{Duplicate: true, Level: types.DedupNormalized, Confidence: 0.9, MatchedID: id}
		r.logEvent(content, id, types.DedupNormalized)
		return result, nil
	}

	if embedding != nil {
		semantic := SemanticHash(embedding, r.buckets)
		if id, ok, err := r.lookup("semantic_hash", semantic); err != nil {
			return types.DedupResult{}, err
		} else if ok {
			result := types.DedupResult{Duplicate: true, Level: types.DedupSemantic, Confidence: 0.7, MatchedID: id}
			r.logEvent(content, id, types.DedupSemantic)
			return result, nil
		}
	}

	return types.DedupResult{Duplicate: false, Level: types.DedupNone}, nil
}

func (r *Registry) lookup(column, value string) (string, bool, error) {
	if value == "" {
		return "", false, nil
	}
	query := r.db.Bind(fmt.Sprintf("SELECT memory_id FROM content_hashes WHERE %s = ? LIMIT 1", column))
	var id string
	err := r.db.QueryRow(query, value).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	return id, true, nil
}

func (r *Registry) logEvent(content, matchedID string, level types.DedupLevel) {
	now := r.clock.Now().UTC().Format(time.RFC3339)
	query := r.db.Bind(`
		INSERT INTO dedup_events (candidate_id, matched_id, level, decision, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	_, _ = r.db.Exec(query, ExactHash(content), matchedID, string(level), "duplicate", now)
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
