// Package accesslog implements the Access & Retrieval Log (spec §4.F): an
// append-only per-memory event log, access-frequency summaries,
// never-accessed detection, and Gini-coefficient retrieval-imbalance
// detection over a caller-supplied cluster.
package accesslog

import (
	"fmt"
	"sort"
	"time"

	"github.com/scrypster/mnemora/internal/clock"
	"github.com/scrypster/mnemora/internal/db"
	"github.com/scrypster/mnemora/pkg/mnemerr"
	"github.com/scrypster/mnemora/pkg/types"
)

// DefaultGiniThreshold is the imbalance-flag threshold (spec §4.F).
const DefaultGiniThreshold = 0.7

// Log is the access/retrieval log.
type Log struct {
	db    *db.DB
	clock clock.Clock
}

// New creates a Log.
func New(conn *db.DB, c clock.Clock) *Log {
	return &Log{db: conn, clock: c}
}

// Record appends an access event.
func (l *Log) Record(memoryID string, accessType types.AccessType, query string) error {
	if !types.IsValidAccessType(accessType) {
		return fmt.Errorf("%w: %q", mnemerr.ErrInvalidInput, accessType)
	}
	now := l.clock.Now().UTC().Format(time.RFC3339)
	query2 := l.db.Bind(`INSERT INTO memory_access_log (memory_id, access_type, accessed_at, query) VALUES (?, ?, ?, ?)`)
	_, err := l.db.Exec(query2, memoryID, string(accessType), now, nullableString(query))
	if err != nil {
		return fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	return nil
}

// Summary is the access-frequency summary for a single memory.
type Summary struct {
	MemoryID     string
	Total        int
	ByType       map[types.AccessType]int
	LastAccessed *time.Time
}

// SummaryFor returns the access-frequency summary for memoryID.
func (l *Log) SummaryFor(memoryID string) (*Summary, error) {
	query := l.db.Bind(`SELECT access_type, accessed_at FROM memory_access_log WHERE memory_id = ?`)
	rows, err := l.db.Query(query, memoryID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	defer rows.Close()

	s := &Summary{MemoryID: memoryID, ByType: map[types.AccessType]int{}}
	for rows.Next() {
		var accessType, accessedAt string
		if err := rows.Scan(&accessType, &accessedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
		}
		s.Total++
		s.ByType[types.AccessType(accessType)]++
		if t, err := time.Parse(time.RFC3339, accessedAt); err == nil {
			if s.LastAccessed == nil || t.After(*s.LastAccessed) {
				s.LastAccessed = &t
			}
		}
	}
	return s, rows.Err()
}

// AccessTimes returns every recorded access timestamp for memoryID in
// chronological order, feeding the Generational GC's staleness predictor.
func (l *Log) AccessTimes(memoryID string) ([]time.Time, error) {
	query := l.db.Bind(`SELECT accessed_at FROM memory_access_log WHERE memory_id = ? ORDER BY accessed_at ASC`)
	rows, err := l.db.Query(query, memoryID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var accessedAt string
		if err := rows.Scan(&accessedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
		}
		if t, err := time.Parse(time.RFC3339, accessedAt); err == nil {
			out = append(out, t)
		}
	}
	return out, rows.Err()
}

// NeverAccessed returns ids from candidateIDs whose most-recent event
// predates now - days, or who have no event at all.
func (l *Log) NeverAccessed(candidateIDs []string, days int) ([]string, error) {
	cutoff := l.clock.Now().UTC().AddDate(0, 0, -days)

	var out []string
	for _, id := range candidateIDs {
		summary, err := l.SummaryFor(id)
		if err != nil {
			return nil, err
		}
		if summary.LastAccessed == nil || summary.LastAccessed.Before(cutoff) {
			out = append(out, id)
		}
	}
	return out, nil
}

// ImbalanceReport is the result of a Gini-coefficient imbalance check.
type ImbalanceReport struct {
	Gini      float64
	Imbalanced bool
	Neglected []string // ids in the bottom (median-split) half by access count
}

// CheckImbalance computes the Gini coefficient of access counts across
// cluster (a caller-supplied set of memory ids) and flags it imbalanced
// when Gini >= threshold (0 selects DefaultGiniThreshold).
func (l *Log) CheckImbalance(cluster []string, threshold float64) (*ImbalanceReport, error) {
	if threshold <= 0 {
		threshold = DefaultGiniThreshold
	}

	ids := append([]string(nil), cluster...)
	counts := make([]int, len(ids))
	for i, id := range ids {
		s, err := l.SummaryFor(id)
		if err != nil {
			return nil, err
		}
		counts[i] = s.Total
	}

	order := make([]int, len(ids))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return counts[order[i]] < counts[order[j]] })

	sortedCounts := make([]int, len(order))
	sortedIDs := make([]string, len(order))
	for i, idx := range order {
		sortedCounts[i] = counts[idx]
		sortedIDs[i] = ids[idx]
	}

	gini := giniCoefficient(sortedCounts)

	median := len(sortedIDs) / 2
	neglected := append([]string(nil), sortedIDs[:median]...)

	return &ImbalanceReport{
		Gini:       gini,
		Imbalanced: gini >= threshold,
		Neglected:  neglected,
	}, nil
}

// giniCoefficient computes the Gini coefficient of sorted (ascending)
// non-negative counts via the mean-absolute-difference formula.
func giniCoefficient(sorted []int) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	var sumOfAbsDiffs, sum float64
	for _, a := range sorted {
		sum += float64(a)
		for _, b := range sorted {
			sumOfAbsDiffs += absInt(a - b)
		}
	}
	if sum == 0 {
		return 0
	}
	return sumOfAbsDiffs / (2 * float64(n) * sum)
}

func absInt(v int) float64 {
	if v < 0 {
		return float64(-v)
	}
	return float64(v)
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
