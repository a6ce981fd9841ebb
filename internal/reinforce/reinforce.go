// Package reinforce implements the Reinforcement Scheduler (spec §4.I):
// per-memory spaced-review scheduling with a pluggable grading policy,
// backed by the review_schedule/review_history tables.
package reinforce

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

// Policy computes the next schedule state from a grade and the current
// schedule. The core does not constrain the algorithm; DefaultPolicy
// implements a simple doubling scheme.
type Policy interface {
	Next(current *types.ReviewSchedule, grade types.Grade) (intervalDays, difficulty, stability float64)
}

// DefaultPolicy doubles the interval on GOOD, triples it on EASY, divides
// it by 1.5 (floored at the minimum) on HARD, and resets to the minimum on
// FAIL.
type DefaultPolicy struct {
	MinIntervalDays float64
}

// NewDefaultPolicy returns a DefaultPolicy with the spec's 1-day minimum.
func NewDefaultPolicy() DefaultPolicy {
	return DefaultPolicy{MinIntervalDays: 1}
}

// Next implements Policy.
func (p DefaultPolicy) Next(current *types.ReviewSchedule, grade types.Grade) (float64, float64, float64) {
	min := p.MinIntervalDays
	if min <= 0 {
		min = 1
	}

	interval := min
	difficulty := 0.3
	stability := min
	if current != nil {
		interval = current.NextIntervalDays
		difficulty = current.Difficulty
		stability = current.Stability
	}

	switch grade {
	case types.GradeFail:
		interval = min
		difficulty += 0.2
		stability = min
	case types.GradeHard:
		interval = interval / 1.5
		if interval < min {
			interval = min
		}
		difficulty += 0.1
		stability = interval
	case types.GradeGood:
		interval = interval * 2
		difficulty -= 0.05
		stability = interval
	case types.GradeEasy:
		interval = interval * 3
		difficulty -= 0.1
		stability = interval
	}

	if difficulty < 0 {
		difficulty = 0
	}
	if difficulty > 1 {
		difficulty = 1
	}
	return interval, difficulty, stability
}

// Scheduler is the Reinforcement Scheduler.
type Scheduler struct {
	db     *db.DB
	clock  clock.Clock
	policy Policy
}

// New creates a Scheduler with the given Policy. A nil policy defaults to
// DefaultPolicy.
func New(conn *db.DB, c clock.Clock, policy Policy) *Scheduler {
	if policy == nil {
		policy = NewDefaultPolicy()
	}
	return &Scheduler{db: conn, clock: c, policy: policy}
}

// Enqueue creates an initial schedule for memoryID due immediately (the
// spec's "initial interval is 1 day" applies from the first review, not
// before it: the first due_at is now, so a freshly consolidated memory is
// immediately reviewable).
func (s *Scheduler) Enqueue(memoryID string) (*types.ReviewSchedule, error) {
	now := s.clock.Now()
	sched := &types.ReviewSchedule{
		MemoryID:         memoryID,
		DueAt:            now,
		ReviewCount:      0,
		Difficulty:       0.3,
		Stability:        1,
		NextIntervalDays: 1,
	}
	if err := s.upsert(sched, nil); err != nil {
		return nil, err
	}
	return sched, nil
}

// RecordReview applies grade to memoryID's schedule, advancing due_at per
// the configured Policy. Returns ErrInvalidGrade for an unknown grade and
// ErrNotScheduled if memoryID has no schedule.
func (s *Scheduler) RecordReview(memoryID string, grade types.Grade) (*types.ReviewSchedule, error) {
	if !types.IsValidGrade(grade) {
		return nil, fmt.Errorf("%w: %q", mnemerr.ErrInvalidGrade, grade)
	}

	current, err := s.get(memoryID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%w: %s", mnemerr.ErrNotScheduled, memoryID)
	}

	interval, difficulty, stability := s.policy.Next(current, grade)
	now := s.clock.Now()

	updated := &types.ReviewSchedule{
		MemoryID:         memoryID,
		DueAt:            now.Add(time.Duration(interval * 24 * float64(time.Hour))),
		LastReviewed:     &now,
		ReviewCount:      current.ReviewCount + 1,
		Difficulty:       difficulty,
		Stability:        stability,
		NextIntervalDays: interval,
	}
	gradeStr := string(grade)
	if err := s.upsert(updated, &gradeStr); err != nil {
		return nil, err
	}
	if err := s.logHistory(memoryID, grade, now); err != nil {
		return nil, err
	}
	return updated, nil
}

// DueReviews returns up to limit memories whose due_at <= now, ordered by
// due_at ascending then id ascending.
func (s *Scheduler) DueReviews(limit int, now time.Time) ([]*types.ReviewSchedule, error) {
	query := s.db.Bind(`
		SELECT memory_id, due_at, interval_days, stability, ease, repetitions, last_grade, updated_at
		FROM review_schedule
		WHERE due_at <= ?
		ORDER BY due_at ASC, memory_id ASC
		LIMIT ?
	`)
	rows, err := s.db.Query(query, now.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	defer rows.Close()

	var out []*types.ReviewSchedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sched)
	}
	return out, rows.Err()
}

// OverdueCount returns the number of schedules with due_at < now.
func (s *Scheduler) OverdueCount(now time.Time) (int, error) {
	query := s.db.Bind(`SELECT COUNT(*) FROM review_schedule WHERE due_at < ?`)
	var count int
	if err := s.db.QueryRow(query, now.UTC().Format(time.RFC3339)).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	return count, nil
}

// DailyCount returns the number of reviews recorded in the 24 hours
// ending at now.
func (s *Scheduler) DailyCount(now time.Time) (int, error) {
	since := now.Add(-24 * time.Hour).UTC().Format(time.RFC3339)
	query := s.db.Bind(`SELECT COUNT(*) FROM review_history WHERE reviewed_at >= ?`)
	var count int
	if err := s.db.QueryRow(query, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	return count, nil
}

func (s *Scheduler) get(memoryID string) (*types.ReviewSchedule, error) {
	query := s.db.Bind(`
		SELECT memory_id, due_at, interval_days, stability, ease, repetitions, last_grade, updated_at
		FROM review_schedule WHERE memory_id = ?
	`)
	sched, err := scanSchedule(s.db.QueryRow(query, memoryID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sched, err
}

func (s *Scheduler) upsert(sched *types.ReviewSchedule, grade *string) error {
	now := s.clock.Now().UTC().Format(time.RFC3339)
	var lastGrade interface{}
	if grade != nil {
		lastGrade = *grade
	}
	query := s.db.Bind(`
		INSERT INTO review_schedule (memory_id, due_at, interval_days, stability, ease, repetitions, last_grade, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(memory_id) DO UPDATE SET
			due_at = excluded.due_at,
			interval_days = excluded.interval_days,
			stability = excluded.stability,
			ease = excluded.ease,
			repetitions = excluded.repetitions,
			last_grade = excluded.last_grade,
			updated_at = excluded.updated_at
	`)
	_, err := s.db.Exec(query, sched.MemoryID, sched.DueAt.UTC().Format(time.RFC3339),
		sched.NextIntervalDays, sched.Stability, sched.Difficulty, sched.ReviewCount, lastGrade, now)
	if err != nil {
		return fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	return nil
}

func (s *Scheduler) logHistory(memoryID string, grade types.Grade, at time.Time) error {
	query := s.db.Bind(`INSERT INTO review_history (memory_id, grade, reviewed_at) VALUES (?, ?, ?)`)
	if _, err := s.db.Exec(query, memoryID, string(grade), at.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSchedule(row rowScanner) (*types.ReviewSchedule, error) {
	var memoryID, dueAt, updatedAt string
	var intervalDays, stability, ease float64
	var repetitions int
	var lastGrade sql.NullString
	if err := row.Scan(&memoryID, &dueAt, &intervalDays, &stability, &ease, &repetitions, &lastGrade, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", mnemerr.ErrStoreError, err)
	}
	due, _ := time.Parse(time.RFC3339, dueAt)
	return &types.ReviewSchedule{
		MemoryID:         memoryID,
		DueAt:            due,
		ReviewCount:      repetitions,
		Difficulty:       ease,
		Stability:        stability,
		NextIntervalDays: intervalDays,
	}, nil
}
