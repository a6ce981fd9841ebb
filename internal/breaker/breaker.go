// Package breaker wraps sony/gobreaker to protect the Embedder and LLM
// collaborators from cascading failures (spec §5). It is a generalisation
// of the teacher's LLM-only circuit breaker: any named external call can be
// wrapped, and state survives a restart via internal/db's
// circuit_breaker_state table.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/scrypster/mnemora/internal/clock"
	"github.com/scrypster/mnemora/internal/db"
	"github.com/scrypster/mnemora/pkg/mnemerr"
)

// Config configures a Breaker. Defaults match spec §5: 5 consecutive
// failures trips the circuit, 600 seconds before a half-open probe.
type Config struct {
	MaxFailures          uint32
	Timeout              time.Duration
	HalfOpenMaxSuccesses uint32
}

// DefaultConfig returns the spec §5 defaults.
func DefaultConfig() Config {
	return Config{
		MaxFailures:          5,
		Timeout:              600 * time.Second,
		HalfOpenMaxSuccesses: 2,
	}
}

// Metrics reports cumulative and current-streak counters for a Breaker.
type Metrics struct {
	TotalRequests        uint64
	TotalSuccesses       uint64
	TotalFailures        uint64
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Breaker wraps a single named gobreaker.CircuitBreaker. Name is persisted
// as the primary key in circuit_breaker_state so state survives restarts.
type Breaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
	clock   clock.Clock
	store   *db.DB // optional; nil disables persistence

	mu            sync.RWMutex
	metrics       Metrics
	cooldownUntil time.Time // honors a persisted OPEN state until this instant; zero once cleared
}

// New creates a Breaker named name. If store is non-nil, state transitions
// are persisted to circuit_breaker_state and, on construction, the last
// persisted row is read back: if it recorded an OPEN state whose cooldown
// (updated_at + Timeout) has not yet elapsed, the breaker starts honoring
// that cooldown rather than resetting to CLOSED (spec §5 restart survival).
// gobreaker exposes no API to seed a CircuitBreaker's internal state
// directly, so the cooldown is enforced as a pre-check in Execute instead.
func New(name string, cfg Config, c clock.Clock, store *db.DB) *Breaker {
	b := &Breaker{name: name, clock: c, store: store}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenMaxSuccesses,
		Interval:    0,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.persistState(stateName(to))
		},
	}
	b.breaker = gobreaker.NewCircuitBreaker(settings)
	b.loadPersistedState(cfg)
	return b
}

func (b *Breaker) loadPersistedState(cfg Config) {
	if b.store == nil {
		return
	}
	query := b.store.Bind(`SELECT state, updated_at FROM circuit_breaker_state WHERE name = ?`)
	var state, updatedAt string
	if err := b.store.QueryRow(query, b.name).Scan(&state, &updatedAt); err != nil {
		return
	}
	if state != "open" {
		return
	}
	updated, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return
	}
	until := updated.Add(cfg.Timeout)
	if b.clock.Now().Before(until) {
		b.mu.Lock()
		b.cooldownUntil = until
		b.mu.Unlock()
	}
}

// Execute runs fn through the breaker. If the circuit is open, or a
// persisted OPEN cooldown from a prior process is still in effect, it
// returns mnemerr.ErrCircuitOpen without calling fn.
func (b *Breaker) Execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	b.mu.RLock()
	cooldown := b.cooldownUntil
	b.mu.RUnlock()
	if !cooldown.IsZero() {
		if b.clock.Now().Before(cooldown) {
			return nil, mnemerr.ErrCircuitOpen
		}
		b.mu.Lock()
		b.cooldownUntil = time.Time{}
		b.mu.Unlock()
	}

	select {
	case <-ctx.Done():
		b.recordFailure()
		return nil, ctx.Err()
	default:
	}

	result, err := b.breaker.Execute(func() (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		return fn()
	})

	if err != nil {
		b.recordFailure()
		if errors.Is(err, gobreaker.ErrOpenState) {
			return nil, mnemerr.ErrCircuitOpen
		}
		return nil, err
	}
	b.recordSuccess()
	return result, nil
}

// State returns "closed", "open", or "half-open".
func (b *Breaker) State() string {
	b.mu.RLock()
	cooldown := b.cooldownUntil
	b.mu.RUnlock()
	if !cooldown.IsZero() && b.clock.Now().Before(cooldown) {
		return "open"
	}
	return stateName(b.breaker.State())
}

// Metrics returns a snapshot of cumulative counters.
func (b *Breaker) Metrics() Metrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	counts := b.breaker.Counts()
	m := b.metrics
	m.ConsecutiveSuccesses = counts.ConsecutiveSuccesses
	m.ConsecutiveFailures = counts.ConsecutiveFailures
	return m
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics.TotalRequests++
	b.metrics.TotalSuccesses++
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics.TotalRequests++
	b.metrics.TotalFailures++
}

func (b *Breaker) persistState(state string) {
	if b.store == nil {
		return
	}
	now := b.clock.Now().UTC().Format(time.RFC3339)
	query := b.store.Bind(`
		INSERT INTO circuit_breaker_state (name, state, failure_count, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at
	`)
	// persistState runs inside gobreaker's OnStateChange callback, which holds
	// gobreaker's lock (so Counts/Metrics cannot be called here) and fires
	// after the counts of the new generation were reset to zero.
	_, _ = b.store.Exec(query, b.name, state, 0, now)
}

func stateName(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
