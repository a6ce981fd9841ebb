// Package ratelimit guards outbound Embedder/LLM collaborator calls with a
// token bucket, so a burst of consolidation or embedding work cannot
// overwhelm a local model server. Grounded on the teacher's dependency set
// (golang.org/x/time/rate is in its go.mod for the same purpose), rebuilt
// here against the spec's Embedder/LLM collaborators rather than the
// teacher's REST-inbound rate limiter (deleted, see DESIGN.md).
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter wraps rate.Limiter with the per-second/burst vocabulary
// internal/config exposes.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a Limiter allowing perSecond sustained requests with a burst
// capacity of burst.
func New(perSecond float64, burst int) *Limiter {
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a token is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a call may proceed immediately, consuming a token
// if so.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
