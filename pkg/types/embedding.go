package types

import "time"

// Embedding is a cached vector keyed by the exact content hash of the text
// it was computed from (spec §3, §4.C). Identical content never pays for a
// second embedder call.
type Embedding struct {
	ContentHash string
	Vector      []float32
	Model       string
	Dimension   int
	CreatedAt   time.Time
	AccessedAt  time.Time
}
