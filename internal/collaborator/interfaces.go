// Package collaborator defines the external collaborators spec §6 names
// (Embedder, LLM, Clock) and wraps the network-facing ones with the breaker
// and rate limiter so every call site gets the same resilience behaviour
// for free. Interface shapes are grounded on the teacher's
// internal/llm/interfaces.go (TextGenerator / EmbeddingGenerator), renamed
// to match the spec's own vocabulary.
package collaborator

import "context"

// Embedder turns text into a fixed-dimension vector. Implementations may be
// network-backed (Ollama) or a local heuristic fallback.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Model() string
	Dimensions() int
}

// LLM performs single-prompt text completion, used by the Session
// Consolidator to extract candidate memories from a transcript.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}
