// Package mnemerr defines the typed failure values the core surfaces to
// callers (spec §6, §7). Every component wraps these sentinels with
// fmt.Errorf("...: %w", ...) rather than inventing ad hoc error strings, so
// callers can always recover the underlying classification with errors.Is.
package mnemerr

import "errors"

var (
	// ErrNotFound means the requested memory/schedule/entry does not exist.
	// Expected; callers decide how to react, no warning is logged.
	ErrNotFound = errors.New("mnemora: not found")

	// ErrInvalidID means a caller-supplied id failed path-safety sanitisation.
	ErrInvalidID = errors.New("mnemora: invalid id")

	// ErrInvalidInput means a caller-supplied value (e.g. an unknown
	// relationship type) failed validation.
	ErrInvalidInput = errors.New("mnemora: invalid input")

	// ErrCorruptRecord means an on-disk memory header could not be parsed.
	ErrCorruptRecord = errors.New("mnemora: corrupt record")

	// ErrStoreError is a fatal I/O failure from the memory store.
	ErrStoreError = errors.New("mnemora: store error")

	// ErrDuplicateRejected means dedup classified a candidate as a duplicate
	// and the caller asked for duplicates to be rejected rather than flagged.
	ErrDuplicateRejected = errors.New("mnemora: duplicate rejected")

	// ErrInvalidGrade means an unknown spaced-repetition grade was supplied.
	ErrInvalidGrade = errors.New("mnemora: invalid grade")

	// ErrNotScheduled means record_review was called for a memory with no
	// review schedule.
	ErrNotScheduled = errors.New("mnemora: not scheduled")

	// ErrInvalidRefType means an unknown reference-count ref_type was supplied.
	ErrInvalidRefType = errors.New("mnemora: invalid ref type")

	// ErrEmbedderUnavailable is a transient failure from the Embedder collaborator.
	ErrEmbedderUnavailable = errors.New("mnemora: embedder unavailable")

	// ErrLLMTimeout is a transient failure from the LLM collaborator.
	ErrLLMTimeout = errors.New("mnemora: llm timeout")

	// ErrCircuitOpen means a circuit breaker is open and rejected the call.
	ErrCircuitOpen = errors.New("mnemora: circuit open")

	// ErrGraphBoundsExceeded means a bounded graph traversal hit one of its
	// resource limits before completing.
	ErrGraphBoundsExceeded = errors.New("mnemora: graph bounds exceeded")
)
