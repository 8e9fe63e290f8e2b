package models

import "errors"

// Error taxonomy. Callers match with errors.Is; packages wrap these with
// fmt.Errorf("...: %w", ...) to add context.
var (
	// ErrNotFound reports an unknown content, student, or topic reference.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput reports a malformed caller request: a missing ID, an
	// unknown content type, or an inconsistent difficulty range.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDimensionMismatch reports an embedding whose length differs from the
	// store's fixed dimensionality. Rejected at ingestion, never truncated.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInsufficientData means a classifier update was skipped because the
	// event window was too small. The prior profile stays in effect; this is
	// a no-op, not a caller-visible failure.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrEmptyIndex means a similarity query matched no indexed items.
	ErrEmptyIndex = errors.New("empty index")

	// ErrNoCandidates means the recommendation candidate pool was empty for
	// the requested topic and difficulty band. The caller may widen and retry.
	ErrNoCandidates = errors.New("no candidates")

	// ErrInvariantViolation reports internal state that escaped its bounds
	// (e.g. an out-of-range persisted difficulty). Surfaced loudly rather
	// than silently clamped.
	ErrInvariantViolation = errors.New("invariant violation")
)
