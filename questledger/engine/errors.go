package engine

import "errors"

var (
	// ErrValidation marks malformed events; rejected, never retried.
	ErrValidation = errors.New("invalid event")

	// ErrUnknownQuest is returned when the event references a quest the
	// catalog does not know. Treated as a validation failure.
	ErrUnknownQuest = errors.New("unknown quest")

	// ErrConcurrencyConflict marks transient store contention. Retried
	// internally with bounded backoff, never surfaced to callers.
	ErrConcurrencyConflict = errors.New("concurrent update conflict")

	// ErrStorage marks a fatal store failure for the request; nothing was
	// committed and the caller may retry with the same event identity.
	ErrStorage = errors.New("storage failure")

	// ErrNotFound is returned by read operations for missing records.
	ErrNotFound = errors.New("not found")
)
