package domain

import "errors"

// Error taxonomy. Failures are wrapped onto these sentinels with
// fmt.Errorf("...: %w", ...) so callers can branch with errors.Is without
// depending on provider-specific error types.
var (
	// ErrInvalidInput rejects a malformed start request. The session is
	// never created.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound reports an unknown session id on a status query.
	ErrNotFound = errors.New("session not found")

	// ErrAuth is a missing or rejected provider credential. Fatal; never
	// retried.
	ErrAuth = errors.New("authentication failed")

	// ErrQuota is an exhausted provider quota or rate allowance. Fatal;
	// never retried.
	ErrQuota = errors.New("quota exceeded")

	// ErrTransient marks failures worth retrying with bounded backoff.
	ErrTransient = errors.New("transient failure")

	// ErrSearchUnavailable marks literature-search failures. Non-fatal:
	// the orchestrator records them as an event and continues.
	ErrSearchUnavailable = errors.New("search unavailable")

	// ErrInvalidTransition guards the session state machine; reaching it
	// means an internal invariant was violated.
	ErrInvalidTransition = errors.New("invalid status transition")
)
