package chain

import "errors"

// Gateway failure classes. Callers branch on these to decide between retrying
// (unreachable node) and surfacing a hard settlement failure (revert).
var (
	// ErrUnavailable marks transport failures: node unreachable, dial or
	// read timeout. Retryable with backoff.
	ErrUnavailable = errors.New("chain node unavailable")

	// ErrReverted marks contract-level rejection of a submitted call. Not
	// retryable without changing the inputs.
	ErrReverted = errors.New("contract call reverted")

	// ErrQueueFull is returned when the authority submitter's backlog is at
	// capacity and cannot accept more work.
	ErrQueueFull = errors.New("submitter queue full")
)
