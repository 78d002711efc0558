package agent

import "errors"

var (
	// ErrModelInvocation wraps a failed language model call. There is no
	// automatic retry; the caller decides what to do with the turn.
	ErrModelInvocation = errors.New("model invocation failed")

	// ErrMaxTurns terminates an invocation whose assistant keeps requesting
	// tools past the configured turn budget.
	ErrMaxTurns = errors.New("exceeded maximum interaction turns")
)
