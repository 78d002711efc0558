package tools

import "errors"

// Sentinel errors for the tool layer. Use errors.Is to check.
var (
	// ErrInvalidInput marks malformed or empty caller input (blank ticker,
	// empty expression). Never retried; surfaced to the caller immediately.
	ErrInvalidInput = errors.New("invalid tool input")

	// ErrToolNotFound is returned when a tool call names an unregistered
	// tool. It aborts the turn rather than silently skipping the call.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolExecution wraps a tool's own raised failure. Tools that encode
	// failure as a result string (e.g. "ticker not recognized") do not use
	// it; those strings are ordinary tool content.
	ErrToolExecution = errors.New("tool execution failed")
)
