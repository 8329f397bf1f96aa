package entity

import "errors"

var (
	// ErrExecutorUnavailable marks a browsing session that can no longer accept actions.
	ErrExecutorUnavailable = errors.New("action executor unavailable")
	ErrInvalidRequest      = errors.New("invalid delegate request")
	ErrInvalidSchema       = errors.New("invalid output schema")
	// ErrNoAction is returned by a reasoner whose response carried no tool call.
	ErrNoAction = errors.New("reasoner returned no action")
)
