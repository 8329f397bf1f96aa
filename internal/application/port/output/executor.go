package output

import (
	"context"

	"scout-agent/internal/domain/entity"
)

// ActionExecutor carries out one action at a time against a browsing session.
// Recoverable action failures come back as a snapshot whose Note starts with "Error:";
// only infrastructure failures are returned as errors.
type ActionExecutor interface {
	Observe(ctx context.Context) (*entity.Snapshot, error)
	Execute(ctx context.Context, action entity.Action) (*entity.Snapshot, error)
}

// ExecutorSession is an ActionExecutor owned by exactly one run.
type ExecutorSession interface {
	ActionExecutor
	Close() error
}

type ExecutorFactory interface {
	Open(ctx context.Context) (ExecutorSession, error)
}

// SessionProvider hands delegates the executor session bound to a run.
type SessionProvider interface {
	Session(runID string) (ActionExecutor, bool)
}
