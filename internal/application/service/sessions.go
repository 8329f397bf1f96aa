package service

import (
	"context"
	"fmt"
	"sync"

	"scout-agent/internal/application/port/output"
)

var _ output.SessionProvider = (*SessionRegistry)(nil)

// SessionRegistry keeps one executor session per active run.
type SessionRegistry struct {
	factory  output.ExecutorFactory
	mu       sync.Mutex
	sessions map[string]output.ExecutorSession
}

func NewSessionRegistry(factory output.ExecutorFactory) *SessionRegistry {
	return &SessionRegistry{
		factory:  factory,
		sessions: make(map[string]output.ExecutorSession),
	}
}

func (r *SessionRegistry) Open(ctx context.Context, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[runID]; ok {
		return fmt.Errorf("session for run %s already open", runID)
	}
	s, err := r.factory.Open(ctx)
	if err != nil {
		return fmt.Errorf("open session for run %s: %w", runID, err)
	}
	r.sessions[runID] = s
	return nil
}

func (r *SessionRegistry) Session(runID string) (output.ActionExecutor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[runID]
	return s, ok
}

func (r *SessionRegistry) Close(runID string) error {
	r.mu.Lock()
	s, ok := r.sessions[runID]
	delete(r.sessions, runID)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return s.Close()
}
