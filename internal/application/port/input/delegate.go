package input

import (
	"context"

	"scout-agent/internal/domain/entity"
)

// Delegate is a sub-agent the orchestrator can hand one plan step to.
// Invoke returns an error only for an invalid request; every other failure is a result value.
type Delegate interface {
	Kind() entity.AgentKind
	Description() string
	Invoke(ctx context.Context, req entity.DelegateRequest) (entity.DelegateResult, error)
}
