package output

import (
	"context"

	"scout-agent/internal/domain/entity"
)

type ReasonRequest struct {
	RunID    string
	Actor    entity.Actor
	Goal     string
	Hints    []string
	Schema   entity.Schema
	Memory   string
	Snapshot *entity.Snapshot
	Allowed  []entity.ActionKind
	Turn     int
	MaxTurns int
}

// Decision is the reflection and the single action chosen for one turn.
type Decision struct {
	Evaluation entity.Evaluation
	Memory     string
	NextGoal   string
	Action     entity.Action
}

type Reasoner interface {
	Reason(ctx context.Context, req ReasonRequest) (*Decision, error)
}
