package output

import (
	"context"

	"scout-agent/internal/domain/entity"
)

type Planner interface {
	Author(ctx context.Context, goal string, schema entity.Schema) ([]entity.StepDraft, error)
}

type RevisionRequest struct {
	Goal       string
	Schema     entity.Schema
	Failed     entity.PlanStep
	Failure    entity.FailureKind
	Message    string
	Unexplored []string
	// Visits is the run's ledger at revision time, relevant and irrelevant pages alike.
	Visits  []entity.VisitRecord
	Attempt int
}

type Reviser interface {
	Revise(ctx context.Context, req RevisionRequest) (*entity.StepDraft, error)
}
