package planner

import (
	"context"
	"fmt"

	"scout-agent/internal/application/port/output"
	"scout-agent/internal/domain/entity"
)

var (
	_ output.Planner = Fallback{}
	_ output.Reviser = Fallback{}
)

// Fallback plans and revises without a model.
type Fallback struct{}

func (Fallback) Author(_ context.Context, goal string, _ entity.Schema) ([]entity.StepDraft, error) {
	return []entity.StepDraft{{
		Kind:            entity.AgentNavigate,
		Goal:            "Find the pages that contain the records for: " + goal,
		Hints:           []string{"search for the goal", "look for list, directory or catalog pages"},
		SuccessCriteria: "at least one page that lists the requested records",
	}}, nil
}

func (Fallback) Revise(_ context.Context, req output.RevisionRequest) (*entity.StepDraft, error) {
	d := entity.StepDraft{
		Kind:            req.Failed.Kind,
		Goal:            req.Failed.Goal,
		Hints:           append([]string(nil), req.Failed.Hints...),
		SuccessCriteria: req.Failed.SuccessCriteria,
		AllowEmpty:      req.Failed.AllowEmpty,
		Target:          req.Failed.Target,
	}

	if req.Failure.Retryable() {
		return &d, nil
	}

	d.Hints = append(d.Hints, fmt.Sprintf("a previous attempt failed (%s): %s", req.Failure, req.Message))
	switch req.Failure {
	case entity.FailureStalled:
		d.Hints = append(d.Hints, "do not repeat the same action; use a search or a different link")
	case entity.FailureBudgetExhausted:
		d.Hints = append(d.Hints, "go straight to the most promising page, avoid exploring")
	default:
		d.Hints = append(d.Hints, "try a different approach, for example a web search with other keywords")
	}
	return &d, nil
}
