package output

import (
	"context"

	"scout-agent/internal/domain/entity"
)

type ProgressPort interface {
	ShowPlan(ctx context.Context, runID string, plan entity.Plan)
	ShowDelegation(ctx context.Context, runID string, step entity.PlanStep)
	ShowResult(ctx context.Context, runID string, step entity.PlanStep, result entity.DelegateResult)
	ShowTurn(ctx context.Context, runID string, actor entity.Actor, turn, maxTurns int)
	ShowAction(ctx context.Context, runID string, action entity.Action, note string, isError bool)
	ShowThinking(ctx context.Context, runID string, content string)
	ShowReport(ctx context.Context, report *entity.RunReport)
}
