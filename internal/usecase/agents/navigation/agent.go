package navigation

import (
	"context"
	"fmt"

	"scout-agent/internal/application/port/input"
	"scout-agent/internal/application/port/output"
	"scout-agent/internal/domain/entity"
	"scout-agent/internal/usecase/steploop"
)

var _ input.Delegate = (*Agent)(nil)

// Vocabulary is every action the navigation agent may take besides done.
var Vocabulary = []entity.ActionKind{
	entity.ActionNavigate,
	entity.ActionSearch,
	entity.ActionGoBack,
	entity.ActionClick,
	entity.ActionInputText,
	entity.ActionPressEnter,
	entity.ActionScroll,
	entity.ActionOpenTab,
	entity.ActionSwitchTab,
	entity.ActionWait,
	entity.ActionExtract,
}

type Agent struct {
	loop     *steploop.Loop
	sessions output.SessionProvider
	logger   output.LoggerPort
}

func New(loop *steploop.Loop, sessions output.SessionProvider, logger output.LoggerPort) *Agent {
	return &Agent{
		loop:     loop,
		sessions: sessions,
		logger:   logger,
	}
}

func (a *Agent) Kind() entity.AgentKind {
	return entity.AgentNavigate
}

func (a *Agent) Description() string {
	return "Finds the pages that hold the requested information. Searches, follows links and reports relevant page URLs. Does NOT extract records."
}

func (a *Agent) Invoke(ctx context.Context, req entity.DelegateRequest) (entity.DelegateResult, error) {
	if req.Kind != entity.AgentNavigate {
		return entity.DelegateResult{}, fmt.Errorf("%w: navigation agent cannot serve %s", entity.ErrInvalidRequest, req.Kind)
	}
	if err := req.Validate(); err != nil {
		return entity.DelegateResult{}, err
	}

	a.logger.Info("Navigation agent executing", "runId", req.RunID, "stepId", req.StepID, "goal", req.Goal)

	result := a.run(ctx, req)
	result.InvocationID = req.InvocationID
	return result, nil
}

func (a *Agent) run(ctx context.Context, req entity.DelegateRequest) entity.DelegateResult {
	term := &Terminal{AllowEmpty: req.AllowEmpty}

	exec, ok := a.sessions.Session(req.RunID)
	if !ok {
		return term.Fail(entity.FailureExecutorUnavailable, "no browser session for run "+req.RunID)
	}

	task := steploop.Task{
		RunID:   req.RunID,
		Actor:   entity.ActorNavigateAgent,
		Goal:    req.Goal,
		Hints:   req.Hints,
		Allowed: Vocabulary,
	}
	return a.loop.Run(ctx, task, nil, exec, term)
}
