package extraction

import (
	"context"
	"fmt"
	"slices"

	"scout-agent/internal/application/port/input"
	"scout-agent/internal/application/port/output"
	"scout-agent/internal/domain/entity"
	"scout-agent/internal/usecase/agents/navigation"
	"scout-agent/internal/usecase/steploop"
)

var _ input.Delegate = (*Agent)(nil)

// Vocabulary is the navigation vocabulary plus submit_rows.
var Vocabulary = append(slices.Clone(navigation.Vocabulary), entity.ActionSubmitRows)

type Agent struct {
	loop     *steploop.Loop
	sessions output.SessionProvider
	records  output.RecordSink
	log      output.ArtifactLog
	logger   output.LoggerPort
}

func New(
	loop *steploop.Loop,
	sessions output.SessionProvider,
	records output.RecordSink,
	log output.ArtifactLog,
	logger output.LoggerPort,
) *Agent {
	return &Agent{
		loop:     loop,
		sessions: sessions,
		records:  records,
		log:      log,
		logger:   logger,
	}
}

func (a *Agent) Kind() entity.AgentKind {
	return entity.AgentExtract
}

func (a *Agent) Description() string {
	return "Extracts records matching the output schema from a known page, following its pagination, and persists them."
}

func (a *Agent) Invoke(ctx context.Context, req entity.DelegateRequest) (entity.DelegateResult, error) {
	if req.Kind != entity.AgentExtract {
		return entity.DelegateResult{}, fmt.Errorf("%w: extraction agent cannot serve %s", entity.ErrInvalidRequest, req.Kind)
	}
	if err := req.Validate(); err != nil {
		return entity.DelegateResult{}, err
	}

	a.logger.Info("Extraction agent executing", "runId", req.RunID, "stepId", req.StepID, "target", req.Target)

	result := a.run(ctx, req)
	result.InvocationID = req.InvocationID
	return result, nil
}

func (a *Agent) run(ctx context.Context, req entity.DelegateRequest) entity.DelegateResult {
	exec, ok := a.sessions.Session(req.RunID)
	if !ok {
		return entity.FailedResult(entity.AgentExtract, entity.FailureExecutorUnavailable, "no browser session for run "+req.RunID)
	}

	sink := newRowCollector(exec, a.records, req.RunID, req.StepID, req.Schema, a.logger)
	term := &Terminal{rows: sink}

	var initial *entity.Snapshot
	if req.Target != "" {
		snap, err := a.openTarget(ctx, req, exec)
		if err != nil {
			return term.Fail(entity.FailureExecutorUnavailable, fmt.Sprintf("could not open %s: %v", req.Target, err))
		}
		initial = snap
		sink.last = snap
	}

	task := steploop.Task{
		RunID:   req.RunID,
		Actor:   entity.ActorExtractAgent,
		Goal:    req.Goal,
		Hints:   req.Hints,
		Schema:  req.Schema,
		Allowed: Vocabulary,
	}
	result := a.loop.Run(ctx, task, initial, sink, term)

	a.logger.Info("Extraction finished",
		"runId", req.RunID,
		"stepId", req.StepID,
		"persisted", sink.Inserted(),
		"rejected", sink.rejected,
	)
	return result
}

// openTarget moves the session to the step's target before the first turn and logs it like a turn.
func (a *Agent) openTarget(ctx context.Context, req entity.DelegateRequest, exec output.ActionExecutor) (*entity.Snapshot, error) {
	action := entity.Action{Kind: entity.ActionNavigate, URL: req.Target}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.loop.Config().ActionTimeout)
	defer cancel()

	snap, err := exec.Execute(actx, action)
	if err != nil {
		return nil, err
	}

	_, err = a.log.Append(context.WithoutCancel(ctx), entity.StepRecord{
		RunID:               req.RunID,
		Actor:               entity.ActorExtractAgent,
		ReflectionText:      "opening extraction target",
		ChosenAction:        action.Signature(),
		ObservedStateDigest: snap.Digest(),
	})
	if err != nil {
		return nil, fmt.Errorf("log target navigation: %w", err)
	}
	return snap, nil
}
