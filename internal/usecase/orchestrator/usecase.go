// Package orchestrator plans a run, delegates each step to a sub-agent and folds
// the results into the run state until the run is DONE or FAILED.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"scout-agent/internal/application/port/input"
	"scout-agent/internal/application/port/output"
	"scout-agent/internal/domain/entity"
	"scout-agent/internal/usecase/planner"
)

var _ input.RunExecutor = (*UseCase)(nil)

// SessionManager opens and releases the browsing session a run's delegates share.
type SessionManager interface {
	Open(ctx context.Context, runID string) error
	Close(runID string) error
}

type UseCase struct {
	delegates output.DelegateRegistry
	planner   output.Planner
	reviser   output.Reviser
	log       output.ArtifactLog
	archive   output.RunArchive
	sessions  SessionManager
	logger    output.LoggerPort
	progress  output.ProgressPort
	tracer    trace.Tracer
	cfg       Config
	now       func() time.Time
}

type Option func(*UseCase)

func WithProgress(p output.ProgressPort) Option {
	return func(uc *UseCase) { uc.progress = p }
}

func WithTracer(t trace.Tracer) Option {
	return func(uc *UseCase) { uc.tracer = t }
}

func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) { uc.now = now }
}

func New(
	delegates output.DelegateRegistry,
	plan output.Planner,
	reviser output.Reviser,
	log output.ArtifactLog,
	archive output.RunArchive,
	sessions SessionManager,
	logger output.LoggerPort,
	cfg Config,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		delegates: delegates,
		planner:   plan,
		reviser:   reviser,
		log:       log,
		archive:   archive,
		sessions:  sessions,
		logger:    logger,
		tracer:    noop.NewTracerProvider().Tracer("scout-agent/orchestrator"),
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
	if uc.planner == nil {
		uc.planner = planner.Fallback{}
	}
	if uc.reviser == nil {
		uc.reviser = planner.Fallback{}
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Execute drives one run to DONE or FAILED. An error is returned only for requests
// that cannot start: an invalid schema or an archive that refuses the run.
func (uc *UseCase) Execute(ctx context.Context, req input.RunRequest) (*entity.RunReport, error) {
	if strings.TrimSpace(req.Goal) == "" {
		return nil, fmt.Errorf("%w: empty goal", entity.ErrInvalidRequest)
	}
	if err := req.Schema.Validate(); err != nil {
		return nil, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	started := uc.now()
	if err := uc.archive.BeginRun(ctx, runID, req.Goal); err != nil {
		return nil, fmt.Errorf("begin run %s: %w", runID, err)
	}

	ctx, span := uc.tracer.Start(ctx, "orchestrator.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("run.goal", req.Goal),
	))
	defer span.End()

	if uc.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.cfg.RunTimeout)
		defer cancel()
	}

	logger := uc.logger.WithField("runId", runID)
	logger.Info("Run started", "goal", req.Goal, "fields", req.Schema.Fields())

	state := NewRunState(runID, req.Goal, req.Schema)
	uc.drive(ctx, state, logger)

	report := &entity.RunReport{
		RunID:          runID,
		Goal:           req.Goal,
		Status:         state.Status,
		Explanation:    state.Explanation,
		PersistedCount: state.Ledger.Persisted(),
		Invocations:    state.Invocations,
		Plan:           state.Plan.Clone(),
		Visits:         state.Ledger.Records(),
		StartedAt:      started,
		FinishedAt:     uc.now(),
	}

	uc.record(ctx, state, logger, "run "+strings.ToLower(string(state.Status))+": "+state.Explanation, "finish")
	if err := uc.archive.FinishRun(context.WithoutCancel(ctx), report); err != nil {
		logger.Error("Failed to archive run", "error", err)
	}
	if uc.progress != nil {
		uc.progress.ShowReport(ctx, report)
	}

	span.SetAttributes(
		attribute.String("run.status", string(report.Status)),
		attribute.Int("run.persisted", report.PersistedCount),
	)
	if report.Status == entity.RunFailed {
		span.SetStatus(codes.Error, report.Explanation)
	}
	logger.Info("Run finished", "status", string(report.Status), "persisted", report.PersistedCount,
		"invocations", report.Invocations, "explanation", report.Explanation)
	return report, nil
}

func (uc *UseCase) drive(ctx context.Context, state *RunState, logger output.LoggerPort) {
	if err := uc.sessions.Open(ctx, state.RunID); err != nil {
		logger.Error("Failed to open browsing session", "error", err)
		uc.fail(state, "browsing session unavailable: "+err.Error())
		return
	}
	defer func() {
		if err := uc.sessions.Close(state.RunID); err != nil {
			logger.Warn("Failed to close browsing session", "error", err)
		}
	}()

	uc.plan(ctx, state, logger)

	for !state.Status.IsTerminal() {
		if err := ctx.Err(); err != nil {
			uc.fail(state, interruption(err))
			return
		}

		step, ok := state.Plan.NextPending()
		if !ok {
			uc.settle(state)
			return
		}
		if state.Invocations >= uc.cfg.MaxInvocations {
			uc.fail(state, fmt.Sprintf("delegate invocation budget of %d exhausted", uc.cfg.MaxInvocations))
			return
		}

		state.Status = entity.RunExecuting
		step.Status = entity.StepInProgress
		stepID := step.ID
		result, err := uc.delegate(ctx, state, *step, logger)
		state.Invocations++
		if err != nil {
			// The request itself is malformed, so a replacement would fail the same way.
			logger.Error("Delegate rejected step", "stepId", stepID, "error", err)
			failed, _ := state.Plan.Step(stepID)
			failed.Status = entity.StepFailed
			state.abandonLineage(failed.OriginID)
			uc.record(ctx, state, logger, fmt.Sprintf("step %d rejected: %v", stepID, err), fmt.Sprintf("abandon step %d", stepID))
			continue
		}

		uc.fold(ctx, state, stepID, result, logger)

		if !result.Succeeded() {
			if err := ctx.Err(); err != nil {
				uc.fail(state, interruption(err))
				return
			}
			uc.revise(ctx, state, stepID, result, logger)
		}
	}
}

func (uc *UseCase) plan(ctx context.Context, state *RunState, logger output.LoggerPort) {
	drafts, err := uc.planner.Author(ctx, state.Goal, state.Plan.Schema)
	if err != nil || len(drafts) == 0 {
		logger.Warn("Planner produced no plan, using fallback", "error", err)
		drafts, _ = planner.Fallback{}.Author(ctx, state.Goal, state.Plan.Schema)
	}
	for _, d := range drafts {
		state.AppendStep(d, 0)
	}
	state.Status = entity.RunExecuting
	uc.commit(ctx, state, logger, "initial plan")
}

func (uc *UseCase) delegate(ctx context.Context, state *RunState, step entity.PlanStep, logger output.LoggerPort) (entity.DelegateResult, error) {
	delegate, ok := uc.delegates.Get(step.Kind)
	if !ok {
		return entity.DelegateResult{}, fmt.Errorf("%w: no delegate registered for %s", entity.ErrInvalidRequest, step.Kind)
	}

	req := entity.DelegateRequest{
		RunID:        state.RunID,
		InvocationID: uuid.NewString(),
		StepID:       step.ID,
		Kind:         step.Kind,
		Goal:         step.Goal,
		Hints:        step.Hints,
		Target:       step.Target,
		AllowEmpty:   step.AllowEmpty,
	}
	if step.Kind == entity.AgentExtract {
		req.Schema = state.Plan.Schema
	}

	ctx, span := uc.tracer.Start(ctx, "orchestrator.delegate", trace.WithAttributes(
		attribute.Int("step.id", step.ID),
		attribute.String("step.kind", string(step.Kind)),
	))
	defer span.End()

	if uc.progress != nil {
		uc.progress.ShowDelegation(ctx, state.RunID, step)
	}
	logger.Info("Delegating step", "stepId", step.ID, "kind", string(step.Kind), "goal", step.Goal, "invocationId", req.InvocationID)

	result, err := delegate.Invoke(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return entity.DelegateResult{}, err
	}
	if result.InvocationID != req.InvocationID {
		if result.InvocationID != "" {
			logger.Warn("Delegate reported a foreign invocation id", "stepId", step.ID,
				"invocationId", req.InvocationID, "reported", result.InvocationID)
		}
		result.InvocationID = req.InvocationID
	}
	if !result.Succeeded() {
		span.SetStatus(codes.Error, result.Message)
	}
	return result, nil
}

func (uc *UseCase) fold(ctx context.Context, state *RunState, stepID int, result entity.DelegateResult, logger output.LoggerPort) {
	newlyRelevant, applied := state.Fold(stepID, result)
	if !applied {
		logger.Debug("Result already folded", "stepId", stepID, "invocationId", result.InvocationID)
		return
	}

	step, _ := state.Plan.Step(stepID)
	if uc.progress != nil {
		uc.progress.ShowResult(ctx, state.RunID, *step, result)
	}
	logger.Info("Folded result", "stepId", stepID, "status", string(result.Status),
		"failure", string(result.Failure), "persisted", state.Ledger.Persisted(), "visits", state.Ledger.Len())
	uc.record(ctx, state, logger, foldSummary(*step, result), fmt.Sprintf("fold step %d", stepID))

	// Every relevant resource gets its own extraction step.
	var added int
	for _, r := range newlyRelevant {
		if state.Plan.HasTarget(r) {
			continue
		}
		state.AppendStep(entity.StepDraft{
			Kind:            entity.AgentExtract,
			Goal:            fmt.Sprintf("Extract every record for %q from %s", state.Goal, r),
			Hints:           []string{"follow pagination on this page if there is any"},
			SuccessCriteria: "all matching records on the page are submitted",
			Target:          r,
		}, 0)
		added++
	}
	if added > 0 {
		uc.commit(ctx, state, logger, fmt.Sprintf("added %d extraction steps", added))
	}
}

func (uc *UseCase) revise(ctx context.Context, state *RunState, stepID int, result entity.DelegateResult, logger output.LoggerPort) {
	state.Status = entity.RunRevising
	failed, _ := state.Plan.Step(stepID)
	origin := failed.OriginID

	if failed.IsReplacement() {
		state.lineageFailures[origin]++
	}
	unexplored := state.Unexplored()

	if state.lineageFailures[origin] >= uc.cfg.MaxReplacements && len(unexplored) == 0 {
		state.abandonLineage(origin)
		logger.Warn("Abandoning step", "stepId", stepID, "originId", origin, "replacements", state.lineageFailures[origin])
		uc.record(ctx, state, logger,
			fmt.Sprintf("step %d abandoned after %d failed replacements", origin, state.lineageFailures[origin]),
			fmt.Sprintf("abandon step %d", origin))
		state.Status = entity.RunExecuting
		return
	}

	revReq := output.RevisionRequest{
		Goal:       state.Goal,
		Schema:     state.Plan.Schema,
		Failed:     *failed,
		Failure:    result.Failure,
		Message:    result.Message,
		Unexplored: unexplored,
		Visits:     state.Ledger.Records(),
		Attempt:    state.lineageFailures[origin] + 1,
	}

	var draft *entity.StepDraft
	if !result.Failure.Retryable() {
		d, err := uc.reviser.Revise(ctx, revReq)
		if err != nil {
			logger.Warn("Reviser failed, using fallback", "stepId", stepID, "error", err)
		} else {
			draft = d
		}
	}
	if draft == nil {
		draft, _ = planner.Fallback{}.Revise(ctx, revReq)
	}
	if draft.Kind != failed.Kind || strings.TrimSpace(draft.Goal) == "" {
		draft.Kind = failed.Kind
		if strings.TrimSpace(draft.Goal) == "" {
			draft.Goal = failed.Goal
		}
	}
	if draft.Target == "" {
		draft.Target = failed.Target
	}
	for _, r := range unexplored {
		draft.Hints = append(draft.Hints, "unexplored relevant page: "+r)
		state.Ledger.MarkExplored(r)
	}

	replacement := state.AppendStep(*draft, origin)
	logger.Info("Step replaced", "failedStepId", stepID, "replacementId", replacement.ID, "originId", origin)
	state.Status = entity.RunExecuting
	uc.commit(ctx, state, logger, fmt.Sprintf("replaced step %d with step %d", stepID, replacement.ID))
}

// settle decides the terminal status once nothing is pending.
func (uc *UseCase) settle(state *RunState) {
	ok, why := state.Settled()
	if ok {
		state.Status = entity.RunDone
		state.Explanation = why
		return
	}
	uc.fail(state, why)
}

func (uc *UseCase) fail(state *RunState, why string) {
	state.Status = entity.RunFailed
	state.Explanation = why
}

func (uc *UseCase) commit(ctx context.Context, state *RunState, logger output.LoggerPort, why string) {
	plan := state.Commit()
	if uc.progress != nil {
		uc.progress.ShowPlan(ctx, state.RunID, plan)
	}
	logger.Debug("Plan revised", "version", plan.Version, "steps", len(plan.Steps), "reason", why)
	uc.record(ctx, state, logger, why, fmt.Sprintf("plan v%d", plan.Version))
}

// record appends an orchestrator entry. The log is advisory at this level, so failures are only logged.
func (uc *UseCase) record(ctx context.Context, state *RunState, logger output.LoggerPort, reflection, action string) {
	_, err := uc.log.Append(context.WithoutCancel(ctx), entity.StepRecord{
		RunID:               state.RunID,
		Actor:               entity.ActorOrchestrator,
		ReflectionText:      reflection,
		ChosenAction:        action,
		ObservedStateDigest: state.Digest(),
	})
	if err != nil {
		logger.Error("Failed to append orchestrator record", "error", err)
	}
}

func foldSummary(step entity.PlanStep, result entity.DelegateResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "step %d (%s) %s: %s", step.ID, step.Kind, result.Status, result.Message)
	if result.Failure != entity.FailureNone {
		fmt.Fprintf(&sb, " [%s]", result.Failure)
	}
	if result.Navigate != nil {
		fmt.Fprintf(&sb, "; relevant=%d irrelevant=%d", len(result.Navigate.Relevant), len(result.Navigate.Irrelevant))
	}
	if result.Extract != nil {
		fmt.Fprintf(&sb, "; persisted=%d", result.Extract.PersistedCount)
	}
	return sb.String()
}

func interruption(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "run deadline exceeded"
	}
	return "run cancelled"
}
