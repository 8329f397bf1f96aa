// Package steploop runs the reflect, act, observe cycle shared by every sub-agent.
package steploop

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"scout-agent/internal/application/port/output"
	"scout-agent/internal/domain/entity"
)

// Task is the immutable description of one delegation handed to the loop.
type Task struct {
	RunID   string
	Actor   entity.Actor
	Goal    string
	Hints   []string
	Schema  entity.Schema
	Allowed []entity.ActionKind
}

func (t Task) allows(kind entity.ActionKind) bool {
	return slices.Contains(t.Allowed, kind)
}

// Terminal recognizes the action that ends a delegation and turns it into a result.
type Terminal interface {
	IsTerminal(action entity.Action) bool
	Parse(action entity.Action) (entity.DelegateResult, error)
	Fail(failure entity.FailureKind, message string) entity.DelegateResult
}

type Loop struct {
	reasoner output.Reasoner
	log      output.ArtifactLog
	logger   output.LoggerPort
	blobs    output.BlobStore
	progress output.ProgressPort
	tracer   trace.Tracer
	cfg      Config
}

type Option func(*Loop)

func WithBlobStore(b output.BlobStore) Option {
	return func(l *Loop) { l.blobs = b }
}

func WithProgress(p output.ProgressPort) Option {
	return func(l *Loop) { l.progress = p }
}

func WithTracer(t trace.Tracer) Option {
	return func(l *Loop) { l.tracer = t }
}

func New(
	reasoner output.Reasoner,
	log output.ArtifactLog,
	logger output.LoggerPort,
	cfg Config,
	opts ...Option,
) *Loop {
	l := &Loop{
		reasoner: reasoner,
		log:      log,
		logger:   logger,
		tracer:   noop.NewTracerProvider().Tracer("scout-agent/steploop"),
		cfg:      cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) Config() Config {
	return l.cfg
}

// Run drives one delegation to a result. It never returns an error: every failure,
// including cancellation, becomes a FAILED result from terminal.Fail.
func (l *Loop) Run(
	ctx context.Context,
	task Task,
	initial *entity.Snapshot,
	executor output.ActionExecutor,
	terminal Terminal,
) entity.DelegateResult {
	ctx, span := l.tracer.Start(ctx, "steploop.run", trace.WithAttributes(
		attribute.String("run.id", task.RunID),
		attribute.String("actor", string(task.Actor)),
	))
	defer span.End()

	logger := l.logger.WithFields(map[string]any{"runId": task.RunID, "actor": string(task.Actor)})

	state := initial
	if state == nil {
		var err error
		state, err = l.observe(ctx, executor)
		if err != nil {
			logger.Error("Initial observation failed", "error", err)
			return l.finish(span, terminal.Fail(entity.FailureExecutorUnavailable, "could not observe the browsing session: "+err.Error()))
		}
	}

	var (
		memory string
		stalls stallTracker
	)

	for turn := 1; turn <= l.cfg.MaxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return l.finish(span, interrupted(terminal, err, turn))
		}

		l.showTurn(ctx, task, turn)
		logger.Debug("Starting turn", "turn", turn, "maxTurns", l.cfg.MaxTurns)

		decision, err := l.reason(ctx, task, memory, state, turn)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return l.finish(span, interrupted(terminal, ctxErr, turn))
			}
			logger.Error("Reasoner failed", "turn", turn, "error", err)
			failure := entity.FailureReasonerUnavailable
			if errors.Is(err, entity.ErrNoAction) {
				failure = entity.FailureSchemaViolation
			}
			if _, logErr := l.record(ctx, task, string(failure)+": "+err.Error(), "none", state.Digest(), ""); logErr != nil {
				logger.Error("Failed to append step record", "error", logErr)
			}
			return l.finish(span, terminal.Fail(failure, fmt.Sprintf("reasoner failed on turn %d: %v", turn, err)))
		}

		action := decision.Action
		sig := action.Signature()
		reflection := formatReflection(decision)
		before := state.Digest()
		l.showThinking(ctx, task, reflection)

		if terminal.IsTerminal(action) {
			result, parseErr := terminal.Parse(action)
			if parseErr != nil {
				logger.Warn("Terminal payload rejected", "turn", turn, "error", parseErr)
				result = terminal.Fail(entity.FailureSchemaViolation, "terminal result rejected: "+parseErr.Error())
			}
			if _, err := l.record(ctx, task, reflection, sig, before, ""); err != nil {
				logger.Error("Failed to append step record", "error", err)
				return l.finish(span, terminal.Fail(entity.FailureLogUnavailable, err.Error()))
			}
			logger.Info("Delegation finished", "turn", turn, "status", string(result.Status), "failure", string(result.Failure))
			return l.finish(span, result)
		}

		var next *entity.Snapshot
		if !task.allows(action.Kind) {
			logger.Warn("Action outside vocabulary", "turn", turn, "action", sig)
			next = state.WithNote(fmt.Sprintf("Error: action '%s' is not available here", action.Kind))
		} else {
			next, err = l.execute(ctx, executor, action)
			if err != nil {
				logger.Error("Executor failed", "turn", turn, "action", sig, "error", err)
				if _, logErr := l.record(ctx, task, reflection, sig, before, ""); logErr != nil {
					logger.Error("Failed to append step record", "error", logErr)
				}
				if ctxErr := ctx.Err(); ctxErr != nil {
					return l.finish(span, interrupted(terminal, ctxErr, turn))
				}
				return l.finish(span, terminal.Fail(entity.FailureExecutorUnavailable, fmt.Sprintf("action %s failed on turn %d: %v", action.Kind, turn, err)))
			}
			next = l.truncateNote(next)
		}
		l.showAction(ctx, task, action, next.Note)

		after := next.Digest()
		ref := l.storeScreenshot(ctx, task, next, logger)
		if _, err := l.record(ctx, task, reflection, sig, after, ref); err != nil {
			logger.Error("Failed to append step record", "error", err)
			return l.finish(span, terminal.Fail(entity.FailureLogUnavailable, err.Error()))
		}

		streak := stalls.observe(sig, before, after)
		if streak >= l.cfg.MaxStalls {
			logger.Warn("Stalled", "turn", turn, "streak", streak, "action", sig)
			return l.finish(span, terminal.Fail(entity.FailureStalled,
				fmt.Sprintf("action %q repeated %d times without changing the page", sig, streak)))
		}

		memory = decision.Memory
		if streak >= l.cfg.StallThreshold {
			logger.Info("Forcing alternative approach", "turn", turn, "streak", streak)
			memory = alternativeDirective + "\n" + memory
		}
		state = next
	}

	logger.Warn("Turn budget exhausted", "maxTurns", l.cfg.MaxTurns)
	return l.finish(span, terminal.Fail(entity.FailureBudgetExhausted,
		fmt.Sprintf("turn budget of %d exhausted without a terminal action", l.cfg.MaxTurns)))
}

func (l *Loop) reason(ctx context.Context, task Task, memory string, state *entity.Snapshot, turn int) (*output.Decision, error) {
	req := output.ReasonRequest{
		RunID:    task.RunID,
		Actor:    task.Actor,
		Goal:     task.Goal,
		Hints:    task.Hints,
		Schema:   task.Schema,
		Memory:   memory,
		Snapshot: state,
		Allowed:  task.Allowed,
		Turn:     turn,
		MaxTurns: l.cfg.MaxTurns,
	}

	var lastErr error
	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := l.backoff(ctx); err != nil {
				return nil, err
			}
		}
		decision, err := l.reasoner.Reason(ctx, req)
		if err == nil && decision != nil {
			return decision, nil
		}
		if err == nil {
			err = entity.ErrNoAction
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, lastErr
		}
		l.logger.Warn("Reasoner attempt failed", "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

// execute runs an action on a context detached from cancellation so an in-flight
// action completes before the loop honors it. Cancellation still cuts the wait
// between attempts short.
func (l *Loop) execute(ctx context.Context, executor output.ActionExecutor, action entity.Action) (*entity.Snapshot, error) {
	var lastErr error
	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := l.backoff(ctx); err != nil {
				return nil, lastErr
			}
		}
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.ActionTimeout)
		snap, err := executor.Execute(actx, action)
		cancel()
		if err == nil && snap != nil {
			return snap, nil
		}
		if err == nil {
			err = errors.New("executor returned no snapshot")
		}
		lastErr = err
		if errors.Is(err, entity.ErrExecutorUnavailable) {
			return nil, err
		}
		l.logger.Warn("Executor attempt failed", "attempt", attempt+1, "action", string(action.Kind), "error", err)
	}
	return nil, lastErr
}

func (l *Loop) observe(ctx context.Context, executor output.ActionExecutor) (*entity.Snapshot, error) {
	var lastErr error
	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := l.backoff(ctx); err != nil {
				return nil, err
			}
		}
		actx, cancel := context.WithTimeout(ctx, l.cfg.ActionTimeout)
		snap, err := executor.Observe(actx)
		cancel()
		if err == nil && snap != nil {
			return snap, nil
		}
		if err == nil {
			err = errors.New("executor returned no snapshot")
		}
		lastErr = err
		if errors.Is(err, entity.ErrExecutorUnavailable) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (l *Loop) backoff(ctx context.Context) error {
	if l.cfg.RetryBackoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(l.cfg.RetryBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (l *Loop) record(ctx context.Context, task Task, reflection, action, digest, ref string) (entity.StepRecord, error) {
	return l.log.Append(context.WithoutCancel(ctx), entity.StepRecord{
		RunID:               task.RunID,
		Actor:               task.Actor,
		ReflectionText:      reflection,
		ChosenAction:        action,
		ObservedStateDigest: digest,
		HeavyArtifactRef:    ref,
	})
}

func (l *Loop) storeScreenshot(ctx context.Context, task Task, snap *entity.Snapshot, logger output.LoggerPort) string {
	if l.blobs == nil || len(snap.Screenshot) == 0 {
		return ""
	}
	ref, err := l.blobs.Put(context.WithoutCancel(ctx), task.RunID, snap.Screenshot, "jpg")
	if err != nil {
		logger.Warn("Failed to store screenshot", "error", err)
		return ""
	}
	return ref
}

func (l *Loop) truncateNote(snap *entity.Snapshot) *entity.Snapshot {
	if len(snap.Note) <= l.cfg.MaxNoteLen {
		return snap
	}
	return snap.WithNote(snap.Note[:l.cfg.MaxNoteLen] + "\n... (truncated)")
}

func (l *Loop) finish(span trace.Span, result entity.DelegateResult) entity.DelegateResult {
	span.SetAttributes(
		attribute.String("result.status", string(result.Status)),
		attribute.String("result.failure", string(result.Failure)),
	)
	if !result.Succeeded() {
		span.SetStatus(codes.Error, result.Message)
	}
	return result
}

func (l *Loop) showTurn(ctx context.Context, task Task, turn int) {
	if l.progress != nil {
		l.progress.ShowTurn(ctx, task.RunID, task.Actor, turn, l.cfg.MaxTurns)
	}
}

func (l *Loop) showThinking(ctx context.Context, task Task, reflection string) {
	if l.progress != nil {
		l.progress.ShowThinking(ctx, task.RunID, reflection)
	}
}

func (l *Loop) showAction(ctx context.Context, task Task, action entity.Action, note string) {
	if l.progress != nil {
		l.progress.ShowAction(ctx, task.RunID, action, note, strings.HasPrefix(note, "Error:"))
	}
}

func interrupted(terminal Terminal, err error, turn int) entity.DelegateResult {
	if errors.Is(err, context.DeadlineExceeded) {
		return terminal.Fail(entity.FailureTimeout, fmt.Sprintf("run deadline reached before turn %d", turn))
	}
	return terminal.Fail(entity.FailureCancelled, fmt.Sprintf("run cancelled before turn %d", turn))
}

func formatReflection(d *output.Decision) string {
	eval := d.Evaluation
	if eval == "" {
		eval = entity.EvaluationUnknown
	}
	return fmt.Sprintf("eval=%s | memory=%s | next=%s", eval, d.Memory, d.NextGoal)
}
