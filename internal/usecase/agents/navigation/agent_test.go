package navigation

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scout-agent/internal/application/port/output"
	"scout-agent/internal/domain/entity"
	"scout-agent/internal/infrastructure/logger"
	"scout-agent/internal/usecase/steploop"
)

type scriptedReasoner struct {
	decisions []entity.Action
	calls     int
}

func (r *scriptedReasoner) Reason(context.Context, output.ReasonRequest) (*output.Decision, error) {
	a := r.decisions[r.calls]
	r.calls++
	return &output.Decision{Evaluation: entity.EvaluationUnknown, Action: a}, nil
}

type pagedExecutor struct {
	pages    []*entity.Snapshot
	executed []entity.Action
}

func (e *pagedExecutor) Observe(context.Context) (*entity.Snapshot, error) {
	return &entity.Snapshot{URL: "about:blank"}, nil
}

func (e *pagedExecutor) Execute(_ context.Context, a entity.Action) (*entity.Snapshot, error) {
	e.executed = append(e.executed, a)
	return e.pages[len(e.executed)-1], nil
}

type sessions map[string]output.ActionExecutor

func (s sessions) Session(runID string) (output.ActionExecutor, bool) {
	e, ok := s[runID]
	return e, ok
}

type memLog struct {
	mu      sync.Mutex
	records []entity.StepRecord
}

func (m *memLog) Append(_ context.Context, rec entity.StepRecord) (entity.StepRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.TurnIndex = len(m.records) + 1
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *memLog) Steps(context.Context, string) ([]entity.StepRecord, error) {
	return m.records, nil
}

func done(t *testing.T, payload map[string]any) entity.Action {
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return entity.Action{Kind: entity.ActionDone, Payload: raw}
}

func newAgent(reasoner output.Reasoner, exec output.ActionExecutor, log output.ArtifactLog) *Agent {
	cfg := steploop.DefaultConfig()
	cfg.MaxTurns = 10
	cfg.RetryBackoff = 0
	loop := steploop.New(reasoner, log, logger.NewNopLogger(), cfg)
	return New(loop, sessions{"run-1": exec}, logger.NewNopLogger())
}

func TestInvoke_CourseCatalogScenario(t *testing.T) {
	const catalog = "https://example.edu/catalog/X"
	reasoner := &scriptedReasoner{decisions: []entity.Action{
		{Kind: entity.ActionSearch, Query: "official course catalog academic year X"},
		{Kind: entity.ActionClick, Index: 1},
		done(t, map[string]any{"status": "success", "message": "found", "relevant": []string{catalog}}),
	}}
	exec := &pagedExecutor{pages: []*entity.Snapshot{
		{URL: "https://search.example/?q=catalog", Elements: []entity.Element{{Index: 1, Kind: "a", Label: "Course Catalog X"}}},
		{URL: catalog, Title: "Catalog X"},
	}}
	log := &memLog{}

	result, err := newAgent(reasoner, exec, log).Invoke(context.Background(), entity.DelegateRequest{
		RunID:        "run-1",
		InvocationID: "inv-1",
		Kind:         entity.AgentNavigate,
		Goal:         "find official course catalog for academic year X",
	})
	require.NoError(t, err)

	assert.Equal(t, entity.ResultSuccess, result.Status)
	assert.Equal(t, []string{catalog}, result.Navigate.Relevant)
	assert.Equal(t, "inv-1", result.InvocationID)
	assert.Equal(t, 3, reasoner.calls)
	assert.Len(t, log.records, 3)
	for _, rec := range log.records {
		assert.Equal(t, entity.ActorNavigateAgent, rec.Actor)
	}
}

func TestInvoke_RejectsInvalidRequest(t *testing.T) {
	a := newAgent(&scriptedReasoner{}, &pagedExecutor{}, &memLog{})

	_, err := a.Invoke(context.Background(), entity.DelegateRequest{RunID: "run-1", Kind: entity.AgentNavigate})
	assert.ErrorIs(t, err, entity.ErrInvalidRequest)

	_, err = a.Invoke(context.Background(), entity.DelegateRequest{RunID: "run-1", Kind: entity.AgentExtract, Goal: "x", Schema: entity.Schema{"a": entity.FieldString}})
	assert.ErrorIs(t, err, entity.ErrInvalidRequest)
}

func TestInvoke_MissingSessionIsExecutorUnavailable(t *testing.T) {
	a := newAgent(&scriptedReasoner{}, &pagedExecutor{}, &memLog{})

	result, err := a.Invoke(context.Background(), entity.DelegateRequest{RunID: "other", Kind: entity.AgentNavigate, Goal: "x"})
	require.NoError(t, err)
	assert.Equal(t, entity.FailureExecutorUnavailable, result.Failure)
}

func TestTerminalParse(t *testing.T) {
	tests := []struct {
		name        string
		allowEmpty  bool
		payload     map[string]any
		wantStatus  entity.ResultStatus
		wantFailure entity.FailureKind
		wantErr     bool
	}{
		{
			name:       "success with resources",
			payload:    map[string]any{"status": "success", "relevant": []string{"https://a.example/x"}},
			wantStatus: entity.ResultSuccess,
		},
		{
			name:        "empty success downgraded",
			payload:     map[string]any{"status": "success", "relevant": []string{}},
			wantStatus:  entity.ResultFailed,
			wantFailure: entity.FailureContentNotFound,
		},
		{
			name:       "empty success allowed",
			allowEmpty: true,
			payload:    map[string]any{"status": "success"},
			wantStatus: entity.ResultSuccess,
		},
		{
			name:        "agent gave up",
			payload:     map[string]any{"status": "failed", "message": "no catalog published"},
			wantStatus:  entity.ResultFailed,
			wantFailure: entity.FailureContentNotFound,
		},
		{
			name:    "unknown status",
			payload: map[string]any{"status": "partial"},
			wantErr: true,
		},
		{
			name:    "relative url",
			payload: map[string]any{"status": "success", "relevant": []string{"/catalog"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term := &Terminal{AllowEmpty: tt.allowEmpty}
			got, err := term.Parse(done(t, tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantFailure, got.Failure)
			assert.NotNil(t, got.Navigate)
		})
	}
}
