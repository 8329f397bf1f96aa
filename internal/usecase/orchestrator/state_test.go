package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scout-agent/internal/domain/entity"
)

// start marks a step IN_PROGRESS the way the orchestrator does before delegating it.
func start(t *testing.T, s *RunState, id int) {
	t.Helper()
	step, ok := s.Plan.Step(id)
	require.True(t, ok)
	step.Status = entity.StepInProgress
}

func TestRunState_FoldIsIdempotent(t *testing.T) {
	s := NewRunState("run-1", "courses", courseSchema)
	s.AppendStep(entity.StepDraft{Kind: entity.AgentExtract, Goal: "extract"}, 0)
	start(t, s, 1)

	result := entity.NewExtractResult(entity.ResultSuccess, "stored", 5)
	result.InvocationID = "inv-1"

	_, applied := s.Fold(1, result)
	require.True(t, applied)
	_, applied = s.Fold(1, result)
	assert.False(t, applied)

	assert.Equal(t, 5, s.Ledger.Persisted())
}

func TestRunState_FoldWithoutInvocationIDCountsOnce(t *testing.T) {
	s := NewRunState("run-1", "courses", courseSchema)
	s.AppendStep(entity.StepDraft{Kind: entity.AgentExtract, Goal: "extract"}, 0)
	start(t, s, 1)

	result := entity.NewExtractResult(entity.ResultSuccess, "ok", 3)

	_, applied := s.Fold(1, result)
	require.True(t, applied)
	_, applied = s.Fold(1, result)
	assert.False(t, applied)

	assert.Equal(t, 3, s.Ledger.Persisted())
	step, _ := s.Plan.Step(1)
	assert.Equal(t, entity.StepDone, step.Status)
}

func TestRunState_FoldIgnoresStepsNotInProgress(t *testing.T) {
	s := NewRunState("run-1", "courses", courseSchema)
	s.AppendStep(entity.StepDraft{Kind: entity.AgentExtract, Goal: "extract"}, 0)

	result := entity.NewExtractResult(entity.ResultSuccess, "ok", 3)
	result.InvocationID = "inv-1"

	_, applied := s.Fold(1, result)
	assert.False(t, applied, "pending step")
	_, applied = s.Fold(7, result)
	assert.False(t, applied, "unknown step")

	assert.Zero(t, s.Ledger.Persisted())
	step, _ := s.Plan.Step(1)
	assert.Equal(t, entity.StepPending, step.Status)

	start(t, s, 1)
	_, applied = s.Fold(1, result)
	assert.True(t, applied, "the invocation id is only claimed by an applied fold")
}

func TestRunState_FoldReportsNewlyRelevantOnce(t *testing.T) {
	s := NewRunState("run-1", "courses", courseSchema)
	s.AppendStep(entity.StepDraft{Kind: entity.AgentNavigate, Goal: "a"}, 0)
	s.AppendStep(entity.StepDraft{Kind: entity.AgentNavigate, Goal: "b"}, 0)

	first := entity.NewNavigateResult(entity.ResultSuccess, "", []string{"x", "y"}, []string{"z"})
	first.InvocationID = "inv-1"
	start(t, s, 1)
	fresh, _ := s.Fold(1, first)
	assert.Equal(t, []string{"x", "y"}, fresh)

	second := entity.NewNavigateResult(entity.ResultSuccess, "", []string{"y", "z"}, nil)
	second.InvocationID = "inv-2"
	start(t, s, 2)
	fresh, _ = s.Fold(2, second)
	assert.Equal(t, []string{"z"}, fresh, "z turned relevant, y was already known")

	rec, ok := s.Ledger.Lookup("z")
	require.True(t, ok)
	assert.Equal(t, entity.Relevant, rec.Relevance)
	assert.Equal(t, 1, rec.FirstSeenStep)
}

func TestRunState_AppendStepAssignsFreshIDs(t *testing.T) {
	s := NewRunState("run-1", "courses", courseSchema)
	a := s.AppendStep(entity.StepDraft{Kind: entity.AgentNavigate, Goal: "a"}, 0)
	b := s.AppendStep(entity.StepDraft{Kind: entity.AgentNavigate, Goal: "a again"}, a.ID)

	assert.Equal(t, 1, a.ID)
	assert.Equal(t, 1, a.OriginID)
	assert.Equal(t, 2, b.ID)
	assert.Equal(t, 1, b.OriginID)
	assert.True(t, b.IsReplacement())
}

func TestRunState_CommitKeepsRevisionsIndependent(t *testing.T) {
	s := NewRunState("run-1", "courses", courseSchema)
	s.AppendStep(entity.StepDraft{Kind: entity.AgentNavigate, Goal: "a", Hints: []string{"h"}}, 0)
	v1 := s.Commit()

	s.Plan.Steps[0].Hints[0] = "changed"
	s.AppendStep(entity.StepDraft{Kind: entity.AgentNavigate, Goal: "b"}, 0)
	v2 := s.Commit()

	assert.Equal(t, 1, v1.Version)
	assert.Equal(t, 2, v2.Version)
	assert.Len(t, s.Revisions[0].Steps, 1)
	assert.Equal(t, "h", s.Revisions[0].Steps[0].Hints[0])
}

func TestRunState_Settled(t *testing.T) {
	s := NewRunState("run-1", "courses", courseSchema)
	ok, _ := s.Settled()
	assert.False(t, ok)

	s.AppendStep(entity.StepDraft{Kind: entity.AgentNavigate, Goal: "a"}, 0)
	nav := entity.NewNavigateResult(entity.ResultSuccess, "", []string{"x"}, nil)
	nav.InvocationID = "inv-1"
	start(t, s, 1)
	s.Fold(1, nav)

	ok, why := s.Settled()
	assert.False(t, ok)
	assert.Contains(t, why, "never extracted")

	s.AppendStep(entity.StepDraft{Kind: entity.AgentExtract, Goal: "x", Target: "x"}, 0)
	ext := entity.NewExtractResult(entity.ResultSuccess, "", 0)
	ext.InvocationID = "inv-2"
	start(t, s, 2)
	s.Fold(2, ext)

	ok, _ = s.Settled()
	assert.True(t, ok)
	assert.Empty(t, s.Unexplored())
}
