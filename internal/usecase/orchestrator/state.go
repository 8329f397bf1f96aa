package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"scout-agent/internal/domain/entity"
	"scout-agent/internal/domain/ledger"
)

// RunState is owned by exactly one run. Only the orchestrator mutates it.
type RunState struct {
	RunID       string
	Goal        string
	Status      entity.RunStatus
	Plan        entity.Plan
	Revisions   []entity.Plan
	Ledger      *ledger.Ledger
	Invocations int
	Explanation string

	nextID int
	folded map[string]bool
	// lineageFailures counts failed replacements per originating step.
	lineageFailures map[int]int
}

func NewRunState(runID, goal string, schema entity.Schema) *RunState {
	return &RunState{
		RunID:           runID,
		Goal:            goal,
		Status:          entity.RunPlanning,
		Plan:            entity.Plan{Schema: schema.Clone()},
		Ledger:          ledger.New(),
		nextID:          1,
		folded:          make(map[string]bool),
		lineageFailures: make(map[int]int),
	}
}

// AppendStep assigns the next unused ID. An origin of 0 makes the step its own lineage.
func (s *RunState) AppendStep(d entity.StepDraft, origin int) entity.PlanStep {
	step := entity.PlanStep{
		ID:              s.nextID,
		Kind:            d.Kind,
		Goal:            d.Goal,
		Hints:           append([]string(nil), d.Hints...),
		SuccessCriteria: d.SuccessCriteria,
		Status:          entity.StepPending,
		OriginID:        origin,
		Target:          d.Target,
		AllowEmpty:      d.AllowEmpty,
	}
	if origin == 0 {
		step.OriginID = step.ID
	}
	s.nextID++
	s.Plan.Steps = append(s.Plan.Steps, step)
	return step
}

// Commit records the current plan as a new revision.
func (s *RunState) Commit() entity.Plan {
	s.Plan.Version++
	snapshot := s.Plan.Clone()
	s.Revisions = append(s.Revisions, snapshot)
	return snapshot
}

// Fold applies a delegate result to the step it was produced for and returns the
// resources that became relevant because of it. Only an IN_PROGRESS step accepts a
// result, and an invocation is folded at most once, so folding the same result twice is a no-op.
func (s *RunState) Fold(stepID int, result entity.DelegateResult) (newlyRelevant []string, applied bool) {
	step, ok := s.Plan.Step(stepID)
	if !ok || step.Status != entity.StepInProgress {
		return nil, false
	}
	if result.InvocationID != "" {
		if s.folded[result.InvocationID] {
			return nil, false
		}
		s.folded[result.InvocationID] = true
	}

	// Rows are already stored when a result arrives, so the count is kept even for failures.
	if result.Extract != nil {
		s.Ledger.AddPersisted(result.Extract.PersistedCount)
	}

	if !result.Succeeded() {
		step.Status = entity.StepFailed
		return nil, true
	}

	step.Status = entity.StepDone
	if result.Navigate != nil {
		for _, r := range result.Navigate.Relevant {
			prev, known := s.Ledger.Lookup(r)
			s.Ledger.Record(r, entity.Relevant, stepID)
			if !known || prev.Relevance != entity.Relevant {
				newlyRelevant = append(newlyRelevant, r)
			}
		}
		for _, r := range result.Navigate.Irrelevant {
			s.Ledger.Record(r, entity.Irrelevant, stepID)
		}
	}
	if step.Kind == entity.AgentExtract && step.Target != "" {
		s.Ledger.MarkExplored(step.Target)
	}
	return newlyRelevant, true
}

// Unexplored lists relevant resources that no live step targets and no step has been handed yet.
func (s *RunState) Unexplored() []string {
	var out []string
	for _, r := range s.Ledger.Unexplored() {
		if !s.hasLiveTarget(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s *RunState) hasLiveTarget(resource string) bool {
	for _, st := range s.Plan.Steps {
		if st.Target == resource && !st.Status.IsSettled() {
			return true
		}
	}
	return false
}

// abandonLineage marks every step descending from origin as permanently abandoned.
func (s *RunState) abandonLineage(origin int) {
	for i := range s.Plan.Steps {
		if s.Plan.Steps[i].OriginID == origin {
			s.Plan.Steps[i].Abandoned = true
		}
	}
}

// Settled reports whether the plan meets the DONE condition. It is only meaningful once nothing is pending.
func (s *RunState) Settled() (bool, string) {
	if s.Ledger.Persisted() > 0 {
		return true, fmt.Sprintf("%d records persisted", s.Ledger.Persisted())
	}

	succeeded := 0
	for _, st := range s.Plan.Steps {
		if st.Status == entity.StepDone {
			succeeded++
		}
	}
	if succeeded == 0 {
		return false, "no step succeeded and no records were persisted"
	}

	for _, r := range s.Ledger.Relevant() {
		if !s.extractionSettled(r) {
			return false, fmt.Sprintf("relevant resource %s was never extracted", r)
		}
	}
	return true, fmt.Sprintf("%d steps succeeded, every relevant resource was extracted, no matching records exist", succeeded)
}

func (s *RunState) extractionSettled(resource string) bool {
	for _, st := range s.Plan.Steps {
		if st.Kind == entity.AgentExtract && st.Target == resource && st.Status.IsSettled() {
			return true
		}
	}
	return s.Ledger.IsExplored(resource)
}

// Digest fingerprints the orchestrator's observable state for the artifact log.
func (s *RunState) Digest() string {
	data, err := json.Marshal(struct {
		Plan      entity.Plan          `json:"plan"`
		Visits    []entity.VisitRecord `json:"visits"`
		Persisted int                  `json:"persisted"`
	}{s.Plan, s.Ledger.Records(), s.Ledger.Persisted()})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
