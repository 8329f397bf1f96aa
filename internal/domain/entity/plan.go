package entity

import (
	"fmt"
	"sort"
	"strings"
)

type FieldType string

const (
	FieldString  FieldType = "string"
	FieldInteger FieldType = "integer"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
)

func (t FieldType) IsValid() bool {
	switch t {
	case FieldString, FieldInteger, FieldNumber, FieldBoolean:
		return true
	default:
		return false
	}
}

// Schema maps an output field name to its primitive type.
type Schema map[string]FieldType

func (s Schema) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: no fields", ErrInvalidSchema)
	}
	for name, typ := range s {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: blank field name", ErrInvalidSchema)
		}
		if !typ.IsValid() {
			return fmt.Errorf("%w: field %q has unknown type %q", ErrInvalidSchema, name, typ)
		}
	}
	return nil
}

// Fields returns the field names in sorted order.
func (s Schema) Fields() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s Schema) Clone() Schema {
	if s == nil {
		return nil
	}
	out := make(Schema, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

type StepStatus string

const (
	StepPending    StepStatus = "PENDING"
	StepInProgress StepStatus = "IN_PROGRESS"
	StepDone       StepStatus = "DONE"
	StepFailed     StepStatus = "FAILED"
)

func (s StepStatus) IsSettled() bool {
	return s == StepDone || s == StepFailed
}

type PlanStep struct {
	ID              int        `json:"step_id"`
	Kind            AgentKind  `json:"agent_kind"`
	Goal            string     `json:"goal"`
	Hints           []string   `json:"hints"`
	SuccessCriteria string     `json:"success_criteria"`
	Status          StepStatus `json:"status"`

	// OriginID is the authored step a replacement descends from. Authored steps carry their own ID.
	OriginID   int    `json:"origin_id"`
	Target     string `json:"target,omitempty"`
	AllowEmpty bool   `json:"allow_empty,omitempty"`
	Abandoned  bool   `json:"abandoned,omitempty"`
}

func (s PlanStep) IsReplacement() bool {
	return s.OriginID != 0 && s.OriginID != s.ID
}

// StepDraft is a step proposed by a planner before the orchestrator assigns it an ID.
type StepDraft struct {
	Kind            AgentKind `json:"agent"`
	Goal            string    `json:"goal"`
	Hints           []string  `json:"hints"`
	SuccessCriteria string    `json:"success_criteria"`
	AllowEmpty      bool      `json:"allow_empty"`
	Target          string    `json:"target,omitempty"`
}

type Plan struct {
	Version int        `json:"version"`
	Steps   []PlanStep `json:"steps"`
	Schema  Schema     `json:"schema"`
}

// Clone returns a deep copy so a stored revision cannot be changed through a later one.
func (p Plan) Clone() Plan {
	out := Plan{
		Version: p.Version,
		Steps:   make([]PlanStep, len(p.Steps)),
		Schema:  p.Schema.Clone(),
	}
	for i, st := range p.Steps {
		st.Hints = append([]string(nil), st.Hints...)
		out.Steps[i] = st
	}
	return out
}

func (p *Plan) Step(id int) (*PlanStep, bool) {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i], true
		}
	}
	return nil, false
}

// NextPending returns the first step still waiting for delegation.
func (p *Plan) NextPending() (*PlanStep, bool) {
	for i := range p.Steps {
		if p.Steps[i].Status == StepPending {
			return &p.Steps[i], true
		}
	}
	return nil, false
}

func (p *Plan) HasTarget(resourceID string) bool {
	for _, st := range p.Steps {
		if st.Target == resourceID {
			return true
		}
	}
	return false
}
