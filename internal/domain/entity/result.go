package entity

import (
	"fmt"
	"strings"
)

type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultFailed  ResultStatus = "failed"
)

type FailureKind string

const (
	FailureNone                FailureKind = ""
	FailureContentNotFound     FailureKind = "content_not_found"
	FailureBudgetExhausted     FailureKind = "budget_exhausted"
	FailureStalled             FailureKind = "stalled"
	FailureSchemaViolation     FailureKind = "schema_violation"
	FailureExecutorUnavailable FailureKind = "executor_unavailable"
	FailureReasonerUnavailable FailureKind = "reasoner_unavailable"
	FailureTimeout             FailureKind = "timeout"
	FailureCancelled           FailureKind = "cancelled"
	FailureLogUnavailable      FailureKind = "artifact_log_unavailable"
)

// Retryable reports whether the same step may succeed unchanged once the collaborator recovers.
func (f FailureKind) Retryable() bool {
	return f == FailureExecutorUnavailable || f == FailureReasonerUnavailable
}

type DelegateRequest struct {
	RunID        string
	InvocationID string
	StepID       int
	Kind         AgentKind
	Goal         string
	Hints        []string
	Schema       Schema
	Target       string
	AllowEmpty   bool
}

func (r DelegateRequest) Validate() error {
	if !r.Kind.IsValid() {
		return fmt.Errorf("%w: unknown agent kind %q", ErrInvalidRequest, r.Kind)
	}
	if strings.TrimSpace(r.Goal) == "" {
		return fmt.Errorf("%w: empty goal", ErrInvalidRequest)
	}
	switch r.Kind {
	case AgentNavigate:
		if r.Schema != nil {
			return fmt.Errorf("%w: schema is only accepted for %s", ErrInvalidRequest, AgentExtract)
		}
	case AgentExtract:
		if err := r.Schema.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	return nil
}

type NavigateOutcome struct {
	Relevant   []string `json:"relevant"`
	Irrelevant []string `json:"irrelevant"`
}

type ExtractOutcome struct {
	PersistedCount int `json:"persisted_count"`
}

// DelegateResult is the single report a sub-agent invocation produces.
// Exactly one of Navigate and Extract is set, matching Kind.
type DelegateResult struct {
	InvocationID string           `json:"invocation_id"`
	Kind         AgentKind        `json:"kind"`
	Status       ResultStatus     `json:"status"`
	Message      string           `json:"message"`
	Failure      FailureKind      `json:"failure,omitempty"`
	Navigate     *NavigateOutcome `json:"navigate,omitempty"`
	Extract      *ExtractOutcome  `json:"extract,omitempty"`
}

func (r DelegateResult) Succeeded() bool {
	return r.Status == ResultSuccess
}

func NewNavigateResult(status ResultStatus, message string, relevant, irrelevant []string) DelegateResult {
	return DelegateResult{
		Kind:    AgentNavigate,
		Status:  status,
		Message: message,
		Navigate: &NavigateOutcome{
			Relevant:   dedup(relevant),
			Irrelevant: dedup(irrelevant),
		},
	}
}

func NewExtractResult(status ResultStatus, message string, persisted int) DelegateResult {
	return DelegateResult{
		Kind:    AgentExtract,
		Status:  status,
		Message: message,
		Extract: &ExtractOutcome{PersistedCount: persisted},
	}
}

// FailedResult builds a FAILED result of the given kind carrying an empty outcome.
func FailedResult(kind AgentKind, failure FailureKind, message string) DelegateResult {
	var r DelegateResult
	if kind == AgentExtract {
		r = NewExtractResult(ResultFailed, message, 0)
	} else {
		r = NewNavigateResult(ResultFailed, message, nil, nil)
	}
	r.Failure = failure
	return r
}

func dedup(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
