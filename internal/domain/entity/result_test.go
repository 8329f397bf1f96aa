package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDelegateRequestValidate(t *testing.T) {
	schema := Schema{"title": FieldString}

	tests := []struct {
		name    string
		req     DelegateRequest
		wantErr bool
	}{
		{"navigate ok", DelegateRequest{Kind: AgentNavigate, Goal: "find products"}, false},
		{"extract ok", DelegateRequest{Kind: AgentExtract, Goal: "extract products", Schema: schema}, false},
		{"empty goal", DelegateRequest{Kind: AgentNavigate, Goal: "   "}, true},
		{"unknown kind", DelegateRequest{Kind: "FORM", Goal: "x"}, true},
		{"schema on navigate", DelegateRequest{Kind: AgentNavigate, Goal: "x", Schema: schema}, true},
		{"extract without schema", DelegateRequest{Kind: AgentExtract, Goal: "x"}, true},
		{"extract with bad schema", DelegateRequest{Kind: AgentExtract, Goal: "x", Schema: Schema{"a": "blob"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidRequest), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewNavigateResultDedups(t *testing.T) {
	r := NewNavigateResult(ResultSuccess, "ok",
		[]string{"https://a", "https://b", "https://a", ""},
		[]string{"https://c", "https://c"},
	)

	assert.Equal(t, []string{"https://a", "https://b"}, r.Navigate.Relevant)
	assert.Equal(t, []string{"https://c"}, r.Navigate.Irrelevant)
	assert.Nil(t, r.Extract)
	assert.True(t, r.Succeeded())
}

func TestFailedResultMatchesKind(t *testing.T) {
	nav := FailedResult(AgentNavigate, FailureStalled, "stuck")
	assert.NotNil(t, nav.Navigate)
	assert.Nil(t, nav.Extract)
	assert.Equal(t, FailureStalled, nav.Failure)
	assert.False(t, nav.Succeeded())

	ext := FailedResult(AgentExtract, FailureBudgetExhausted, "out of turns")
	assert.NotNil(t, ext.Extract)
	assert.Nil(t, ext.Navigate)
	assert.Equal(t, 0, ext.Extract.PersistedCount)
}

func TestFailureKindRetryable(t *testing.T) {
	assert.True(t, FailureExecutorUnavailable.Retryable())
	assert.True(t, FailureReasonerUnavailable.Retryable())
	assert.False(t, FailureContentNotFound.Retryable())
	assert.False(t, FailureStalled.Retryable())
}
