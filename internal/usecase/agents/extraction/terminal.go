package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"scout-agent/internal/domain/entity"
)

// Terminal parses the extraction agent's done action. The persisted count always
// comes from the rows actually stored, never from the payload.
type Terminal struct {
	rows *rowCollector
}

type donePayload struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (t *Terminal) IsTerminal(action entity.Action) bool {
	return action.Kind == entity.ActionDone
}

func (t *Terminal) Parse(action entity.Action) (entity.DelegateResult, error) {
	var p donePayload
	if err := json.Unmarshal(action.Payload, &p); err != nil {
		return entity.DelegateResult{}, fmt.Errorf("invalid done payload: %w", err)
	}

	switch entity.ResultStatus(strings.ToLower(p.Status)) {
	case entity.ResultSuccess:
		return entity.NewExtractResult(entity.ResultSuccess, p.Message, t.inserted()), nil
	case entity.ResultFailed:
		result := entity.NewExtractResult(entity.ResultFailed, p.Message, t.inserted())
		result.Failure = entity.FailureContentNotFound
		return result, nil
	default:
		return entity.DelegateResult{}, fmt.Errorf("unknown status %q", p.Status)
	}
}

func (t *Terminal) Fail(failure entity.FailureKind, message string) entity.DelegateResult {
	result := entity.FailedResult(entity.AgentExtract, failure, message)
	result.Extract.PersistedCount = t.inserted()
	return result
}

func (t *Terminal) inserted() int {
	if t.rows == nil {
		return 0
	}
	return t.rows.Inserted()
}
