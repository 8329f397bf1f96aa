package navigation

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"scout-agent/internal/domain/entity"
)

// Terminal parses the navigation agent's done action.
type Terminal struct {
	AllowEmpty bool
}

type donePayload struct {
	Status     string   `json:"status"`
	Message    string   `json:"message"`
	Relevant   []string `json:"relevant"`
	Irrelevant []string `json:"irrelevant"`
}

func (t *Terminal) IsTerminal(action entity.Action) bool {
	return action.Kind == entity.ActionDone
}

func (t *Terminal) Parse(action entity.Action) (entity.DelegateResult, error) {
	var p donePayload
	if err := json.Unmarshal(action.Payload, &p); err != nil {
		return entity.DelegateResult{}, fmt.Errorf("invalid done payload: %w", err)
	}

	for _, list := range [][]string{p.Relevant, p.Irrelevant} {
		for _, u := range list {
			if err := checkResource(u); err != nil {
				return entity.DelegateResult{}, err
			}
		}
	}

	switch entity.ResultStatus(strings.ToLower(p.Status)) {
	case entity.ResultSuccess:
		result := entity.NewNavigateResult(entity.ResultSuccess, p.Message, p.Relevant, p.Irrelevant)
		if len(result.Navigate.Relevant) == 0 && !t.AllowEmpty {
			result.Status = entity.ResultFailed
			result.Failure = entity.FailureContentNotFound
			result.Message = "reported success without any relevant resource: " + p.Message
		}
		return result, nil
	case entity.ResultFailed:
		result := entity.NewNavigateResult(entity.ResultFailed, p.Message, p.Relevant, p.Irrelevant)
		result.Failure = entity.FailureContentNotFound
		return result, nil
	default:
		return entity.DelegateResult{}, fmt.Errorf("unknown status %q", p.Status)
	}
}

func (t *Terminal) Fail(failure entity.FailureKind, message string) entity.DelegateResult {
	return entity.FailedResult(entity.AgentNavigate, failure, message)
}

func checkResource(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("resource %q is not a URL: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("resource %q is not an absolute http(s) URL", raw)
	}
	return nil
}
