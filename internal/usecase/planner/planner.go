// Package planner authors and revises plans with an LLM.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"scout-agent/internal/application/port/output"
	"scout-agent/internal/domain/entity"
	"scout-agent/internal/infrastructure/prompts"
)

var (
	_ output.Planner = (*Planner)(nil)
	_ output.Reviser = (*Planner)(nil)
)

const maxPlanSteps = 8

type Planner struct {
	llm       output.LLMPort
	delegates output.DelegateRegistry
	logger    output.LoggerPort
}

func New(llm output.LLMPort, delegates output.DelegateRegistry, logger output.LoggerPort) *Planner {
	return &Planner{
		llm:       llm,
		delegates: delegates,
		logger:    logger,
	}
}

func (p *Planner) Author(ctx context.Context, goal string, schema entity.Schema) ([]entity.StepDraft, error) {
	system, err := prompts.GeneratePlannerPrompt(prompts.PlannerPrompt, p.delegates, schema)
	if err != nil {
		return nil, err
	}

	resp, err := p.llm.Chat(ctx, output.ChatRequest{
		Messages: []entity.Message{
			{Role: entity.RoleSystem, Content: system},
			{Role: entity.RoleUser, Content: "Goal: " + goal},
		},
		Temperature: 0.0,
	})
	if err != nil {
		return nil, fmt.Errorf("planner llm request failed: %w", err)
	}

	var plan struct {
		Steps []entity.StepDraft `json:"steps"`
	}
	if err := extractJSON(resp.Message.Content, &plan); err != nil {
		return nil, err
	}

	drafts := make([]entity.StepDraft, 0, len(plan.Steps))
	for _, d := range plan.Steps {
		d, ok := p.sanitize(d)
		if !ok {
			p.logger.Warn("Dropping unusable plan step", "agent", string(d.Kind), "goal", d.Goal)
			continue
		}
		drafts = append(drafts, d)
		if len(drafts) == maxPlanSteps {
			break
		}
	}

	p.logger.Info("Plan authored", "steps", len(drafts))
	return drafts, nil
}

func (p *Planner) Revise(ctx context.Context, req output.RevisionRequest) (*entity.StepDraft, error) {
	var irrelevant []string
	for _, v := range req.Visits {
		if v.Relevance == entity.Irrelevant {
			irrelevant = append(irrelevant, v.ResourceID)
		}
	}

	system, err := prompts.Render("reviser", prompts.ReviserPrompt, prompts.ReviserPromptData{
		Goal:       req.Goal,
		Kind:       string(req.Failed.Kind),
		StepGoal:   req.Failed.Goal,
		StepHints:  req.Failed.Hints,
		Attempt:    req.Attempt,
		Failure:    string(req.Failure),
		Message:    req.Message,
		Unexplored: req.Unexplored,
		Irrelevant: irrelevant,
	})
	if err != nil {
		return nil, err
	}

	resp, err := p.llm.Chat(ctx, output.ChatRequest{
		Messages: []entity.Message{
			{Role: entity.RoleSystem, Content: system},
			{Role: entity.RoleUser, Content: "Propose the replacement step."},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("reviser llm request failed: %w", err)
	}

	var draft entity.StepDraft
	if err := extractJSON(resp.Message.Content, &draft); err != nil {
		return nil, err
	}
	draft, ok := p.sanitize(draft)
	if !ok {
		return nil, fmt.Errorf("unusable replacement step for agent %q", draft.Kind)
	}
	return &draft, nil
}

func (p *Planner) sanitize(d entity.StepDraft) (entity.StepDraft, bool) {
	d.Kind = entity.AgentKind(strings.ToUpper(strings.TrimSpace(string(d.Kind))))
	d.Goal = strings.TrimSpace(d.Goal)
	if !d.Kind.IsValid() || d.Goal == "" {
		return d, false
	}
	if _, ok := p.delegates.Get(d.Kind); !ok {
		return d, false
	}
	return d, true
}

func extractJSON(response string, v any) error {
	response = strings.TrimSpace(response)

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")

	if start == -1 || end == -1 || end < start {
		return fmt.Errorf("no JSON found in response")
	}

	if err := json.Unmarshal([]byte(response[start:end+1]), v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}
