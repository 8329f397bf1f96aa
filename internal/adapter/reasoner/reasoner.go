// Package reasoner turns one step-loop turn into an LLM call and parses the chosen action back.
package reasoner

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"scout-agent/internal/adapter/tool"
	"scout-agent/internal/application/port/output"
	"scout-agent/internal/domain/entity"
	"scout-agent/internal/infrastructure/prompts"
)

var _ output.Reasoner = (*LLMReasoner)(nil)

type Config struct {
	// Vision attaches the page screenshot to every turn.
	Vision      bool
	Temperature float32
}

type LLMReasoner struct {
	llm    output.LLMPort
	logger output.LoggerPort
	cfg    Config
}

func New(llm output.LLMPort, logger output.LoggerPort, cfg Config) *LLMReasoner {
	return &LLMReasoner{llm: llm, logger: logger, cfg: cfg}
}

type reflection struct {
	Evaluation string `json:"evaluation_previous_goal"`
	Memory     string `json:"memory"`
	NextGoal   string `json:"next_goal"`
}

func (r *LLMReasoner) Reason(ctx context.Context, req output.ReasonRequest) (*output.Decision, error) {
	agent := agentKind(req.Actor)

	actions := make([]string, 0, len(req.Allowed))
	for _, k := range req.Allowed {
		actions = append(actions, string(k))
	}

	system, err := prompts.GenerateDelegatePrompt(req.Actor, prompts.DelegatePromptData{
		Goal:     req.Goal,
		Hints:    req.Hints,
		Fields:   prompts.Fields(req.Schema),
		Actions:  actions,
		MaxTurns: req.MaxTurns,
	})
	if err != nil {
		return nil, fmt.Errorf("build system prompt: %w", err)
	}

	user := entity.Message{Role: entity.RoleUser, Content: buildStateMessage(req)}
	if r.cfg.Vision && req.Snapshot != nil && len(req.Snapshot.Screenshot) > 0 {
		user.Images = []string{"data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(req.Snapshot.Screenshot)}
	}

	resp, err := r.llm.Chat(ctx, output.ChatRequest{
		Messages:    []entity.Message{{Role: entity.RoleSystem, Content: system}, user},
		Tools:       tool.Definitions(agent, req.Allowed, req.Schema),
		Temperature: r.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("reasoner llm request failed: %w", err)
	}

	return r.parseDecision(resp.Message)
}

func (r *LLMReasoner) parseDecision(msg entity.Message) (*output.Decision, error) {
	if len(msg.ToolCalls) == 0 {
		return nil, entity.ErrNoAction
	}
	if len(msg.ToolCalls) > 1 {
		r.logger.Warn("Model returned several tool calls, using the first", "count", len(msg.ToolCalls))
	}

	action, err := tool.Decode(msg.ToolCalls[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrNoAction, err)
	}

	refl, err := parseReflection(msg.Content)
	if err != nil {
		r.logger.Debug("No reflection in response", "error", err)
		refl = reflection{Memory: strings.TrimSpace(msg.Content)}
	}

	return &output.Decision{
		Evaluation: entity.ParseEvaluation(strings.ToUpper(strings.TrimSpace(refl.Evaluation))),
		Memory:     refl.Memory,
		NextGoal:   refl.NextGoal,
		Action:     action,
	}, nil
}

func parseReflection(content string) (reflection, error) {
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return reflection{}, fmt.Errorf("no JSON found in response")
	}

	var refl reflection
	if err := json.Unmarshal([]byte(content[start:end+1]), &refl); err != nil {
		return reflection{}, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return refl, nil
}

func buildStateMessage(req output.ReasonRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Turn %d of %d.\n\n", req.Turn, req.MaxTurns)
	sb.WriteString("Memory:\n")
	if req.Memory == "" {
		sb.WriteString("(empty, this is the first turn)\n")
	} else {
		sb.WriteString(req.Memory)
		sb.WriteString("\n")
	}
	sb.WriteString("\nCurrent page state:\n")
	sb.WriteString(req.Snapshot.Describe())
	return sb.String()
}

func agentKind(actor entity.Actor) entity.AgentKind {
	if actor == entity.ActorExtractAgent {
		return entity.AgentExtract
	}
	return entity.AgentNavigate
}
