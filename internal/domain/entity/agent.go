package entity

import "fmt"

type AgentKind string

const (
	AgentNavigate AgentKind = "NAVIGATE"
	AgentExtract  AgentKind = "EXTRACT"
)

func (k AgentKind) IsValid() bool {
	return k == AgentNavigate || k == AgentExtract
}

func (k AgentKind) Actor() Actor {
	switch k {
	case AgentNavigate:
		return ActorNavigateAgent
	case AgentExtract:
		return ActorExtractAgent
	default:
		return ActorOrchestrator
	}
}

func ParseAgentKind(s string) (AgentKind, error) {
	k := AgentKind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("unknown agent kind %q", s)
	}
	return k, nil
}

// Actor identifies who produced a StepRecord.
type Actor string

const (
	ActorOrchestrator  Actor = "ORCHESTRATOR"
	ActorNavigateAgent Actor = "NAVIGATE_AGENT"
	ActorExtractAgent  Actor = "EXTRACT_AGENT"
)
