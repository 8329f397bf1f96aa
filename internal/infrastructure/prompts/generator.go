package prompts

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"scout-agent/internal/application/port/output"
	"scout-agent/internal/domain/entity"
)

type AgentInfo struct {
	Name        string
	Description string
}

type Field struct {
	Name string
	Type string
}

type DelegatePromptData struct {
	Goal     string
	Hints    []string
	Fields   []Field
	Actions  []string
	MaxTurns int
}

type PlannerPromptData struct {
	Agents []AgentInfo
	Fields []Field
}

type ReviserPromptData struct {
	Goal       string
	Kind       string
	StepGoal   string
	StepHints  []string
	Attempt    int
	Failure    string
	Message    string
	Unexplored []string
	Irrelevant []string
}

var funcs = template.FuncMap{
	"join": strings.Join,
}

func Render(name, baseTemplate string, data any) (string, error) {
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(baseTemplate)
	if err != nil {
		return "", fmt.Errorf("parse %s prompt: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}

	return buf.String(), nil
}

func Fields(schema entity.Schema) []Field {
	fields := make([]Field, 0, len(schema))
	for _, name := range schema.Fields() {
		fields = append(fields, Field{Name: name, Type: string(schema[name])})
	}
	return fields
}

// DelegateTemplate picks the system prompt template for a sub-agent actor.
func DelegateTemplate(actor entity.Actor) (string, bool) {
	switch actor {
	case entity.ActorNavigateAgent:
		return NavigatePrompt, true
	case entity.ActorExtractAgent:
		return ExtractPrompt, true
	default:
		return "", false
	}
}

func GenerateDelegatePrompt(actor entity.Actor, data DelegatePromptData) (string, error) {
	tmpl, ok := DelegateTemplate(actor)
	if !ok {
		return "", fmt.Errorf("no prompt for actor %s", actor)
	}
	return Render(strings.ToLower(string(actor)), tmpl, data)
}

func GeneratePlannerPrompt(baseTemplate string, registry output.DelegateRegistry, schema entity.Schema) (string, error) {
	kinds := registry.List()
	agentInfos := make([]AgentInfo, 0, len(kinds))

	for _, kind := range kinds {
		d, _ := registry.Get(kind)
		agentInfos = append(agentInfos, AgentInfo{
			Name:        string(kind),
			Description: d.Description(),
		})
	}

	sort.Slice(agentInfos, func(i, j int) bool {
		return agentInfos[i].Name > agentInfos[j].Name
	})

	return Render("planner", baseTemplate, PlannerPromptData{
		Agents: agentInfos,
		Fields: Fields(schema),
	})
}
