// Package tool exposes the executor action vocabulary as LLM tool definitions and
// decodes tool calls back into actions.
package tool

import (
	"encoding/json"
	"fmt"

	"scout-agent/internal/domain/entity"
)

type actionTool struct {
	kind        entity.ActionKind
	description string
	parameters  func(agent entity.AgentKind, schema entity.Schema) map[string]interface{}
}

func object(properties map[string]interface{}, required ...string) map[string]interface{} {
	if required == nil {
		required = []string{}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}

func static(params map[string]interface{}) func(entity.AgentKind, entity.Schema) map[string]interface{} {
	return func(entity.AgentKind, entity.Schema) map[string]interface{} { return params }
}

var catalog = []actionTool{
	{
		kind:        entity.ActionNavigate,
		description: "Navigates the current tab to a URL",
		parameters:  static(object(map[string]interface{}{"url": prop("string", "Absolute URL to open")}, "url")),
	},
	{
		kind:        entity.ActionSearch,
		description: "Runs a web search in the current tab",
		parameters:  static(object(map[string]interface{}{"query": prop("string", "Search query")}, "query")),
	},
	{
		kind:        entity.ActionGoBack,
		description: "Goes back to the previous page",
		parameters:  static(object(map[string]interface{}{})),
	},
	{
		kind:        entity.ActionClick,
		description: "Clicks an interactive element by its index",
		parameters:  static(object(map[string]interface{}{"index": prop("integer", "Element index from the page state")}, "index")),
	},
	{
		kind:        entity.ActionInputText,
		description: "Types text into an input element by its index",
		parameters: static(object(map[string]interface{}{
			"index": prop("integer", "Element index from the page state"),
			"text":  prop("string", "Text to type"),
		}, "index", "text")),
	},
	{
		kind:        entity.ActionPressEnter,
		description: "Presses the Enter key in the focused element",
		parameters:  static(object(map[string]interface{}{})),
	},
	{
		kind:        entity.ActionScroll,
		description: "Scrolls the page",
		parameters: static(object(map[string]interface{}{
			"direction": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"up", "down", "top", "bottom"},
				"description": "Scroll direction",
			},
			"amount": prop("integer", "Pixels to scroll, 0 for one viewport"),
		}, "direction")),
	},
	{
		kind:        entity.ActionOpenTab,
		description: "Opens a URL in a new tab and switches to it",
		parameters:  static(object(map[string]interface{}{"url": prop("string", "Absolute URL to open")}, "url")),
	},
	{
		kind:        entity.ActionSwitchTab,
		description: "Switches to an open tab by its id",
		parameters:  static(object(map[string]interface{}{"tab_id": prop("integer", "Tab id from the page state")}, "tab_id")),
	},
	{
		kind:        entity.ActionWait,
		description: "Waits for the page to settle",
		parameters:  static(object(map[string]interface{}{"seconds": prop("integer", "Seconds to wait, at most 10")}, "seconds")),
	},
	{
		kind:        entity.ActionExtract,
		description: "Returns the readable text of the current page, focused on a goal",
		parameters:  static(object(map[string]interface{}{"goal": prop("string", "What to look for in the page text")}, "goal")),
	},
	{
		kind:        entity.ActionSubmitRows,
		description: "Persists extracted records. Every row must match the output schema",
		parameters:  submitRowsParameters,
	},
	{
		kind:        entity.ActionDone,
		description: "Finishes the task and reports the result",
		parameters:  doneParameters,
	},
}

func submitRowsParameters(_ entity.AgentKind, schema entity.Schema) map[string]interface{} {
	fields := make(map[string]interface{}, len(schema))
	for _, name := range schema.Fields() {
		fields[name] = map[string]interface{}{"type": []string{string(schema[name]), "null"}}
	}
	return object(map[string]interface{}{
		"rows": map[string]interface{}{
			"type":        "array",
			"description": "Records found on the current page",
			"items":       object(fields, schema.Fields()...),
		},
	}, "rows")
}

func doneParameters(agent entity.AgentKind, _ entity.Schema) map[string]interface{} {
	props := map[string]interface{}{
		"status": map[string]interface{}{
			"type": "string",
			"enum": []string{string(entity.ResultSuccess), string(entity.ResultFailed)},
		},
		"message": prop("string", "Short summary of what was achieved or why it failed"),
	}
	if agent == entity.AgentNavigate {
		urls := map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}}
		props["relevant"] = urls
		props["irrelevant"] = urls
		return object(props, "status", "message", "relevant")
	}
	return object(props, "status", "message")
}

// Definitions returns the tool definitions for the allowed actions plus done, in catalog order.
func Definitions(agent entity.AgentKind, allowed []entity.ActionKind, schema entity.Schema) []entity.ToolDefinition {
	set := make(map[entity.ActionKind]bool, len(allowed)+1)
	for _, k := range allowed {
		set[k] = true
	}
	set[entity.ActionDone] = true

	var defs []entity.ToolDefinition
	for _, t := range catalog {
		if !set[t.kind] {
			continue
		}
		defs = append(defs, entity.ToolDefinition{
			Name:        string(t.kind),
			Description: t.description,
			Parameters:  t.parameters(agent, schema),
		})
	}
	return defs
}

func lookup(name string) (actionTool, bool) {
	for _, t := range catalog {
		if string(t.kind) == name {
			return t, true
		}
	}
	return actionTool{}, false
}

// Decode turns a tool call into an action. The done payload is kept raw for the terminal parser.
func Decode(call entity.ToolCall) (entity.Action, error) {
	t, ok := lookup(call.Name)
	if !ok {
		return entity.Action{}, fmt.Errorf("unknown tool '%s'", call.Name)
	}

	args := call.Arguments
	if args == "" {
		args = "{}"
	}

	var present map[string]json.RawMessage
	if err := json.Unmarshal([]byte(args), &present); err != nil {
		return entity.Action{}, fmt.Errorf("tool '%s': invalid arguments: %w", call.Name, err)
	}

	if t.kind == entity.ActionDone {
		return entity.Action{Kind: entity.ActionDone, Payload: json.RawMessage(args)}, nil
	}

	params := t.parameters("", nil)
	if required, ok := params["required"].([]string); ok {
		for _, name := range required {
			if _, ok := present[name]; !ok {
				return entity.Action{}, fmt.Errorf("tool '%s': missing argument '%s'", call.Name, name)
			}
		}
	}

	var action entity.Action
	if err := json.Unmarshal([]byte(args), &action); err != nil {
		return entity.Action{}, fmt.Errorf("tool '%s': invalid arguments: %w", call.Name, err)
	}
	action.Kind = t.kind
	action.Payload = nil
	return action, nil
}
