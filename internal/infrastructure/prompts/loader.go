package prompts

import (
	_ "embed"
)

//go:embed navigate.txt
var NavigatePrompt string

//go:embed extract.txt
var ExtractPrompt string

//go:embed planner.txt
var PlannerPrompt string

//go:embed reviser.txt
var ReviserPrompt string
