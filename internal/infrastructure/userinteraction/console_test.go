package userinteraction

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"scout-agent/internal/domain/entity"
)

func newTestConsole(verbose bool) (*ConsoleProgress, *bytes.Buffer) {
	color.NoColor = true
	var buf bytes.Buffer
	return NewConsoleProgress(&buf, verbose), &buf
}

func TestShowPlan(t *testing.T) {
	c, buf := newTestConsole(false)

	c.ShowPlan(context.Background(), "0123456789abcdef", entity.Plan{Version: 2, Steps: []entity.PlanStep{
		{ID: 1, OriginID: 1, Kind: entity.AgentNavigate, Goal: "find catalog", Status: entity.StepFailed, Abandoned: true},
		{ID: 2, OriginID: 2, Kind: entity.AgentExtract, Goal: "extract", Target: "https://u.edu/a", Status: entity.StepDone},
		{ID: 3, OriginID: 1, Kind: entity.AgentNavigate, Goal: "find catalog again", Status: entity.StepPending},
	}})

	out := buf.String()
	assert.Contains(t, out, "[01234567] ━━━ Plan v2 ━━━")
	assert.Contains(t, out, "✗ 1. [NAVIGATE] find catalog (abandoned)")
	assert.Contains(t, out, "✓ 2. [EXTRACT] extract @ https://u.edu/a")
	assert.Contains(t, out, "· 3. [NAVIGATE] find catalog again (replaces 1)")
}

func TestShowResult(t *testing.T) {
	c, buf := newTestConsole(false)
	step := entity.PlanStep{ID: 4, Kind: entity.AgentExtract}

	c.ShowResult(context.Background(), "run", step, entity.NewExtractResult(entity.ResultSuccess, "stored", 7))
	failed := entity.FailedResult(entity.AgentNavigate, entity.FailureStalled, "looping")
	c.ShowResult(context.Background(), "run", step, failed)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "[run] ✓ step 4: 7 rows stored | stored", lines[0])
	assert.Equal(t, "[run] ❌ step 4 failed (stalled): 0 relevant, 0 irrelevant | looping", lines[1])
}

func TestShowAction(t *testing.T) {
	c, buf := newTestConsole(false)

	c.ShowAction(context.Background(), "run", entity.Action{Kind: entity.ActionClick, Index: 3}, "Clicked element 3", false)
	c.ShowAction(context.Background(), "run", entity.Action{Kind: entity.ActionClick, Index: 9}, "Error: element with index 9 does not exist", true)

	out := buf.String()
	assert.Contains(t, out, "click [3]")
	assert.NotContains(t, out, "Clicked element 3", "notes are verbose only")
	assert.Contains(t, out, "❌ element with index 9 does not exist")
}

func TestVerboseOnlyOutput(t *testing.T) {
	quiet, qbuf := newTestConsole(false)
	quiet.ShowTurn(context.Background(), "run", entity.ActorNavigateAgent, 1, 30)
	quiet.ShowThinking(context.Background(), "run", "thinking")
	assert.Empty(t, qbuf.String())

	loud, lbuf := newTestConsole(true)
	loud.ShowTurn(context.Background(), "run", entity.ActorNavigateAgent, 1, 30)
	loud.ShowThinking(context.Background(), "run", "line one\nline two")
	assert.Contains(t, lbuf.String(), "NAVIGATE_AGENT turn 1/30")
	assert.Contains(t, lbuf.String(), "line one | line two")
}

func TestShowReport(t *testing.T) {
	c, buf := newTestConsole(false)
	c.ShowReport(context.Background(), &entity.RunReport{
		RunID: "run", Goal: "courses", Status: entity.RunDone, PersistedCount: 12, Invocations: 3, Explanation: "12 records persisted",
	})

	out := buf.String()
	assert.Contains(t, out, "━━━ DONE ━━━")
	assert.Contains(t, out, "records:     12")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}
