package userinteraction

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"scout-agent/internal/application/port/output"
	"scout-agent/internal/domain/entity"
)

var _ output.ProgressPort = (*ConsoleProgress)(nil)

// ConsoleProgress prints run progress. Lines carry a short run prefix because
// several runs may print at once.
type ConsoleProgress struct {
	out     io.Writer
	verbose bool
	mu      sync.Mutex
}

func NewConsoleProgress(out io.Writer, verbose bool) *ConsoleProgress {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleProgress{out: out, verbose: verbose}
}

func (u *ConsoleProgress) ShowPlan(ctx context.Context, runID string, plan entity.Plan) {
	u.mu.Lock()
	defer u.mu.Unlock()

	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintf(u.out, "\n%s ━━━ Plan v%d ━━━\n", prefix(runID), plan.Version)
	for _, st := range plan.Steps {
		line := fmt.Sprintf("   %s %d. [%s] %s", statusIcon(st), st.ID, st.Kind, truncate(st.Goal, 90))
		if st.Target != "" {
			line += " @ " + st.Target
		}
		if st.IsReplacement() {
			line += fmt.Sprintf(" (replaces %d)", st.OriginID)
		}
		if st.Abandoned {
			color.New(color.Faint).Fprintln(u.out, line+" (abandoned)")
			continue
		}
		fmt.Fprintln(u.out, line)
	}
}

func (u *ConsoleProgress) ShowDelegation(ctx context.Context, runID string, step entity.PlanStep) {
	u.mu.Lock()
	defer u.mu.Unlock()

	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Fprintf(u.out, "\n%s 🤖 %s agent ← step %d\n", prefix(runID), step.Kind, step.ID)
	color.New(color.Faint).Fprintf(u.out, "   %s\n", truncate(step.Goal, 120))
}

func (u *ConsoleProgress) ShowResult(ctx context.Context, runID string, step entity.PlanStep, result entity.DelegateResult) {
	u.mu.Lock()
	defer u.mu.Unlock()

	summary := truncate(result.Message, 150)
	switch {
	case result.Navigate != nil:
		summary = fmt.Sprintf("%d relevant, %d irrelevant | %s", len(result.Navigate.Relevant), len(result.Navigate.Irrelevant), summary)
	case result.Extract != nil:
		summary = fmt.Sprintf("%d rows stored | %s", result.Extract.PersistedCount, summary)
	}

	if !result.Succeeded() {
		color.New(color.FgRed).Fprintf(u.out, "%s ❌ step %d failed (%s): ", prefix(runID), step.ID, result.Failure)
		color.New(color.Faint).Fprintln(u.out, summary)
		return
	}
	color.New(color.FgGreen).Fprintf(u.out, "%s ✓ step %d: %s\n", prefix(runID), step.ID, summary)
}

func (u *ConsoleProgress) ShowTurn(ctx context.Context, runID string, actor entity.Actor, turn, maxTurns int) {
	if !u.verbose {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	color.New(color.FgCyan).Fprintf(u.out, "%s ── %s turn %d/%d\n", prefix(runID), actor, turn, maxTurns)
}

func (u *ConsoleProgress) ShowAction(ctx context.Context, runID string, action entity.Action, note string, isError bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	fmt.Fprintf(u.out, "%s %s %s\n", prefix(runID), actionIcon(action.Kind), truncate(describeAction(action), 100))
	if isError {
		color.New(color.FgRed).Fprint(u.out, "   ❌ ")
		color.New(color.Faint).Fprintln(u.out, truncate(strings.TrimPrefix(note, "Error: "), 300))
		return
	}
	if u.verbose && note != "" {
		color.New(color.Faint).Fprintf(u.out, "   %s\n", truncate(note, 200))
	}
}

func (u *ConsoleProgress) ShowThinking(ctx context.Context, runID string, content string) {
	if content == "" || !u.verbose {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	color.New(color.FgBlue).Fprintf(u.out, "%s 💭 ", prefix(runID))
	color.New(color.Faint).Fprintln(u.out, truncate(strings.ReplaceAll(content, "\n", " | "), 500))
}

func (u *ConsoleProgress) ShowReport(ctx context.Context, report *entity.RunReport) {
	u.mu.Lock()
	defer u.mu.Unlock()

	c := color.New(color.FgGreen, color.Bold)
	if report.Status == entity.RunFailed {
		c = color.New(color.FgRed, color.Bold)
	}
	c.Fprintf(u.out, "\n%s ━━━ %s ━━━\n", prefix(report.RunID), report.Status)
	fmt.Fprintf(u.out, "   goal:        %s\n", report.Goal)
	fmt.Fprintf(u.out, "   records:     %d\n", report.PersistedCount)
	fmt.Fprintf(u.out, "   delegations: %d\n", report.Invocations)
	fmt.Fprintf(u.out, "   pages:       %d\n", len(report.Visits))
	fmt.Fprintf(u.out, "   why:         %s\n", report.Explanation)
}

// NopProgress discards all progress output.
type NopProgress struct{}

var _ output.ProgressPort = NopProgress{}

func (NopProgress) ShowPlan(context.Context, string, entity.Plan)                              {}
func (NopProgress) ShowDelegation(context.Context, string, entity.PlanStep)                    {}
func (NopProgress) ShowResult(context.Context, string, entity.PlanStep, entity.DelegateResult) {}
func (NopProgress) ShowTurn(context.Context, string, entity.Actor, int, int)                   {}
func (NopProgress) ShowAction(context.Context, string, entity.Action, string, bool)            {}
func (NopProgress) ShowThinking(context.Context, string, string)                               {}
func (NopProgress) ShowReport(context.Context, *entity.RunReport)                              {}

func prefix(runID string) string {
	if len(runID) > 8 {
		runID = runID[:8]
	}
	return "[" + runID + "]"
}

func statusIcon(st entity.PlanStep) string {
	switch st.Status {
	case entity.StepDone:
		return "✓"
	case entity.StepFailed:
		return "✗"
	case entity.StepInProgress:
		return "▶"
	default:
		return "·"
	}
}

func actionIcon(kind entity.ActionKind) string {
	icons := map[entity.ActionKind]string{
		entity.ActionNavigate:   "🌐",
		entity.ActionSearch:     "🔎",
		entity.ActionGoBack:     "↩️",
		entity.ActionClick:      "🖱️",
		entity.ActionInputText:  "✏️",
		entity.ActionPressEnter: "⏎",
		entity.ActionScroll:     "📜",
		entity.ActionOpenTab:    "🗂️",
		entity.ActionSwitchTab:  "🗂️",
		entity.ActionWait:       "⏸️",
		entity.ActionExtract:    "📄",
		entity.ActionSubmitRows: "💾",
	}
	if icon, ok := icons[kind]; ok {
		return icon
	}
	return "🔧"
}

func describeAction(a entity.Action) string {
	switch a.Kind {
	case entity.ActionNavigate, entity.ActionOpenTab:
		return fmt.Sprintf("%s %s", a.Kind, a.URL)
	case entity.ActionSearch:
		return fmt.Sprintf("search %q", a.Query)
	case entity.ActionClick:
		return fmt.Sprintf("click [%d]", a.Index)
	case entity.ActionInputText:
		return fmt.Sprintf("input [%d] → %s", a.Index, truncate(a.Text, 30))
	case entity.ActionScroll:
		return "scroll " + a.Direction
	case entity.ActionSwitchTab:
		return fmt.Sprintf("switch to tab %d", a.TabID)
	case entity.ActionWait:
		return fmt.Sprintf("wait %ds", a.Seconds)
	case entity.ActionExtract:
		return "extract content: " + a.Goal
	case entity.ActionSubmitRows:
		return fmt.Sprintf("submit %d rows", len(a.Rows))
	default:
		return string(a.Kind)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
