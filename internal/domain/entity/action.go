package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

type ActionKind string

const (
	ActionNavigate   ActionKind = "navigate"
	ActionSearch     ActionKind = "search"
	ActionGoBack     ActionKind = "go_back"
	ActionClick      ActionKind = "click"
	ActionInputText  ActionKind = "input_text"
	ActionPressEnter ActionKind = "press_enter"
	ActionScroll     ActionKind = "scroll"
	ActionOpenTab    ActionKind = "open_tab"
	ActionSwitchTab  ActionKind = "switch_tab"
	ActionWait       ActionKind = "wait"
	ActionExtract    ActionKind = "extract_content"
	ActionSubmitRows ActionKind = "submit_rows"
	ActionDone       ActionKind = "done"
)

func (k ActionKind) String() string {
	return string(k)
}

// Row is one extracted record, keyed by schema field name.
type Row map[string]any

// Action is one entry of the executor vocabulary. Only the fields relevant to Kind are set.
type Action struct {
	Kind      ActionKind      `json:"kind,omitempty"`
	URL       string          `json:"url,omitempty"`
	Query     string          `json:"query,omitempty"`
	Index     int             `json:"index,omitempty"`
	Text      string          `json:"text,omitempty"`
	Direction string          `json:"direction,omitempty"`
	Amount    int             `json:"amount,omitempty"`
	TabID     int             `json:"tab_id,omitempty"`
	Seconds   int             `json:"seconds,omitempty"`
	Goal      string          `json:"goal,omitempty"`
	Rows      []Row           `json:"rows,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Signature renders the action as kind plus canonical JSON arguments.
func (a Action) Signature() string {
	args := a
	args.Kind = ""
	data, err := json.Marshal(args)
	if err != nil {
		return string(a.Kind)
	}
	if string(data) == "{}" {
		return string(a.Kind)
	}
	return string(a.Kind) + " " + string(data)
}

type Tab struct {
	ID     int    `json:"id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

type Element struct {
	Index int    `json:"index"`
	Kind  string `json:"kind"`
	Label string `json:"label"`
}

// Snapshot is the external state an executor reports after each action.
type Snapshot struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Tabs       []Tab     `json:"tabs"`
	Elements   []Element `json:"elements"`
	Content    string    `json:"content,omitempty"`
	Note       string    `json:"note,omitempty"`
	Screenshot []byte    `json:"-"`
}

// Digest hashes the observable page state. Screenshot and Note are excluded.
func (s *Snapshot) Digest() string {
	if s == nil {
		return ""
	}
	h := sha256.New()
	fmt.Fprintf(h, "url=%s\n", s.URL)
	for _, t := range s.Tabs {
		fmt.Fprintf(h, "tab=%d|%s|%t\n", t.ID, t.URL, t.Active)
	}
	for _, e := range s.Elements {
		fmt.Fprintf(h, "el=%d|%s|%s\n", e.Index, e.Kind, e.Label)
	}
	fmt.Fprintf(h, "content=%s\n", s.Content)
	return hex.EncodeToString(h.Sum(nil))
}

// WithNote returns a shallow copy of s carrying a different note.
func (s *Snapshot) WithNote(note string) *Snapshot {
	if s == nil {
		return &Snapshot{Note: note}
	}
	cp := *s
	cp.Note = note
	return &cp
}

func (s *Snapshot) HasElement(index int) bool {
	if s == nil {
		return false
	}
	for _, e := range s.Elements {
		if e.Index == index {
			return true
		}
	}
	return false
}

// Describe renders the snapshot as the text block the reasoner sees.
func (s *Snapshot) Describe() string {
	if s == nil {
		return "- No page state available -"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current url: %s\n", s.URL)
	if s.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", s.Title)
	}
	sb.WriteString("Available tabs:\n")
	for _, t := range s.Tabs {
		marker := " "
		if t.Active {
			marker = "*"
		}
		fmt.Fprintf(&sb, "%s [%d] %s %s\n", marker, t.ID, t.Title, t.URL)
	}
	sb.WriteString("Interactive elements:\n")
	if len(s.Elements) == 0 {
		sb.WriteString("- Empty page -\n")
	}
	for _, e := range s.Elements {
		fmt.Fprintf(&sb, "[%d]<%s> %s\n", e.Index, e.Kind, e.Label)
	}
	if s.Content != "" {
		fmt.Fprintf(&sb, "Extracted content:\n%s\n", s.Content)
	}
	if s.Note != "" {
		fmt.Fprintf(&sb, "Last action result: %s\n", s.Note)
	}
	return sb.String()
}
