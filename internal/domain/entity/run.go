package entity

import "time"

type RunStatus string

const (
	RunPlanning  RunStatus = "PLANNING"
	RunExecuting RunStatus = "EXECUTING"
	RunRevising  RunStatus = "REVISING"
	RunDone      RunStatus = "DONE"
	RunFailed    RunStatus = "FAILED"
)

func (s RunStatus) IsTerminal() bool {
	return s == RunDone || s == RunFailed
}

type Relevance string

const (
	Relevant   Relevance = "RELEVANT"
	Irrelevant Relevance = "IRRELEVANT"
)

type VisitRecord struct {
	ResourceID    string    `json:"resource_id"`
	Relevance     Relevance `json:"relevance"`
	FirstSeenStep int       `json:"first_seen_step"`
}

// RunInfo is the row a run archive keeps for a run that has started.
type RunInfo struct {
	RunID     string    `json:"run_id"`
	Goal      string    `json:"goal"`
	Status    RunStatus `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// RunReport is the terminal summary of one run.
type RunReport struct {
	RunID          string        `json:"run_id"`
	Goal           string        `json:"goal"`
	Status         RunStatus     `json:"status"`
	Explanation    string        `json:"explanation"`
	PersistedCount int           `json:"persisted_count"`
	Invocations    int           `json:"invocations"`
	Plan           Plan          `json:"plan"`
	Visits         []VisitRecord `json:"visits"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
}
