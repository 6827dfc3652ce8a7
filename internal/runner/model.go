package runner

import "time"

// CheckStatus is the outcome of one check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusFail CheckStatus = "fail"
	StatusSkip CheckStatus = "skip"
)

// CheckResult is persisted as <state>/checks/<id>.json.
type CheckResult struct {
	Check    string      `json:"check"`
	Status   CheckStatus `json:"status"`
	ExitCode int         `json:"exit_code"`
	Note     string      `json:"note,omitempty"`
}

// LastRun is persisted as <state>/last-run.json.
type LastRun struct {
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	Checks     []string  `json:"checks"`
	Failed     []string  `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
