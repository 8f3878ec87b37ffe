// Package report provides a JSON run report updated as a migration runs.
//
// The report is a single report.json in the output directory. It is
// rewritten atomically after every round so consumers can poll it.
package report

import (
	"time"

	"github.com/seal-hub/CraftDroid/pkg/core"
)

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the run status.
type Status string

// Status values.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusConverged Status = "converged"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusConverged || s == StatusFailed || s == StatusCancelled
}

// Report is the content of report.json.
type Report struct {
	Version     string     `json:"version"`
	RunID       string     `json:"runId"`
	ConfigID    string     `json:"configId"`
	UpdateSeq   uint64     `json:"updateSeq"`
	Status      Status     `json:"status"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	LastUpdated time.Time  `json:"lastUpdated"`
	Source      App        `json:"source"`
	Target      App        `json:"target"`
	Device      Device     `json:"device"`
	Summary     Summary    `json:"summary"`
	Rounds      []Round    `json:"rounds"`
	Final       *Final     `json:"final,omitempty"`
	Error       *string    `json:"error,omitempty"`
}

// App identifies one app of the migration.
type App struct {
	Package  string `json:"package"`
	Activity string `json:"activity"`
}

// Device contains device information.
type Device struct {
	ID       string `json:"id,omitempty"`
	Platform string `json:"platform"`
	Server   string `json:"server,omitempty"`
}

// Round records one pass over the source events.
type Round struct {
	Index      int     `json:"index"`
	Fitness    float64 `json:"fitness"`
	Events     int     `json:"events"`
	GUI        int     `json:"gui"`
	Oracle     int     `json:"oracle"`
	Stepping   int     `json:"stepping"`
	Empty      int     `json:"empty"`
	Backtracks int     `json:"backtracks"`
	Explored   bool    `json:"explored,omitempty"`
	Duration   int64   `json:"duration"` // milliseconds
}

// Final is the sequence chosen after convergence.
type Final struct {
	Round   int          `json:"round"`
	Fitness float64      `json:"fitness"`
	Path    string       `json:"path,omitempty"`
	Events  []core.Event `json:"events"`
}

// Summary contains aggregated values.
type Summary struct {
	Rounds      int     `json:"rounds"`
	BestFitness float64 `json:"bestFitness"`
	BestRound   int     `json:"bestRound"`
	Matched     int     `json:"matched"`
	Unmatched   int     `json:"unmatched"`
}
