package runs

import "time"

// Status reflects the lifecycle of one extraction run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	switch s {
	case StatusDone, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Run is one recorded extraction run.
type Run struct {
	ID              string
	SourcePath      string
	OutputDir       string
	Status          Status
	Stage           string
	ProgressPercent float64
	ProgressMessage string
	FallbackUsed    bool
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
