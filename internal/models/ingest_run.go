package models

import "time"

// RunStatus represents the state of one ingestion pass.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusError    RunStatus = "error"
	RunStatusSkipped  RunStatus = "skipped"
)

// IngestRun summarizes one tick of the ingestion task.
type IngestRun struct {
	ID           string    `json:"id"`
	ContainerID  string    `json:"containerId"`
	Status       RunStatus `json:"status"`
	StartedAt    time.Time `json:"startedAt"`
	EndedAt      time.Time `json:"endedAt,omitempty"`
	Since        time.Time `json:"since,omitempty"` // Cursor the stream was opened with
	Chunks       int       `json:"chunks"`
	Lines        int       `json:"lines"`
	Accepted     int       `json:"accepted"`
	Inserted     int       `json:"inserted"` // Accepted records whose key was new
	Rejected     int       `json:"rejected"`
	DecodeErrors int       `json:"decodeErrors"`
	StderrChunks int       `json:"stderrChunks"`
	Error        string    `json:"error,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r IngestRun) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}
