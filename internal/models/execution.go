package models

import "strings"

// ExecutionStatus is the state of an execution as seen in its log records.
type ExecutionStatus string

const (
	ExecutionRunning    ExecutionStatus = "RUNNING"
	ExecutionSuccessful ExecutionStatus = "SUCCESSFUL"
	ExecutionFailed     ExecutionStatus = "FAILED"
)

// Event types that end an execution.
const (
	EventExecutionSucceeded = "ExecutionSucceeded"
	EventExecutionFailed    = "ExecutionFailed"
)

// Execution summarises the records of one execution ARN.
// StartedAt and EndedAt are the dates of its first and last record.
type Execution struct {
	Name         string          `json:"name"`
	ExecutionArn string          `json:"executionArn"`
	Status       ExecutionStatus `json:"status"`
	StartedAt    string          `json:"startedAt"`
	EndedAt      string          `json:"endedAt"`
	Events       int             `json:"events"`
	Records      []LogRecord     `json:"records,omitempty"`
}

// ExecutionName returns the execution name field of an ARN
// (arn:aws:states:<region>:<account>:execution:<state machine>:<name>).
// ARNs with fewer fields are returned whole.
func ExecutionName(arn string) string {
	parts := strings.Split(arn, ":")
	if len(parts) > 7 && parts[7] != "" {
		return parts[7]
	}
	return arn
}
