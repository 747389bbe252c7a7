package store

import (
	"encoding/json"
	"sort"

	"github.com/steplogs/viewer/internal/models"
)

type eventType struct {
	Type string `json:"Type"`
}

// GroupExecutions groups records by execution ARN, most recently started
// first. Records keep their relative order inside each execution.
//
// An execution is SUCCESSFUL if any of its records is an ExecutionSucceeded
// event, otherwise FAILED if any is an ExecutionFailed event, otherwise
// RUNNING.
func GroupExecutions(records []models.LogRecord) []models.Execution {
	index := make(map[string]int)
	execs := make([]models.Execution, 0)
	succeeded := make([]bool, 0)
	failed := make([]bool, 0)

	for _, rec := range records {
		i, ok := index[rec.ExecutionArn]
		if !ok {
			i = len(execs)
			index[rec.ExecutionArn] = i
			execs = append(execs, models.Execution{
				Name:         models.ExecutionName(rec.ExecutionArn),
				ExecutionArn: rec.ExecutionArn,
				StartedAt:    rec.Date,
			})
			succeeded = append(succeeded, false)
			failed = append(failed, false)
		}

		ex := &execs[i]
		ex.EndedAt = rec.Date
		ex.Events++
		ex.Records = append(ex.Records, rec)

		// Non-object messages carry no event type.
		var ev eventType
		if json.Unmarshal(rec.Message, &ev) == nil {
			switch ev.Type {
			case models.EventExecutionSucceeded:
				succeeded[i] = true
			case models.EventExecutionFailed:
				failed[i] = true
			}
		}
	}

	for i := range execs {
		switch {
		case succeeded[i]:
			execs[i].Status = models.ExecutionSuccessful
		case failed[i]:
			execs[i].Status = models.ExecutionFailed
		default:
			execs[i].Status = models.ExecutionRunning
		}
	}

	sort.SliceStable(execs, func(a, b int) bool {
		return execs[a].StartedAt > execs[b].StartedAt
	})
	return execs
}

// FindExecution returns the execution whose name or full ARN is key.
// When several ARNs share a name the most recently started one wins.
func FindExecution(records []models.LogRecord, key string) (models.Execution, bool) {
	for _, ex := range GroupExecutions(records) {
		if ex.Name == key || ex.ExecutionArn == key {
			return ex, true
		}
	}
	return models.Execution{}, false
}

// Executions groups the current records by execution.
func (s *LogStore) Executions() []models.Execution {
	return GroupExecutions(s.Snapshot())
}
