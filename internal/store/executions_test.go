package store

import (
	"testing"

	"github.com/steplogs/viewer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupExecutions_Status(t *testing.T) {
	tests := []struct {
		name     string
		messages []string
		want     models.ExecutionStatus
	}{
		{name: "succeeded", messages: []string{`{"Type":"ExecutionStarted"}`, `{"Type":"ExecutionSucceeded"}`}, want: models.ExecutionSuccessful},
		{name: "failed", messages: []string{`{"Type":"ExecutionStarted"}`, `{"Type":"ExecutionFailed"}`}, want: models.ExecutionFailed},
		{name: "running", messages: []string{`{"Type":"ExecutionStarted"}`, `{"Type":"PassStateExited"}`}, want: models.ExecutionRunning},
		{name: "success wins over failure", messages: []string{`{"Type":"ExecutionFailed"}`, `{"Type":"ExecutionSucceeded"}`}, want: models.ExecutionSuccessful},
		{name: "non-object messages", messages: []string{`"ExecutionSucceeded"`, `[1,2]`}, want: models.ExecutionRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var records []models.LogRecord
			for i, m := range tt.messages {
				records = append(records, record(string(rune('a'+i)), "arn:aws:states:r:1:execution:sm:x", m))
			}
			execs := GroupExecutions(records)
			require.Len(t, execs, 1)
			assert.Equal(t, tt.want, execs[0].Status)
		})
	}
}

func TestGroupExecutions_OrderAndBounds(t *testing.T) {
	const (
		older = "arn:aws:states:r:1:execution:sm:older"
		newer = "arn:aws:states:r:1:execution:sm:newer"
	)
	execs := GroupExecutions([]models.LogRecord{
		record("d1", older, `{}`),
		record("d2", newer, `{}`),
		record("d3", older, `{}`),
		record("d4", newer, `{}`),
		record("d5", older, `{}`),
	})

	require.Len(t, execs, 2)
	assert.Equal(t, "newer", execs[0].Name)
	assert.Equal(t, "d2", execs[0].StartedAt)
	assert.Equal(t, "d4", execs[0].EndedAt)
	assert.Equal(t, "older", execs[1].Name)
	assert.Equal(t, "d1", execs[1].StartedAt)
	assert.Equal(t, "d5", execs[1].EndedAt)
	assert.Equal(t, 3, execs[1].Events)
	assert.Equal(t, []string{"d1", "d3", "d5"}, []string{execs[1].Records[0].Date, execs[1].Records[1].Date, execs[1].Records[2].Date})
}

func TestGroupExecutions_Empty(t *testing.T) {
	execs := GroupExecutions(nil)
	assert.NotNil(t, execs)
	assert.Empty(t, execs)
}

func TestExecutionName(t *testing.T) {
	assert.Equal(t, "run-1", models.ExecutionName("arn:aws:states:us-east-1:123:execution:sm:run-1"))
	assert.Equal(t, "arn:aws:states:x", models.ExecutionName("arn:aws:states:x"))
}

func TestFindExecution(t *testing.T) {
	st := NewLogStore()
	st.Insert(record("d1", "arn:aws:states:r:1:execution:sm:x", `{"Type":"ExecutionSucceeded"}`))

	ex, ok := FindExecution(st.Snapshot(), "x")
	require.True(t, ok)
	assert.Equal(t, models.ExecutionSuccessful, ex.Status)

	_, ok = FindExecution(st.Snapshot(), "arn:aws:states:r:1:execution:sm:x")
	assert.True(t, ok)

	_, ok = FindExecution(st.Snapshot(), "y")
	assert.False(t, ok)

	assert.Len(t, st.Executions(), 1)
}
