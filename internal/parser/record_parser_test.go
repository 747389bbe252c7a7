package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordParser_ParseLine(t *testing.T) {
	p := NewRecordParser(DefaultLineRules(), nil)

	tests := []struct {
		name        string
		line        string
		wantOK      bool
		wantDate    string
		wantArn     string
		wantMessage string
	}{
		{
			name:        "state machine line",
			line:        `2024-01-01T00:00:00Z: arn:aws:states:us-east-1:123:execution:foo:bar: {"status":"RUNNING"}`,
			wantOK:      true,
			wantDate:    "2024-01-01T00:00:00Z",
			wantArn:     "arn:aws:states:us-east-1:123:execution:foo:bar",
			wantMessage: `{"status":"RUNNING"}`,
		},
		{
			name:        "surrounding whitespace is trimmed",
			line:        `  2024-01-01 10:00:00.123 :   arn:aws:states:eu-west-1:1:execution:sm:run  :  { "a" : 1 }  `,
			wantOK:      true,
			wantDate:    "2024-01-01 10:00:00.123",
			wantArn:     "arn:aws:states:eu-west-1:1:execution:sm:run",
			wantMessage: `{"a":1}`,
		},
		{
			name:        "separator inside the message is kept",
			line:        `d1: arn:aws:states:x: {"detail": "a: b: c"}`,
			wantOK:      true,
			wantDate:    "d1",
			wantArn:     "arn:aws:states:x",
			wantMessage: `{"detail":"a: b: c"}`,
		},
		{
			name:        "whitespace after an inner separator collapses",
			line:        `d1: arn:aws:states:x: {"detail":   "a:   b"}`,
			wantOK:      true,
			wantDate:    "d1",
			wantArn:     "arn:aws:states:x",
			wantMessage: `{"detail":"a: b"}`,
		},
		{
			name:        "scalar message",
			line:        `d2: arn:aws:states:x: "ExecutionStarted"`,
			wantOK:      true,
			wantDate:    "d2",
			wantArn:     "arn:aws:states:x",
			wantMessage: `"ExecutionStarted"`,
		},
		{name: "no separator", line: "hello world"},
		{name: "not an arn", line: `2024-01-01T00:00:00Z: not-an-arn: {}`},
		{name: "other arn service", line: `d: arn:aws:lambda:us-east-1:1:function:f: {}`},
		{name: "missing message", line: `d: arn:aws:states:us-east-1:1:execution:a:b`},
		{name: "empty message", line: `d: arn:aws:states:us-east-1:1:execution:a:b: `},
		{name: "malformed json", line: `d: arn:aws:states:x: {"status":`},
		{name: "trailing garbage", line: `d: arn:aws:states:x: {} extra`},
		{name: "empty line", line: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := p.ParseLine(tt.line)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantDate, rec.Date)
			assert.Equal(t, tt.wantArn, rec.ExecutionArn)
			assert.Equal(t, tt.wantMessage, string(rec.Message))
		})
	}
}

func TestRecordParser_AcceptedLinesHaveArnPrefix(t *testing.T) {
	p := NewRecordParser(DefaultLineRules(), NewArnIntern(0))
	lines := []string{
		`a: arn:aws:states:1: {}`,
		`b: xarn:aws:states:1: {}`,
		`c: ARN:AWS:STATES:1: {}`,
		`d: arn:aws:states:2: [1,2,3]`,
		`e: arn:aws:state: {}`,
	}

	var accepted []string
	for _, line := range lines {
		rec, ok := p.ParseLine(line)
		if !ok {
			continue
		}
		assert.True(t, strings.HasPrefix(rec.ExecutionArn, DefaultProvenancePrefix))
		accepted = append(accepted, rec.Date)
	}
	assert.Equal(t, []string{"a", "d"}, accepted)
}

func TestRecordParser_CustomRules(t *testing.T) {
	p := NewRecordParser(LineRules{Separator: " | ", ProvenancePrefix: "exec-"}, nil)

	rec, ok := p.ParseLine(`t1 | exec-42 | {"ok":true}`)
	require.True(t, ok)
	assert.Equal(t, "t1", rec.Date)
	assert.Equal(t, "exec-42", rec.ExecutionArn)

	_, ok = p.ParseLine(`t1: arn:aws:states:x: {}`)
	assert.False(t, ok)
}

func TestRecordParser_InternsArns(t *testing.T) {
	intern := NewArnIntern(0)
	p := NewRecordParser(DefaultLineRules(), intern)

	for _, date := range []string{"d1", "d2", "d3"} {
		_, ok := p.ParseLine(date + `: arn:aws:states:us-east-1:1:execution:sm:run: {}`)
		require.True(t, ok)
	}
	assert.Equal(t, 1, intern.Len())
}

func TestStripTimestamp(t *testing.T) {
	ts, rest, ok := StripTimestamp("2024-03-01T12:00:00.123456789Z 2024-03-01: arn:aws:states:x: {}")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC), ts.UTC())
	assert.Equal(t, "2024-03-01: arn:aws:states:x: {}", rest)

	_, rest, ok = StripTimestamp("hello world")
	assert.False(t, ok)
	assert.Equal(t, "hello world", rest)

	_, rest, ok = StripTimestamp("nospace")
	assert.False(t, ok)
	assert.Equal(t, "nospace", rest)
}

func BenchmarkParseLine(b *testing.B) {
	p := NewRecordParser(DefaultLineRules(), NewArnIntern(0))
	line := `2024-01-01T00:00:00Z: arn:aws:states:us-east-1:123:execution:foo:bar: {"status":"RUNNING","input":{"a":1}}`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.ParseLine(line)
	}
}
