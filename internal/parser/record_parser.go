package parser

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/steplogs/viewer/internal/models"
)

// RecordParser extracts state machine log records from decoded lines.
type RecordParser struct {
	rules  LineRules
	intern *ArnIntern
}

// NewRecordParser creates a parser for the given rules.
// A nil intern pool disables ARN interning.
func NewRecordParser(rules LineRules, intern *ArnIntern) *RecordParser {
	return &RecordParser{rules: rules.withDefaults(), intern: intern}
}

// Rules returns the rules the parser matches lines against.
func (p *RecordParser) Rules() LineRules {
	return p.rules
}

// ParseLine returns the record carried by a line of the form
//
//	<date>: <execution arn>: <json message>
//
// Lines of any other shape are rejected with ok == false. Rejection is not an
// error: most of the stream is unrelated output.
func (p *RecordParser) ParseLine(line string) (rec models.LogRecord, ok bool) {
	parts := strings.Split(line, p.rules.Separator)
	if len(parts) < 2 {
		return rec, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	date, arn := parts[0], parts[1]
	if !strings.HasPrefix(arn, p.rules.ProvenancePrefix) {
		return rec, false
	}

	// Every segment is trimmed, so whitespace after a separator inside the
	// message collapses to the separator itself.
	remainder := strings.Join(parts[2:], p.rules.Separator)
	message, ok := parseMessage(remainder)
	if !ok {
		return rec, false
	}

	if p.intern != nil {
		arn = p.intern.Intern(arn)
	}

	return models.LogRecord{
		Date:         date,
		ExecutionArn: arn,
		Message:      message,
	}, true
}

// parseMessage accepts exactly one JSON value and returns it compacted.
func parseMessage(s string) (json.RawMessage, bool) {
	if s == "" || !json.Valid([]byte(s)) {
		return nil, false
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return nil, false
	}
	return json.RawMessage(buf.Bytes()), true
}

// StripTimestamp removes the RFC 3339 prefix docker adds to each line when
// logs are requested with timestamps. Lines without one are returned as is.
func StripTimestamp(line string) (time.Time, string, bool) {
	sp := strings.IndexByte(line, ' ')
	if sp <= 0 {
		return time.Time{}, line, false
	}
	ts, err := time.Parse(time.RFC3339Nano, line[:sp])
	if err != nil {
		return time.Time{}, line, false
	}
	return ts, line[sp+1:], true
}
