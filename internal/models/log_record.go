// Package models contains domain types for the Step Functions log viewer.
package models

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Stream identifies the output channel a chunk was read from.
type Stream uint8

const (
	StreamStdout Stream = 1
	StreamStderr Stream = 2
)

func (s Stream) String() string {
	switch s {
	case StreamStdout:
		return "stdout"
	case StreamStderr:
		return "stderr"
	default:
		return fmt.Sprintf("stream(%d)", uint8(s))
	}
}

// Chunk is one unit of bytes delivered by a container log stream.
type Chunk struct {
	Stream Stream
	Data   []byte
}

// LogRecord is a state machine log line accepted by the record parser.
// Records are immutable once built; the store replaces them whole.
type LogRecord struct {
	Date         string          `json:"date"`
	ExecutionArn string          `json:"executionArn"`
	Message      json.RawMessage `json:"message"`
}

// Equal reports whether two records carry the same fields.
func (r LogRecord) Equal(o LogRecord) bool {
	return r.Date == o.Date && r.ExecutionArn == o.ExecutionArn && string(r.Message) == string(o.Message)
}

// MarshalMsgpack encodes the message as a decoded value so msgpack clients
// receive a structure instead of a JSON string.
func (r LogRecord) MarshalMsgpack() ([]byte, error) {
	var message interface{}
	if len(r.Message) > 0 {
		if err := json.Unmarshal(r.Message, &message); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
	}
	return msgpack.Marshal(map[string]interface{}{
		"date":         r.Date,
		"executionArn": r.ExecutionArn,
		"message":      message,
	})
}
