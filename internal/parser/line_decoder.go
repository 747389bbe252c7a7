package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/steplogs/viewer/internal/models"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

var (
	// ErrInvalidUTF8 is returned when a completed line is not valid UTF-8.
	// The offending lines are dropped; the others are still returned.
	ErrInvalidUTF8 = errors.New("line is not valid UTF-8")
	// ErrUnexpectedStream is returned for chunks tagged with a stream other
	// than stdout or stderr. The docker stream never produces these.
	ErrUnexpectedStream = errors.New("unexpected stream")
)

// DefaultMaxPending bounds the unterminated tail kept between chunks.
// Docker splits lines longer than 16KB into several frames.
const DefaultMaxPending = 1 << 20

// LineDecoder turns stdout chunks into clean text lines.
// Escape sequences are stripped and every line is valid UTF-8.
// An unterminated tail is held until the next chunk or Flush.
// A LineDecoder is not safe for concurrent use; use one per stream.
type LineDecoder struct {
	pending    []byte
	MaxPending int
}

// NewLineDecoder creates a decoder with the default pending limit.
func NewLineDecoder() *LineDecoder {
	return &LineDecoder{MaxPending: DefaultMaxPending}
}

// Decode returns the complete lines carried by the chunk.
// Stderr chunks yield nothing. Completed lines that are not valid UTF-8 are
// dropped and reported with ErrInvalidUTF8 alongside the valid ones. A bad
// line never takes a neighbouring line with it.
func (d *LineDecoder) Decode(c models.Chunk) ([]string, error) {
	switch c.Stream {
	case models.StreamStdout:
	case models.StreamStderr:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStream, c.Stream)
	}

	d.pending = append(d.pending, c.Data...)

	cut := bytes.LastIndexByte(d.pending, '\n')
	if cut < 0 {
		if d.MaxPending > 0 && len(d.pending) > d.MaxPending {
			return d.Flush()
		}
		return nil, nil
	}

	complete := d.pending[:cut+1]
	tail := d.pending[cut+1:]
	lines, err := decodeText(complete)

	rest := make([]byte, len(tail))
	copy(rest, tail)
	d.pending = rest

	return lines, err
}

// Flush returns whatever unterminated text is buffered and resets the decoder.
func (d *LineDecoder) Flush() ([]string, error) {
	if len(d.pending) == 0 {
		return nil, nil
	}
	data := d.pending
	d.pending = nil
	return decodeText(data)
}

// Pending reports how many bytes are buffered without a terminating newline.
func (d *LineDecoder) Pending() int {
	return len(d.pending)
}

// decodeText splits raw bytes into non-empty lines, validating and stripping
// each one. Validation is per line: a multi-byte rune cut by a frame boundary
// is rejoined in pending before it gets here.
func decodeText(data []byte) ([]string, error) {
	raw := bytes.Split(data, []byte{'\n'})
	lines := make([]string, 0, len(raw))
	invalid := 0
	for _, b := range raw {
		b = bytes.TrimSuffix(b, []byte{'\r'})
		if len(bytes.TrimSpace(b)) == 0 {
			continue
		}
		if _, _, err := transform.Bytes(encoding.UTF8Validator, b); err != nil {
			invalid++
			continue
		}
		line := ansi.Strip(string(b))
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if invalid > 0 {
		return lines, fmt.Errorf("%w: %d line(s) dropped", ErrInvalidUTF8, invalid)
	}
	return lines, nil
}
