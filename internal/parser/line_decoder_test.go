package parser

import (
	"strings"
	"testing"

	"github.com/steplogs/viewer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stdout(s string) models.Chunk {
	return models.Chunk{Stream: models.StreamStdout, Data: []byte(s)}
}

func TestLineDecoder_StripsEscapes(t *testing.T) {
	d := NewLineDecoder()

	lines, err := d.Decode(stdout("\x1b[32m2024-01-01: arn:aws:states:x: {}\x1b[0m\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01: arn:aws:states:x: {}"}, lines)
}

func TestLineDecoder_MultipleLinesPerChunk(t *testing.T) {
	d := NewLineDecoder()

	lines, err := d.Decode(stdout("one\r\ntwo\n\nthree\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, lines)
	assert.Equal(t, 0, d.Pending())
}

func TestLineDecoder_JoinsPartialLines(t *testing.T) {
	d := NewLineDecoder()

	lines, err := d.Decode(stdout("2024-01-01: arn:aws:sta"))
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Equal(t, len("2024-01-01: arn:aws:sta"), d.Pending())

	lines, err = d.Decode(stdout("tes:x: {}\nnext"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01: arn:aws:states:x: {}"}, lines)

	lines, err = d.Flush()
	require.NoError(t, err)
	assert.Equal(t, []string{"next"}, lines)
	assert.Equal(t, 0, d.Pending())
}

func TestLineDecoder_EscapeSplitAcrossChunks(t *testing.T) {
	d := NewLineDecoder()

	_, err := d.Decode(stdout("\x1b[3"))
	require.NoError(t, err)
	lines, err := d.Decode(stdout("1mred\x1b[0m\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"red"}, lines)
}

func TestLineDecoder_IgnoresStderr(t *testing.T) {
	d := NewLineDecoder()

	lines, err := d.Decode(models.Chunk{Stream: models.StreamStderr, Data: []byte("boom\n")})
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Equal(t, 0, d.Pending())
}

func TestLineDecoder_RejectsUnknownStream(t *testing.T) {
	d := NewLineDecoder()

	_, err := d.Decode(models.Chunk{Stream: models.Stream(0), Data: []byte("x\n")})
	assert.ErrorIs(t, err, ErrUnexpectedStream)
}

func TestLineDecoder_InvalidUTF8DropsOnlyBadLines(t *testing.T) {
	const record = "d: arn:aws:states:x: {}"

	tests := []struct {
		name       string
		chunks     []string
		wantLines  [][]string
		wantErrors []bool
	}{
		{
			name:       "terminated bad chunk",
			chunks:     []string{"bad\xff\xfe\n", "good\n"},
			wantLines:  [][]string{{}, {"good"}},
			wantErrors: []bool{true, false},
		},
		{
			name:       "unterminated bad chunk then valid chunk",
			chunks:     []string{"b\xff", "\n" + record + "\n"},
			wantLines:  [][]string{{}, {record}},
			wantErrors: []bool{false, true},
		},
		{
			name:       "valid tail then bad chunk",
			chunks:     []string{"partial", "\nbad\xff\n"},
			wantLines:  [][]string{{}, {"partial"}},
			wantErrors: []bool{false, true},
		},
		{
			name:       "bad line between good lines",
			chunks:     []string{"one\nt\xffwo\nthree\n"},
			wantLines:  [][]string{{"one", "three"}},
			wantErrors: []bool{true},
		},
		{
			name:       "rune split across chunks",
			chunks:     []string{"caf\xc3", "\xa9\n"},
			wantLines:  [][]string{{}, {"café"}},
			wantErrors: []bool{false, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewLineDecoder()
			for i, chunk := range tt.chunks {
				lines, err := d.Decode(stdout(chunk))
				if tt.wantErrors[i] {
					assert.ErrorIs(t, err, ErrInvalidUTF8)
				} else {
					assert.NoError(t, err)
				}
				if len(tt.wantLines[i]) == 0 {
					assert.Empty(t, lines)
				} else {
					assert.Equal(t, tt.wantLines[i], lines)
				}
			}
			assert.Equal(t, 0, d.Pending())
		})
	}
}

func TestLineDecoder_FlushDropsBadTail(t *testing.T) {
	d := NewLineDecoder()

	_, err := d.Decode(stdout("ok\ntail\xff"))
	require.NoError(t, err)

	lines, err := d.Flush()
	assert.ErrorIs(t, err, ErrInvalidUTF8)
	assert.Empty(t, lines)

	lines, err = d.Decode(stdout("next\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"next"}, lines)
}

func TestLineDecoder_FlushesOversizedTail(t *testing.T) {
	d := &LineDecoder{MaxPending: 8}

	lines, err := d.Decode(stdout(strings.Repeat("x", 10)))
	require.NoError(t, err)
	assert.Equal(t, []string{strings.Repeat("x", 10)}, lines)
	assert.Equal(t, 0, d.Pending())
}
