package docker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/steplogs/viewer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multiplexed(t *testing.T, frames ...models.Chunk) io.ReadCloser {
	t.Helper()
	var buf bytes.Buffer
	outW := stdcopy.NewStdWriter(&buf, stdcopy.Stdout)
	errW := stdcopy.NewStdWriter(&buf, stdcopy.Stderr)
	for _, f := range frames {
		w := outW
		if f.Stream == models.StreamStderr {
			w = errW
		}
		_, err := w.Write(f.Data)
		require.NoError(t, err)
	}
	return io.NopCloser(&buf)
}

func drain(t *testing.T, r *chunkReader) ([]models.Chunk, error) {
	t.Helper()
	var chunks []models.Chunk
	for {
		c, err := r.Next()
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, c)
	}
}

func TestChunkReader_Demultiplexes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	body := multiplexed(t,
		models.Chunk{Stream: models.StreamStdout, Data: []byte("line one\n")},
		models.Chunk{Stream: models.StreamStderr, Data: []byte("warning\n")},
		models.Chunk{Stream: models.StreamStdout, Data: []byte("line two\n")},
	)

	r := newChunkReader(ctx, cancel, body, false)
	defer r.Close()

	chunks, err := drain(t, r)
	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, chunks, 3)
	assert.Equal(t, models.StreamStdout, chunks[0].Stream)
	assert.Equal(t, "line one\n", string(chunks[0].Data))
	assert.Equal(t, models.StreamStderr, chunks[1].Stream)
	assert.Equal(t, "line two\n", string(chunks[2].Data))
}

func TestChunkReader_TTY(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	body := io.NopCloser(bytes.NewBufferString("raw tty output\n"))

	r := newChunkReader(ctx, cancel, body, true)
	defer r.Close()

	chunks, err := drain(t, r)
	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, chunks, 1)
	assert.Equal(t, models.StreamStdout, chunks[0].Stream)
	assert.Equal(t, "raw tty output\n", string(chunks[0].Data))
}

type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, errors.New("connection reset") }
func (failingBody) Close() error             { return nil }

func TestChunkReader_ReadError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := newChunkReader(ctx, cancel, failingBody{}, true)
	defer r.Close()

	_, err := drain(t, r)
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestChunkReader_CloseUnblocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	defer pw.Close()

	r := newChunkReader(ctx, cancel, pr, true)

	done := make(chan struct{})
	go func() {
		r.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestFormatSince(t *testing.T) {
	ts := time.Unix(1714557600, 5)
	assert.Equal(t, "1714557600.000000005", FormatSince(ts))
}
