package ingest

import (
	"context"
	"io"
	"sync"

	"github.com/steplogs/viewer/internal/models"
)

// fakeSource replays a fixed list of chunks on every Open.
type fakeSource struct {
	mu      sync.Mutex
	chunks  []models.Chunk
	readErr error // returned after the chunks instead of io.EOF
	openErr error
	block   chan struct{}   // when set, Next waits on it before the first chunk
	blocks  []chan struct{} // per-Open override of block, in open order
	opened  []StreamOptions
}

func (f *fakeSource) Open(ctx context.Context, containerID string, opts StreamOptions) (ChunkReader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, opts)
	if f.openErr != nil {
		return nil, f.openErr
	}
	block := f.block
	if n := len(f.opened) - 1; n < len(f.blocks) {
		block = f.blocks[n]
	}
	return &fakeReader{ctx: ctx, chunks: f.chunks, readErr: f.readErr, block: block}, nil
}

func (f *fakeSource) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opened)
}

type fakeReader struct {
	ctx     context.Context
	chunks  []models.Chunk
	readErr error
	block   chan struct{}
	pos     int
	closed  bool
}

func (r *fakeReader) Next() (models.Chunk, error) {
	if r.block != nil {
		select {
		case <-r.block:
		case <-r.ctx.Done():
			return models.Chunk{}, r.ctx.Err()
		}
		r.block = nil
	}
	if r.pos >= len(r.chunks) {
		if r.readErr != nil {
			return models.Chunk{}, r.readErr
		}
		return models.Chunk{}, io.EOF
	}
	c := r.chunks[r.pos]
	r.pos++
	return c, nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func out(s string) models.Chunk {
	return models.Chunk{Stream: models.StreamStdout, Data: []byte(s)}
}

func errChunk(s string) models.Chunk {
	return models.Chunk{Stream: models.StreamStderr, Data: []byte(s)}
}
