// Package docker reads container log streams from the Docker Engine API.
package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/steplogs/viewer/internal/ingest"
	"github.com/steplogs/viewer/internal/models"
)

// ttyReadSize is the read size for containers attached to a TTY, whose log
// stream is not multiplexed.
const ttyReadSize = 32 * 1024

// Source opens container log streams through a Docker client.
type Source struct {
	cli *client.Client
}

// NewSource connects to the daemon at host, or to the one described by the
// DOCKER_* environment when host is empty. An empty apiVersion negotiates.
func NewSource(host, apiVersion string) (*Source, error) {
	opts := []client.Opt{client.FromEnv}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	if apiVersion != "" {
		opts = append(opts, client.WithVersion(apiVersion))
	} else {
		opts = append(opts, client.WithAPIVersionNegotiation())
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Source{cli: cli}, nil
}

// Ping checks that the daemon is reachable.
func (s *Source) Ping(ctx context.Context) error {
	_, err := s.cli.Ping(ctx)
	return err
}

// Close releases the client's connections.
func (s *Source) Close() error {
	return s.cli.Close()
}

// Open implements ingest.Source. The stream carries the retained history of
// stdout and stderr and ends there; it does not follow new output.
func (s *Source) Open(ctx context.Context, containerID string, opts ingest.StreamOptions) (ingest.ChunkReader, error) {
	info, err := s.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("inspect container %s: %w", containerID, err)
	}
	tty := info.Config != nil && info.Config.Tty

	logOpts := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: opts.Timestamps,
	}
	if !opts.Since.IsZero() {
		logOpts.Since = FormatSince(opts.Since)
	}

	ctx, cancel := context.WithCancel(ctx)
	body, err := s.cli.ContainerLogs(ctx, containerID, logOpts)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open logs of %s: %w", containerID, err)
	}

	return newChunkReader(ctx, cancel, body, tty), nil
}

// FormatSince renders t the way the logs endpoint expects: Unix seconds with
// a nanosecond fraction.
func FormatSince(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10) + "." + fmt.Sprintf("%09d", t.Nanosecond())
}

// chunkReader turns a log body into a sequence of chunks. A goroutine
// demultiplexes the body; every frame becomes one chunk.
type chunkReader struct {
	chunks chan models.Chunk
	err    error // set before chunks is closed
	body   io.ReadCloser
	cancel context.CancelFunc
	once   sync.Once
}

func newChunkReader(ctx context.Context, cancel context.CancelFunc, body io.ReadCloser, tty bool) *chunkReader {
	r := &chunkReader{
		chunks: make(chan models.Chunk, 64),
		body:   body,
		cancel: cancel,
	}

	go func() {
		defer close(r.chunks)
		stdout := &chunkWriter{ctx: ctx, stream: models.StreamStdout, out: r.chunks}
		if tty {
			r.err = copyRaw(stdout, body)
			return
		}
		stderr := &chunkWriter{ctx: ctx, stream: models.StreamStderr, out: r.chunks}
		_, r.err = stdcopy.StdCopy(stdout, stderr, body)
	}()

	return r
}

// Next implements ingest.ChunkReader.
func (r *chunkReader) Next() (models.Chunk, error) {
	c, ok := <-r.chunks
	if ok {
		return c, nil
	}
	if r.err != nil {
		return models.Chunk{}, r.err
	}
	return models.Chunk{}, io.EOF
}

// Close implements ingest.ChunkReader. It stops the demultiplexer and waits
// for it to exit.
func (r *chunkReader) Close() error {
	var err error
	r.once.Do(func() {
		r.cancel()
		err = r.body.Close()
		for range r.chunks {
		}
	})
	return err
}

// chunkWriter receives one Write per frame from stdcopy and forwards it.
type chunkWriter struct {
	ctx    context.Context
	stream models.Stream
	out    chan<- models.Chunk
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	data := make([]byte, len(p))
	copy(data, p)
	select {
	case w.out <- models.Chunk{Stream: w.stream, Data: data}:
		return len(p), nil
	case <-w.ctx.Done():
		return 0, w.ctx.Err()
	}
}

func copyRaw(w io.Writer, r io.Reader) error {
	buf := make([]byte, ttyReadSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
