// Package ingest runs the periodic pass that reads a container's log stream
// into the record store.
package ingest

import (
	"context"
	"time"

	"github.com/steplogs/viewer/internal/models"
)

// StreamOptions select which part of the container's log history is read.
type StreamOptions struct {
	// Since skips lines logged before this instant. Zero reads everything.
	Since time.Time
	// Timestamps asks the source to prefix every line with its RFC 3339
	// timestamp so the reader can advance its cursor.
	Timestamps bool
}

// ChunkReader yields the chunks of one open log stream.
type ChunkReader interface {
	// Next blocks for the next chunk. It returns io.EOF once the stream has
	// ended normally.
	Next() (models.Chunk, error)
	Close() error
}

// Source opens the combined stdout/stderr log stream of a container.
// The stream is not followed: it ends after the retained history is sent.
type Source interface {
	Open(ctx context.Context, containerID string, opts StreamOptions) (ChunkReader, error)
}
