package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/steplogs/viewer/internal/models"
	"github.com/steplogs/viewer/internal/parser"
	"github.com/steplogs/viewer/internal/store"
)

// MaxRunHistory is how many finished runs are kept for the status endpoint.
const MaxRunHistory = 20

// Observer receives the outcome of each run. Metrics implement it.
type Observer interface {
	ObserveRun(run models.IngestRun)
}

// Config configures a Task.
type Config struct {
	ContainerID string
	Rules       parser.LineRules
	// UseCursor resumes each run from the last line timestamp seen instead
	// of re-reading the whole retained history.
	UseCursor bool
}

// Task reads a container's log stream into a LogStore, one pass per Run.
type Task struct {
	cfg      Config
	source   Source
	store    *store.LogStore
	parser   *parser.RecordParser
	logger   *log.Logger
	observer Observer

	mu      sync.Mutex
	cursor  time.Time
	current *models.IngestRun
	history []models.IngestRun
}

// NewTask creates an ingestion task. The logger may be nil.
func NewTask(cfg Config, source Source, st *store.LogStore, logger *log.Logger) *Task {
	if logger == nil {
		logger = log.New("ingest")
		logger.SetLevel(log.OFF)
	}
	return &Task{
		cfg:    cfg,
		source: source,
		store:  st,
		parser: parser.NewRecordParser(cfg.Rules, parser.NewArnIntern(0)),
		logger: logger,
	}
}

// SetObserver registers an observer notified after every run.
func (t *Task) SetObserver(o Observer) {
	t.observer = o
}

// ContainerID returns the container the task reads from.
func (t *Task) ContainerID() string {
	return t.cfg.ContainerID
}

// Cursor returns the timestamp the next run will resume from.
func (t *Task) Cursor() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cursor
}

// Current returns the run in progress, if any.
func (t *Task) Current() (models.IngestRun, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return models.IngestRun{}, false
	}
	return *t.current, true
}

// History returns finished runs, most recent first.
func (t *Task) History() []models.IngestRun {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.IngestRun, len(t.history))
	for i, r := range t.history {
		out[len(t.history)-1-i] = r
	}
	return out
}

// RecordSkipped records a tick that did not run because the previous one
// was still streaming.
func (t *Task) RecordSkipped() {
	now := time.Now()
	run := models.IngestRun{
		ID:          uuid.New().String(),
		ContainerID: t.cfg.ContainerID,
		Status:      models.RunStatusSkipped,
		StartedAt:   now,
		EndedAt:     now,
	}
	t.logger.Debugf("[Ingest %s] previous run still streaming, tick skipped", run.ID[:8])
	t.finish(run)
}

// Run performs one pass: it opens the stream, decodes stdout chunks into
// lines, parses them and inserts accepted records into the store. It returns
// when the stream ends. Per-chunk failures are logged and skipped; only a
// failure to open the stream or a broken connection marks the run as errored.
func (t *Task) Run(ctx context.Context) models.IngestRun {
	run := models.IngestRun{
		ID:          uuid.New().String(),
		ContainerID: t.cfg.ContainerID,
		Status:      models.RunStatusRunning,
		StartedAt:   time.Now(),
	}
	tag := run.ID[:8]

	opts := StreamOptions{Timestamps: t.cfg.UseCursor}
	if t.cfg.UseCursor {
		opts.Since = t.Cursor()
	}
	run.Since = opts.Since
	t.setCurrent(run)

	t.logger.Debugf("[Ingest %s] opening log stream of %s (since %s)", tag, t.cfg.ContainerID, formatSince(opts.Since))

	reader, err := t.source.Open(ctx, t.cfg.ContainerID, opts)
	if err != nil {
		run.Status = models.RunStatusError
		run.Error = fmt.Sprintf("open log stream: %v", err)
		run.EndedAt = time.Now()
		t.logger.Errorf("[Ingest %s] %s", tag, run.Error)
		t.finish(run)
		return run
	}
	defer reader.Close()

	decoder := parser.NewLineDecoder()
	var latest time.Time

	handle := func(lines []string) {
		for _, line := range lines {
			run.Lines++
			if t.cfg.UseCursor {
				if ts, rest, ok := parser.StripTimestamp(line); ok {
					line = rest
					if ts.After(latest) {
						latest = ts
					}
				}
			}
			rec, ok := t.parser.ParseLine(line)
			if !ok {
				run.Rejected++
				continue
			}
			run.Accepted++
			if t.store.Insert(rec) {
				run.Inserted++
			}
		}
	}

	for {
		chunk, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			run.Status = models.RunStatusError
			run.Error = fmt.Sprintf("read log stream: %v", err)
			t.logger.Warnf("[Ingest %s] %s", tag, run.Error)
			break
		}

		run.Chunks++
		if chunk.Stream == models.StreamStderr {
			run.StderrChunks++
			continue
		}

		lines, err := decoder.Decode(chunk)
		if err != nil {
			run.DecodeErrors++
			t.logger.Warnf("[Ingest %s] chunk of %d bytes: %v", tag, len(chunk.Data), err)
		}
		handle(lines)
		t.setCurrent(run)
	}

	lines, err := decoder.Flush()
	if err != nil {
		run.DecodeErrors++
		t.logger.Warnf("[Ingest %s] unterminated tail: %v", tag, err)
	}
	handle(lines)

	if run.Status == models.RunStatusRunning {
		run.Status = models.RunStatusComplete
	}
	run.EndedAt = time.Now()

	if !latest.IsZero() {
		t.advanceCursor(latest)
	}

	t.logger.Infof("[Ingest %s] stream ended: %d lines, %d accepted (%d new), %d decode errors in %s",
		tag, run.Lines, run.Accepted, run.Inserted, run.DecodeErrors, run.Duration().Round(time.Millisecond))

	t.finish(run)
	return run
}

func (t *Task) setCurrent(run models.IngestRun) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = &run
}

func (t *Task) advanceCursor(ts time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ts.After(t.cursor) {
		t.cursor = ts
	}
}

func (t *Task) finish(run models.IngestRun) {
	t.mu.Lock()
	if run.Status != models.RunStatusSkipped {
		t.current = nil
	}
	t.history = append(t.history, run)
	if len(t.history) > MaxRunHistory {
		t.history = t.history[len(t.history)-MaxRunHistory:]
	}
	t.mu.Unlock()

	if t.observer != nil {
		t.observer.ObserveRun(run)
	}
}

func formatSince(ts time.Time) string {
	if ts.IsZero() {
		return "start"
	}
	return ts.UTC().Format(time.RFC3339Nano)
}
