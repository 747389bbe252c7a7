package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/labstack/gommon/log"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule fires every seven seconds, starting at second 1.
const DefaultSchedule = "1/7 * * * * *"

var scheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule checks a six-field (seconds first) cron expression.
func ValidateSchedule(spec string) error {
	if _, err := scheduleParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Scheduler invokes a Task on a cron cadence.
//
// At most one run is in flight: a tick that fires while the previous run is
// still streaming is recorded as skipped. Set AllowOverlap to let ticks run
// concurrently instead.
type Scheduler struct {
	task         *Task
	cron         *cron.Cron
	logger       *log.Logger
	AllowOverlap bool

	running atomic.Int32

	mu      sync.Mutex // guards stopped and wg.Add against Stop
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler for task. The logger may be nil.
func NewScheduler(task *Task, spec string, logger *log.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = log.New("scheduler")
		logger.SetLevel(log.OFF)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		task:   task,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	s.cron = cron.New(
		cron.WithParser(scheduleParser),
		cron.WithLogger(cron.PrintfLogger(logger)),
		cron.WithChain(cron.Recover(cron.PrintfLogger(logger))),
	)
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins firing ticks in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron and cancels in-flight runs. It waits for them to
// return or for ctx to expire. Ticks and triggers after Stop do nothing.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.cancel()
	s.mu.Unlock()

	cronDone := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether at least one run is in flight.
func (s *Scheduler) Running() bool {
	return s.running.Load() > 0
}

// Trigger starts a run now, outside the cadence. It returns false if a run
// is already in flight and overlap is not allowed, or after Stop.
func (s *Scheduler) Trigger() bool {
	if !s.acquire() {
		return false
	}
	go func() {
		defer s.wg.Done()
		s.runAcquired()
	}()
	return true
}

func (s *Scheduler) tick() {
	if !s.acquire() {
		if !s.isStopped() {
			s.task.RecordSkipped()
		}
		return
	}
	defer s.wg.Done()
	s.runAcquired()
}

// acquire claims a run slot and registers it with wg. Both happen under mu
// so Stop never waits on a group that is still growing.
func (s *Scheduler) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if s.AllowOverlap {
		s.running.Add(1)
	} else if !s.running.CompareAndSwap(0, 1) {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Scheduler) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Scheduler) runAcquired() {
	defer s.running.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("[Scheduler] ingestion run panicked: %v", r)
		}
	}()
	s.task.Run(s.ctx)
}
