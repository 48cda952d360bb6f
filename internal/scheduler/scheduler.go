package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chime/internal/shared"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"
)

// TickFunc is called once per tick with the tick's wall-clock time.
type TickFunc func(now time.Time)

// Scheduler fires a [TickFunc] on a fixed interval.
//
// Ticks never overlap: a tick still running when the next one is due causes that one to be skipped.
type Scheduler struct {
	cron     *cron.Cron
	interval time.Duration
	tick     TickFunc
	logger   *log.Logger
	mu       sync.Mutex
	running  bool
}

// New creates a Scheduler calling tick every interval. Intervals under a second are rounded up.
func New(interval time.Duration, tick TickFunc, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger = shared.WithLogger(logger, "component", "scheduler")

	cl := cronLogger{logger}
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds(), cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		interval: max(interval, time.Second),
		tick:     tick,
		logger:   logger,
	}
}

// Start registers the tick job and starts the cron runner.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	spec := "@every " + s.interval.String()
	if _, err := s.cron.AddFunc(spec, func() { s.tick(time.Now()) }); err != nil {
		return fmt.Errorf("%w: tick interval %s: %w", shared.ErrInvalidConfig, s.interval, err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler started", "interval", s.interval)
	return nil
}

// Stop halts the runner and waits for an in-flight tick until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for tick to finish: %w", shared.ErrTimeout, ctx.Err())
	}
}

// Running reports whether the scheduler has been started and not stopped.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// cronLogger adapts a [log.Logger] to the cron logging interface.
type cronLogger struct {
	l *log.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}

// Throttle rate-limits repeated warnings per key.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	keys     map[string]*rate.Sometimes
}

// NewThrottle creates a Throttle letting one call per key through every interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval, keys: make(map[string]*rate.Sometimes)}
}

// Do runs f unless a call for key already ran within the interval.
func (t *Throttle) Do(key string, f func()) {
	t.mu.Lock()
	s, ok := t.keys[key]
	if !ok {
		s = &rate.Sometimes{First: 1, Interval: t.interval}
		t.keys[key] = s
	}
	t.mu.Unlock()
	s.Do(f)
}

// Forget drops the state kept for key, so its next call runs.
func (t *Throttle) Forget(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.keys, key)
}
