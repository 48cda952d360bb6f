package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chime/internal/lifecycle"
	"github.com/desertthunder/chime/internal/models"
	"github.com/desertthunder/chime/internal/playback"
	"github.com/desertthunder/chime/internal/repositories"
	"github.com/desertthunder/chime/internal/scheduler"
	"github.com/desertthunder/chime/internal/shared"
)

// warnInterval bounds how often the same broken task is logged.
const warnInterval = time.Minute

// Options configures an [Engine]. Zero values take the defaults.
type Options struct {
	Tolerance     time.Duration   // schedule match window, never narrower than [scheduler.Tolerance]
	DefaultVolume int             // volume for added tasks without one; default 100
	EventBuffer   int             // default 64
	Prober        playback.Prober // used to derive end times
	Fallback      time.Duration   // end time offset when probing fails; default [models.FallbackDuration]
	Now           func() time.Time
	Logger        *log.Logger
}

// Engine owns the task collection and serializes every operation on it.
//
// Manual operations, scheduler ticks and playback completions all take the engine lock before
// touching tasks or the controller. Every change is persisted through the [repositories.TaskStore].
type Engine struct {
	mu        sync.Mutex
	store     repositories.TaskStore
	ctrl      *playback.Controller
	prober    playback.Prober
	fallback  time.Duration
	tasks     []models.Task
	rejected  []models.RecordError
	days      *lifecycle.DayTracker
	fired     scheduler.Occurrences
	events    chan Event
	tolerance time.Duration
	volume    int
	now       func() time.Time
	logger    *log.Logger
	warn      *scheduler.Throttle
	pumpDone  chan struct{}
	started   bool
	closed    bool
}

// New creates an Engine persisting to store and playing through ctrl. Call [Engine.Start] before use.
func New(store repositories.TaskStore, ctrl *playback.Controller, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	if opts.Fallback <= 0 {
		opts.Fallback = models.FallbackDuration
	}
	if opts.DefaultVolume <= 0 || opts.DefaultVolume > 100 {
		opts.DefaultVolume = 100
	}

	return &Engine{
		store:     store,
		ctrl:      ctrl,
		prober:    opts.Prober,
		fallback:  opts.Fallback,
		events:    make(chan Event, opts.EventBuffer),
		tolerance: max(opts.Tolerance, scheduler.Tolerance),
		volume:    opts.DefaultVolume,
		now:       opts.Now,
		logger:    shared.WithLogger(opts.Logger, "component", "engine"),
		warn:      scheduler.NewThrottle(warnInterval),
		fired:     make(scheduler.Occurrences),
		pumpDone:  make(chan struct{}),
	}
}

// Start loads the task collection, settles statuses left over from a previous run and
// begins consuming playback events.
//
// Tasks stored as playing or paused go back to waiting. Paused-today tasks keep their status
// unless the store was last saved on an earlier day, in which case that day is over.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return nil
	}

	tasks, rejected, err := e.store.LoadAll()
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}
	for _, r := range rejected {
		e.logger.Warn("rejected task record", "index", r.Index, "reason", r.Reason)
	}

	now := e.now()
	stale := e.pausedTodayExpired(now)

	changed := false
	for i := range tasks {
		tasks[i].Key = shared.GenerateID()
		switch {
		case tasks[i].Status.Active():
			tasks[i].Status = models.StatusWaiting
			changed = true
		case stale && tasks[i].Status == models.StatusPausedToday:
			e.logger.Info("paused today expired", "task", tasks[i].ID, "name", tasks[i].Name)
			tasks[i].Status = models.StatusWaiting
			changed = true
		}
	}

	e.tasks = tasks
	e.rejected = rejected
	e.days = lifecycle.NewDayTracker(now)
	e.started = true

	if changed {
		if err := e.save(); err != nil {
			e.logger.Warn("failed to persist startup reconciliation", "error", err)
		}
	} else {
		e.tasks = repositories.Canonicalize(e.tasks)
	}

	go e.pump(ctx)

	e.logger.Info("engine started", "tasks", len(e.tasks), "rejected", len(rejected))
	return nil
}

// pausedTodayExpired reports whether the store was last saved on a day before now.
func (e *Engine) pausedTodayExpired(now time.Time) bool {
	d, ok := e.store.(repositories.Dated)
	if !ok {
		return false
	}
	saved, err := d.LastSaved()
	if err != nil {
		e.logger.Warn("failed to read store save time", "error", err)
		return false
	}
	return !saved.IsZero() && lifecycle.EarlierDay(saved, now)
}

// Close stops playback, persists the final statuses and closes the event feed.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}

	var err error
	if e.started {
		if e.stopActive() {
			err = e.save()
		}
	}
	e.closed = true
	started := e.started
	e.mu.Unlock()

	e.ctrl.Close()
	if started {
		<-e.pumpDone
	}

	e.mu.Lock()
	close(e.events)
	e.mu.Unlock()
	return err
}

// Events returns the notification feed. Sends never block; events are dropped when it is full.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Tasks returns a snapshot of the collection in canonical order.
func (e *Engine) Tasks() []models.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Task(nil), e.tasks...)
}

// Rejected returns the records that failed to load at startup.
func (e *Engine) Rejected() []models.RecordError {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.RecordError(nil), e.rejected...)
}

// Active returns the playback session, if any.
func (e *Engine) Active() (playback.SessionInfo, bool) {
	return e.ctrl.Active()
}

// Tick runs one scheduler pass at now: date rollover, reconciliation of sessions that ended
// without a completion event, then the evaluated plan. It saves only when something changed.
func (e *Engine) Tick(now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started || e.closed {
		return nil
	}

	changed := false

	if e.days.Observe(now) {
		e.logger.Info("date rollover", "date", e.days.Date())
		clear(e.fired)
		for i := range e.tasks {
			if e.tasks[i].Status == models.StatusPausedToday {
				changed = e.apply(i, lifecycle.EventRollover) || changed
			}
		}
	}

	activeKey := ""
	if info, ok := e.ctrl.Active(); ok {
		activeKey = info.TaskKey
	}
	for i := range e.tasks {
		if !e.tasks[i].Status.Active() || e.tasks[i].Key == activeKey {
			continue
		}
		// Only natural completion releases a playing session without going through the engine.
		ev := lifecycle.EventComplete
		if e.tasks[i].Status == models.StatusPaused {
			ev = lifecycle.StopEvent(e.tasks[i], now)
		}
		changed = e.apply(i, ev) || changed
	}

	plan := scheduler.EvaluateWithin(e.tolerance, now, e.tasks, activeKey, e.fired, shared.FileExists)

	if f := plan.ActiveFault; f != nil {
		e.ctrl.Stop()
		if i := e.indexByKey(f.Key); i >= 0 {
			e.logger.Warn("active task lost its audio", "task", f.TaskID, "error", f.Err)
			changed = e.apply(i, lifecycle.EventFault) || changed
		}
	}

	for _, key := range plan.Recovered {
		if i := e.indexByKey(key); i >= 0 {
			e.warn.Forget(key)
			e.logger.Info("task recovered", "task", e.tasks[i].ID, "name", e.tasks[i].Name)
			changed = e.apply(i, lifecycle.EventRecover) || changed
		}
	}

	for _, f := range plan.Faults {
		if i := e.indexByKey(f.Key); i >= 0 {
			e.warn.Do(f.Key, func() {
				e.logger.Warn("task faulted", "task", f.TaskID, "error", f.Err)
			})
			changed = e.apply(i, lifecycle.EventFault) || changed
		}
	}

	if plan.Start != "" {
		if i := e.indexByKey(plan.Start); i >= 0 {
			e.logger.Info("scheduled start", "task", e.tasks[i].ID, "name", e.tasks[i].Name)
			if err := e.play(i, now); err != nil {
				e.logger.Warn("scheduled start failed", "task", e.tasks[i].ID, "error", err)
			}
			changed = true
		}
	}

	if !changed {
		return nil
	}
	return e.save()
}

func (e *Engine) pump(ctx context.Context) {
	defer close(e.pumpDone)

	events := e.ctrl.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.handle(ev)
		}
	}
}

func (e *Engine) handle(ev playback.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	i := e.indexByKey(ev.Session.TaskKey)
	if i < 0 {
		return
	}

	switch ev.Kind {
	case playback.EventProgress:
		if info, ok := e.ctrl.Active(); !ok || info.ID != ev.Session.ID {
			return
		}
		e.send(progressEvent(e.tasks[i], ev.Session, ev.Percent))

	case playback.EventComplete:
		if info, ok := e.ctrl.Active(); ok && info.ID != ev.Session.ID {
			return
		}
		if e.tasks[i].Status != models.StatusPlaying {
			return
		}
		key := e.tasks[i].Key
		e.apply(i, lifecycle.EventComplete)
		if err := e.save(); err != nil {
			e.logger.Warn("failed to persist completion", "task", ev.Session.TaskID, "error", err)
		}
		e.send(completedEvent(e.byKey(key), ev.Session))
	}
}

// play starts task i, preempting any other active task with the stop rule.
// A failure faults the task and leaves no session. A start inside the task's own window
// uses up that occurrence, so the scheduler does not fire it again.
func (e *Engine) play(i int, now time.Time) error {
	t := e.tasks[i]

	if !shared.FileExists(t.AudioPath) {
		e.apply(i, lifecycle.EventFault)
		return fmt.Errorf("%w: %s", shared.ErrResourceMissing, t.AudioPath)
	}

	if info, ok := e.ctrl.Active(); ok {
		if info.TaskKey == t.Key {
			if !info.Paused {
				return nil
			}
			if err := e.ctrl.Resume(); err != nil {
				return err
			}
			e.apply(i, lifecycle.EventResume)
			return nil
		}
		e.stopActiveAt(now)
	}
	if e.tasks[i].Status.Active() {
		e.apply(i, lifecycle.EventStopEarly)
	}

	if ok, _ := scheduler.Matches(t, now, e.tolerance); ok {
		e.fired[t.Key] = scheduler.Occurrence(t, now)
	}

	if _, err := e.ctrl.Start(playback.Request{TaskKey: t.Key, TaskID: t.ID, Path: t.AudioPath, Volume: t.Volume}); err != nil {
		e.apply(i, lifecycle.EventFault)
		return err
	}

	e.apply(i, lifecycle.EventStart)
	return nil
}

// stopActive stops the session and settles its task with the stop rule. It reports whether anything changed.
func (e *Engine) stopActive() bool {
	return e.stopActiveAt(e.now())
}

func (e *Engine) stopActiveAt(now time.Time) bool {
	info, ok := e.ctrl.Stop()
	if !ok {
		return false
	}
	i := e.indexByKey(info.TaskKey)
	if i < 0 {
		return true
	}
	e.apply(i, lifecycle.StopEvent(e.tasks[i], now))
	return true
}

// apply runs the state machine for task i and reports whether its status changed.
func (e *Engine) apply(i int, ev lifecycle.Event) bool {
	from := e.tasks[i].Status
	to, err := lifecycle.Transition(from, ev)
	if err != nil {
		e.logger.Debug("ignored transition", "task", e.tasks[i].ID, "error", err)
		return false
	}
	if to == from {
		return false
	}
	e.tasks[i].Status = to
	e.logger.Debug("status changed", "task", e.tasks[i].ID, "event", ev, "from", from, "to", to)
	e.send(statusChangedEvent(e.tasks[i], from))
	return true
}

// save canonicalizes the collection in memory and persists it. The in-memory state is kept on failure.
func (e *Engine) save() error {
	e.tasks = repositories.Canonicalize(e.tasks)
	if info, ok := e.ctrl.Active(); ok {
		if i := e.indexByKey(info.TaskKey); i >= 0 && e.tasks[i].ID != info.TaskID {
			e.ctrl.Reassociate(info.TaskKey, e.tasks[i].ID)
		}
	}

	if _, err := e.store.SaveAll(e.tasks); err != nil {
		e.logger.Error("failed to save tasks", "error", err)
		e.send(persistenceFailedEvent(err))
		return err
	}
	return nil
}

func (e *Engine) send(ev Event) {
	if e.closed {
		return
	}
	select {
	case e.events <- ev:
	default:
	}
}

func (e *Engine) indexByKey(key string) int {
	if key == "" {
		return -1
	}
	for i, t := range e.tasks {
		if t.Key == key {
			return i
		}
	}
	return -1
}

func (e *Engine) indexByID(id string) (int, error) {
	for i, t := range e.tasks {
		if t.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", shared.ErrTaskNotFound, id)
}
