package playback

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chime/internal/shared"
)

// EventKind enumerates controller events.
type EventKind int

const (
	EventProgress EventKind = iota
	EventComplete
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventComplete:
		return "complete"
	default:
		return ""
	}
}

// Event is emitted by the progress loop of the active session.
type Event struct {
	Kind    EventKind
	Session SessionInfo
	Percent float64 // 0-100, zero when the duration is unknown
}

// SessionInfo is a snapshot of a playback session.
type SessionInfo struct {
	ID        string
	TaskKey   string
	TaskID    string
	Path      string
	Volume    int
	Duration  time.Duration
	Elapsed   time.Duration
	Paused    bool
	StartedAt time.Time
}

// Request identifies the task and resource to play.
type Request struct {
	TaskKey string
	TaskID  string
	Path    string
	Volume  int
}

// Options configures a [Controller]. Zero values take the defaults.
type Options struct {
	ProgressInterval time.Duration // default 500ms
	JoinTimeout      time.Duration // default 1s
	EventBuffer      int           // default 64
	Logger           *log.Logger
}

type session struct {
	info   SessionInfo
	cancel chan struct{}
	done   chan struct{}
}

func (s *session) cancelled() bool {
	select {
	case <-s.cancel:
		return true
	default:
		return false
	}
}

// Controller owns the single playback session and is the only caller of its [Device].
//
// Session state and every device call that changes playback are serialized by one lock.
// The progress loop reads position outside the lock and re-checks ownership under it
// before emitting, so no event is sent for a session once [Controller.Stop] has returned.
type Controller struct {
	device      Device
	sem         chan struct{}
	session     *session
	events      chan Event
	closed      bool
	interval    time.Duration
	joinTimeout time.Duration
	logger      *log.Logger
}

// NewController creates a Controller driving device.
func NewController(device Device, opts Options) *Controller {
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 500 * time.Millisecond
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = time.Second
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Controller{
		device:      device,
		sem:         make(chan struct{}, 1),
		events:      make(chan Event, opts.EventBuffer),
		interval:    opts.ProgressInterval,
		joinTimeout: opts.JoinTimeout,
		logger:      shared.WithLogger(opts.Logger, "component", "playback"),
	}
}

// Events returns the progress and completion feed. It is closed by [Controller.Close].
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Start plays req, first stopping any session owned by a different task.
//
// Starting the task that already owns the session returns that session unchanged.
// A device failure leaves no session behind.
func (c *Controller) Start(req Request) (SessionInfo, error) {
	c.lock()
	defer c.unlock()

	if c.closed {
		return SessionInfo{}, fmt.Errorf("%w: controller closed", shared.ErrDeviceFailure)
	}

	if s := c.session; s != nil {
		if s.info.TaskKey == req.TaskKey {
			return s.info, nil
		}
		c.logger.Info("preempting session", "session", s.info.ID, "task", s.info.TaskID, "by", req.TaskID)
		c.stopLocked()
	}

	duration, err := c.device.LoadAndPlay(req.Path, req.Volume)
	if err != nil {
		if stopErr := c.device.Stop(); stopErr != nil {
			c.logger.Warn("device stop after failed load", "error", stopErr)
		}
		return SessionInfo{}, fmt.Errorf("%w: %s: %w", shared.ErrDeviceFailure, req.Path, err)
	}

	s := &session{
		info: SessionInfo{
			ID:        shared.GenerateID(),
			TaskKey:   req.TaskKey,
			TaskID:    req.TaskID,
			Path:      req.Path,
			Volume:    req.Volume,
			Duration:  duration,
			StartedAt: time.Now(),
		},
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
	c.session = s
	go c.progressLoop(s)

	c.logger.Info("session started", "session", s.info.ID, "task", req.TaskID, "duration", duration)
	return s.info, nil
}

// Stop stops and releases the active session, returning its final snapshot. ok is false when idle.
func (c *Controller) Stop() (info SessionInfo, ok bool) {
	c.lock()
	defer c.unlock()
	return c.stopLocked()
}

// Pause pauses the active session. It is a no-op when idle or already paused.
func (c *Controller) Pause() error {
	c.lock()
	defer c.unlock()

	s := c.session
	if s == nil || s.info.Paused {
		return nil
	}
	if err := c.device.Pause(); err != nil {
		return fmt.Errorf("%w: pause: %w", shared.ErrDeviceFailure, err)
	}
	s.info.Paused = true
	return nil
}

// Resume resumes the active session. It is a no-op when idle or not paused.
func (c *Controller) Resume() error {
	c.lock()
	defer c.unlock()

	s := c.session
	if s == nil || !s.info.Paused {
		return nil
	}
	if err := c.device.Resume(); err != nil {
		return fmt.Errorf("%w: resume: %w", shared.ErrDeviceFailure, err)
	}
	s.info.Paused = false
	return nil
}

// SetVolume changes the volume of the active session. It is a no-op when idle.
func (c *Controller) SetVolume(volume int) error {
	if volume < 0 || volume > 100 {
		return fmt.Errorf("%w: volume %d out of range 0-100", shared.ErrInvalidInput, volume)
	}

	c.lock()
	defer c.unlock()

	s := c.session
	if s == nil {
		return nil
	}
	if err := c.device.SetVolume(volume); err != nil {
		return fmt.Errorf("%w: set volume: %w", shared.ErrDeviceFailure, err)
	}
	s.info.Volume = volume
	return nil
}

// Active returns a snapshot of the active session.
func (c *Controller) Active() (SessionInfo, bool) {
	c.lock()
	defer c.unlock()

	if c.session == nil {
		return SessionInfo{}, false
	}
	return c.session.info, true
}

// Reassociate updates the task id recorded on the session owned by taskKey, after ids were renumbered.
func (c *Controller) Reassociate(taskKey, taskID string) bool {
	c.lock()
	defer c.unlock()

	if c.session == nil || c.session.info.TaskKey != taskKey {
		return false
	}
	c.session.info.TaskID = taskID
	return true
}

// Close stops any session and closes the event feed.
func (c *Controller) Close() {
	c.lock()
	defer c.unlock()

	if c.closed {
		return
	}
	c.stopLocked()
	c.closed = true
	close(c.events)
}

func (c *Controller) lock()   { c.sem <- struct{}{} }
func (c *Controller) unlock() { <-c.sem }

// lockUnless acquires the lock unless cancel fires first. It reports whether the lock is held.
func (c *Controller) lockUnless(cancel <-chan struct{}) bool {
	select {
	case c.sem <- struct{}{}:
		select {
		case <-cancel:
			<-c.sem
			return false
		default:
			return true
		}
	case <-cancel:
		return false
	}
}

func (c *Controller) stopLocked() (SessionInfo, bool) {
	s := c.session
	if s == nil {
		return SessionInfo{}, false
	}

	c.session = nil
	close(s.cancel)
	s.info.Elapsed = c.device.Elapsed()
	if err := c.device.Stop(); err != nil {
		c.logger.Warn("device stop failed", "session", s.info.ID, "error", err)
	}

	select {
	case <-s.done:
	case <-time.After(c.joinTimeout):
		c.logger.Warn("progress loop did not stop in time, session released", "session", s.info.ID, "timeout", c.joinTimeout)
	}

	c.logger.Info("session stopped", "session", s.info.ID, "task", s.info.TaskID, "elapsed", s.info.Elapsed)
	return s.info, true
}

func (c *Controller) emit(ev Event) {
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	default:
		c.logger.Debug("event dropped", "kind", ev.Kind, "session", ev.Session.ID)
	}
}

func (c *Controller) progressLoop(s *session) {
	defer close(s.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.cancel:
			return
		case <-ticker.C:
		}

		if !c.lockUnless(s.cancel) {
			return
		}
		paused := s.info.Paused
		c.unlock()
		if paused {
			continue
		}

		if s.cancelled() {
			return
		}
		busy := c.device.IsBusy()
		if s.cancelled() {
			return
		}
		elapsed := c.device.Elapsed()

		if !c.lockUnless(s.cancel) {
			return
		}
		if c.session != s {
			c.unlock()
			return
		}
		if s.info.Paused {
			c.unlock()
			continue
		}

		s.info.Elapsed = elapsed
		if !busy {
			c.session = nil
			c.emit(Event{Kind: EventComplete, Session: s.info, Percent: 100})
			c.unlock()
			c.logger.Info("session completed", "session", s.info.ID, "task", s.info.TaskID)
			return
		}

		c.emit(Event{Kind: EventProgress, Session: s.info, Percent: percent(elapsed, s.info.Duration)})
		c.unlock()
	}
}

func percent(elapsed, duration time.Duration) float64 {
	if duration <= 0 {
		return 0
	}
	return min(float64(elapsed)/float64(duration)*100, 100)
}
