package playback

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/chime/internal/shared"
	tu "github.com/desertthunder/chime/internal/testing"
)

func newTestController(t *testing.T, device Device, buf *bytes.Buffer) *Controller {
	t.Helper()
	if buf == nil {
		buf = &bytes.Buffer{}
	}
	c := NewController(device, Options{
		ProgressInterval: 5 * time.Millisecond,
		JoinTimeout:      50 * time.Millisecond,
		EventBuffer:      256,
		Logger:           shared.NewLogger(buf),
	})
	t.Cleanup(c.Close)
	return c
}

func drain(ch <-chan Event) []Event {
	var evs []Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return evs
			}
			evs = append(evs, ev)
		default:
			return evs
		}
	}
}

func waitEvent(t *testing.T, ch <-chan Event, kind EventKind) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", kind)
			return Event{}
		}
	}
}

func TestControllerStart(t *testing.T) {
	t.Run("starts a session and reports progress", func(t *testing.T) {
		dev := tu.NewMockDevice(10 * time.Second)
		c := newTestController(t, dev, nil)

		info, err := c.Start(Request{TaskKey: "k1", TaskID: "1", Path: "/a.mp3", Volume: 70})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.ID == "" || info.TaskID != "1" || info.Duration != 10*time.Second {
			t.Errorf("unexpected session info: %+v", info)
		}
		if dev.Volume() != 70 {
			t.Errorf("expected volume 70, got %d", dev.Volume())
		}

		dev.Advance(5 * time.Second)
		ev := waitEvent(t, c.Events(), EventProgress)
		if ev.Session.ID != info.ID {
			t.Errorf("progress for wrong session: %s", ev.Session.ID)
		}
	})

	t.Run("same task is idempotent", func(t *testing.T) {
		dev := tu.NewMockDevice(time.Minute)
		c := newTestController(t, dev, nil)

		first, _ := c.Start(Request{TaskKey: "k1", TaskID: "1", Path: "/a.mp3"})
		second, err := c.Start(Request{TaskKey: "k1", TaskID: "1", Path: "/a.mp3"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if first.ID != second.ID {
			t.Error("expected the running session to be returned")
		}
		if n := len(dev.Loaded()); n != 1 {
			t.Errorf("expected 1 load, got %d", n)
		}
	})

	t.Run("different task preempts", func(t *testing.T) {
		dev := tu.NewMockDevice(time.Minute)
		c := newTestController(t, dev, nil)

		first, _ := c.Start(Request{TaskKey: "k1", TaskID: "1", Path: "/a.mp3"})
		second, err := c.Start(Request{TaskKey: "k2", TaskID: "2", Path: "/b.mp3"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if first.ID == second.ID {
			t.Error("expected a new session")
		}
		calls := dev.Calls()
		if !slices.Equal(calls, []string{"load", "stop", "load"}) {
			t.Errorf("unexpected device calls: %v", calls)
		}
		active, ok := c.Active()
		if !ok || active.TaskKey != "k2" {
			t.Errorf("expected k2 active, got %+v", active)
		}
	})

	t.Run("device failure leaves no session", func(t *testing.T) {
		dev := tu.NewMockDevice(time.Minute)
		dev.FailLoads(errors.New("no output device"))
		c := newTestController(t, dev, nil)

		_, err := c.Start(Request{TaskKey: "k1", TaskID: "1", Path: "/a.mp3"})
		if !errors.Is(err, shared.ErrDeviceFailure) {
			t.Fatalf("expected ErrDeviceFailure, got %v", err)
		}
		if _, ok := c.Active(); ok {
			t.Error("expected no active session")
		}
		if !slices.Contains(dev.Calls(), "stop") {
			t.Error("expected the device to be stopped after the failed load")
		}
	})
}

func TestControllerCompletion(t *testing.T) {
	dev := tu.NewMockDevice(3 * time.Second)
	c := newTestController(t, dev, nil)

	info, err := c.Start(Request{TaskKey: "k1", TaskID: "1", Path: "/a.mp3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dev.Finish()

	ev := waitEvent(t, c.Events(), EventComplete)
	if ev.Session.ID != info.ID || ev.Percent != 100 {
		t.Errorf("unexpected completion event: %+v", ev)
	}
	if _, ok := c.Active(); ok {
		t.Error("session should be released after completion")
	}
}

func TestControllerStop(t *testing.T) {
	t.Run("no events after stop returns", func(t *testing.T) {
		dev := tu.NewMockDevice(time.Minute)
		c := newTestController(t, dev, nil)

		info, _ := c.Start(Request{TaskKey: "k1", TaskID: "1", Path: "/a.mp3"})
		waitEvent(t, c.Events(), EventProgress)

		stopped, ok := c.Stop()
		if !ok || stopped.ID != info.ID {
			t.Fatalf("expected to stop %s, got %+v", info.ID, stopped)
		}
		drain(c.Events())

		dev.Finish()
		time.Sleep(50 * time.Millisecond)
		if evs := drain(c.Events()); len(evs) != 0 {
			t.Errorf("expected no events after stop, got %d", len(evs))
		}
	})

	t.Run("idle stop is a no-op", func(t *testing.T) {
		c := newTestController(t, tu.NewMockDevice(time.Minute), nil)
		if _, ok := c.Stop(); ok {
			t.Error("expected ok=false when idle")
		}
	})

	t.Run("hung progress loop is released after the join timeout", func(t *testing.T) {
		var buf bytes.Buffer
		dev := tu.NewMockDevice(time.Minute)
		c := newTestController(t, dev, &buf)

		release := dev.Hang()
		defer release()

		if _, err := c.Start(Request{TaskKey: "k1", TaskID: "1", Path: "/a.mp3"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		time.Sleep(30 * time.Millisecond)

		done := make(chan struct{})
		go func() {
			c.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("stop blocked on a hung device")
		}

		if !strings.Contains(buf.String(), "did not stop in time") {
			t.Errorf("expected join timeout warning, got %q", buf.String())
		}
		if _, ok := c.Active(); ok {
			t.Error("session should be released")
		}

		release()
		time.Sleep(30 * time.Millisecond)
		if evs := drain(c.Events()); len(evs) != 0 {
			t.Errorf("released loop must not emit, got %d events", len(evs))
		}
	})
}

func TestControllerPauseResume(t *testing.T) {
	t.Run("idle pause and resume are no-ops", func(t *testing.T) {
		dev := tu.NewMockDevice(time.Minute)
		c := newTestController(t, dev, nil)
		if err := c.Pause(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if err := c.Resume(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(dev.Calls()) != 0 {
			t.Errorf("expected no device calls, got %v", dev.Calls())
		}
	})

	t.Run("repeated pause reaches the device once", func(t *testing.T) {
		dev := tu.NewMockDevice(time.Minute)
		c := newTestController(t, dev, nil)
		c.Start(Request{TaskKey: "k1", TaskID: "1", Path: "/a.mp3"})

		c.Pause()
		c.Pause()
		if info, _ := c.Active(); !info.Paused {
			t.Error("expected paused session")
		}
		c.Resume()
		c.Resume()

		want := []string{"load", "pause", "resume"}
		if got := dev.Calls(); !slices.Equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("paused session does not complete", func(t *testing.T) {
		dev := tu.NewMockDevice(time.Minute)
		c := newTestController(t, dev, nil)
		c.Start(Request{TaskKey: "k1", TaskID: "1", Path: "/a.mp3"})
		c.Pause()
		drain(c.Events())
		dev.Finish()

		time.Sleep(30 * time.Millisecond)
		for _, ev := range drain(c.Events()) {
			if ev.Kind == EventComplete {
				t.Fatal("paused session reported completion")
			}
		}
		if _, ok := c.Active(); !ok {
			t.Error("paused session should remain active")
		}
	})
}

func TestControllerVolumeAndReassociate(t *testing.T) {
	dev := tu.NewMockDevice(time.Minute)
	c := newTestController(t, dev, nil)

	if err := c.SetVolume(101); !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	c.Start(Request{TaskKey: "k1", TaskID: "3", Path: "/a.mp3", Volume: 50})
	if err := c.SetVolume(20); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dev.Volume() != 20 {
		t.Errorf("expected device volume 20, got %d", dev.Volume())
	}

	if c.Reassociate("other", "1") {
		t.Error("reassociate must match the task key")
	}
	if !c.Reassociate("k1", "1") {
		t.Fatal("expected reassociate to succeed")
	}
	if info, _ := c.Active(); info.TaskID != "1" || info.Volume != 20 {
		t.Errorf("unexpected session info: %+v", info)
	}
}

func TestControllerClose(t *testing.T) {
	dev := tu.NewMockDevice(time.Minute)
	c := NewController(dev, Options{ProgressInterval: 5 * time.Millisecond, Logger: shared.NewLogger(&bytes.Buffer{})})
	c.Start(Request{TaskKey: "k1", TaskID: "1", Path: "/a.mp3"})

	c.Close()
	c.Close()

	for range c.Events() {
	}
	if _, err := c.Start(Request{TaskKey: "k2", Path: "/b.mp3"}); !errors.Is(err, shared.ErrDeviceFailure) {
		t.Errorf("expected start after close to fail, got %v", err)
	}
}
