package scheduler

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/chime/internal/models"
	"github.com/desertthunder/chime/internal/shared"
	tu "github.com/desertthunder/chime/internal/testing"
)

// 2024-01-01 is a Monday.
var monday8am = time.Date(2024, 1, 1, 8, 0, 0, 0, time.Local)

func allExist(string) bool { return true }

func existsExcept(missing ...string) func(string) bool {
	return func(p string) bool { return !slices.Contains(missing, p) }
}

func withID(t models.Task, id string) models.Task {
	t.ID = id
	return t
}

func TestEvaluate(t *testing.T) {
	t.Run("single start when two tasks match the same instant", func(t *testing.T) {
		t1 := withID(tu.NewTask("date", "08:00:00", "2024-01-01", "/a.mp3"), "1")
		t2 := withID(tu.NewTask("weekly", "08:00:00", "Mon", "/b.mp3"), "2")

		plan := Evaluate(monday8am, []models.Task{t1, t2}, "", allExist)
		if plan.Start != t1.Key {
			t.Errorf("expected first task in collection order to start, got %q", plan.Start)
		}

		plan = Evaluate(monday8am, []models.Task{t2, t1}, "", allExist)
		if plan.Start != t2.Key {
			t.Errorf("expected first task in collection order to start, got %q", plan.Start)
		}
	})

	t.Run("time tolerance", func(t *testing.T) {
		task := withID(tu.NewTask("bell", "08:00:00", "Mon", "/a.mp3"), "1")
		tc := []struct {
			name string
			now  time.Time
			want bool
		}{
			{"exact", monday8am, true},
			{"one second early", monday8am.Add(-time.Second), true},
			{"one second late", monday8am.Add(time.Second), true},
			{"sub-second late", monday8am.Add(1500 * time.Millisecond), false},
			{"two seconds late", monday8am.Add(2 * time.Second), false},
			{"next day same time", monday8am.AddDate(0, 0, 1), false},
		}
		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				plan := Evaluate(tt.now, []models.Task{task}, "", allExist)
				if got := plan.Start == task.Key; got != tt.want {
					t.Errorf("expected start=%v, got %v", tt.want, got)
				}
			})
		}
	})

	t.Run("configured tolerance never narrows", func(t *testing.T) {
		task := withID(tu.NewTask("bell", "08:00:00", "Mon", "/a.mp3"), "1")
		if plan := EvaluateWithin(0, monday8am.Add(time.Second), []models.Task{task}, "", nil, allExist); plan.Start == "" {
			t.Error("zero tolerance should fall back to the default")
		}
		if plan := EvaluateWithin(5*time.Second, monday8am.Add(4*time.Second), []models.Task{task}, "", nil, allExist); plan.Start == "" {
			t.Error("wider tolerance should match")
		}
	})

	t.Run("weekday selection over two weeks", func(t *testing.T) {
		task := withID(tu.NewTask("bell", "08:00:00", "Mon, Wed", "/a.mp3"), "1")
		for i := range 14 {
			now := monday8am.AddDate(0, 0, i)
			want := now.Weekday() == time.Monday || now.Weekday() == time.Wednesday
			plan := Evaluate(now, []models.Task{task}, "", allExist)
			if got := plan.Start != ""; got != want {
				t.Errorf("%s: expected start=%v, got %v", now.Format("Mon 2006-01-02"), want, got)
			}
		}
	})

	t.Run("skips active and paused today tasks", func(t *testing.T) {
		playing := withID(tu.NewTask("playing", "08:00:00", "Mon", "/a.mp3"), "1")
		playing.Status = models.StatusPlaying
		skipped := withID(tu.NewTask("skipped", "08:00:00", "Mon", "/b.mp3"), "2")
		skipped.Status = models.StatusPausedToday
		paused := withID(tu.NewTask("paused", "08:00:00", "Mon", "/c.mp3"), "3")
		paused.Status = models.StatusPaused

		plan := Evaluate(monday8am, []models.Task{playing, skipped, paused}, playing.Key, allExist)
		if !plan.Empty() {
			t.Errorf("expected empty plan, got %+v", plan)
		}
	})

	t.Run("completed tasks fire again", func(t *testing.T) {
		task := withID(tu.NewTask("bell", "08:00:00", "Mon", "/a.mp3"), "1")
		task.Status = models.StatusCompleted
		if plan := Evaluate(monday8am, []models.Task{task}, "", allExist); plan.Start != task.Key {
			t.Error("expected completed task to start on its next match")
		}
	})

	t.Run("missing resource faults and continues", func(t *testing.T) {
		broken := withID(tu.NewTask("broken", "08:00:00", "Mon", "/gone.mp3"), "1")
		ok := withID(tu.NewTask("ok", "08:00:00", "Mon", "/a.mp3"), "2")

		plan := Evaluate(monday8am, []models.Task{broken, ok}, "", existsExcept("/gone.mp3"))
		if len(plan.Faults) != 1 || plan.Faults[0].Key != broken.Key {
			t.Fatalf("expected one fault for the broken task, got %+v", plan.Faults)
		}
		if !errors.Is(plan.Faults[0].Err, shared.ErrResourceMissing) {
			t.Errorf("expected ErrResourceMissing, got %v", plan.Faults[0].Err)
		}
		if plan.Start != ok.Key {
			t.Error("expected the healthy task to start")
		}
	})

	t.Run("malformed fields fault", func(t *testing.T) {
		badTime := withID(tu.NewTask("bad time", "08:00:00", "Mon", "/a.mp3"), "1")
		badTime.StartTime = "eight"
		badSched := withID(tu.NewTask("bad schedule", "08:00:00", "Mon", "/b.mp3"), "2")
		badSched.Schedule = "Someday"

		plan := Evaluate(monday8am, []models.Task{badTime, badSched}, "", allExist)
		if len(plan.Faults) != 2 {
			t.Fatalf("expected 2 faults, got %+v", plan.Faults)
		}
		if !errors.Is(plan.Faults[0].Err, shared.ErrMalformedTime) {
			t.Errorf("expected ErrMalformedTime, got %v", plan.Faults[0].Err)
		}
		if !errors.Is(plan.Faults[1].Err, shared.ErrMalformedSchedule) {
			t.Errorf("expected ErrMalformedSchedule, got %v", plan.Faults[1].Err)
		}
	})

	t.Run("error task already faulted is not reported again", func(t *testing.T) {
		task := withID(tu.NewTask("broken", "08:00:00", "Mon", "/gone.mp3"), "1")
		task.Status = models.StatusError
		if plan := Evaluate(monday8am, []models.Task{task}, "", existsExcept("/gone.mp3")); !plan.Empty() {
			t.Errorf("expected empty plan, got %+v", plan)
		}
	})

	t.Run("error task recovers and is evaluated", func(t *testing.T) {
		task := withID(tu.NewTask("restored", "08:00:00", "Mon", "/a.mp3"), "1")
		task.Status = models.StatusError

		plan := Evaluate(monday8am, []models.Task{task}, "", allExist)
		if !slices.Equal(plan.Recovered, []string{task.Key}) {
			t.Errorf("expected recovery, got %v", plan.Recovered)
		}
		if plan.Start != task.Key {
			t.Error("expected the recovered task to start")
		}
	})

	t.Run("active task losing its resource", func(t *testing.T) {
		active := withID(tu.NewTask("active", "07:59:00", "Mon", "/gone.mp3"), "1")
		active.Status = models.StatusPlaying

		plan := Evaluate(monday8am, []models.Task{active}, active.Key, existsExcept("/gone.mp3"))
		if plan.ActiveFault == nil || plan.ActiveFault.Key != active.Key {
			t.Fatalf("expected active fault, got %+v", plan)
		}
	})

	t.Run("same task already playing is not restarted", func(t *testing.T) {
		task := withID(tu.NewTask("bell", "08:00:00", "Mon", "/a.mp3"), "1")
		task.Status = models.StatusPlaying
		if plan := Evaluate(monday8am, []models.Task{task}, task.Key, allExist); plan.Start != "" {
			t.Error("expected no start for the active task")
		}
	})

	t.Run("fired occurrence does not start again", func(t *testing.T) {
		task := withID(tu.NewTask("bell", "08:00:00", "Mon", "/a.mp3"), "1")
		fired := Occurrences{task.Key: Occurrence(task, monday8am)}

		for _, now := range []time.Time{monday8am, monday8am.Add(time.Second)} {
			if plan := EvaluateWithin(Tolerance, now, []models.Task{task}, "", fired, allExist); plan.Start != "" {
				t.Errorf("at %s: expected no second start", now.Format(time.TimeOnly))
			}
		}

		nextWeek := monday8am.AddDate(0, 0, 7)
		if plan := EvaluateWithin(Tolerance, nextWeek, []models.Task{task}, "", fired, allExist); plan.Start != task.Key {
			t.Error("a later occurrence should start")
		}
	})

	t.Run("active task inside its window holds the device", func(t *testing.T) {
		t1 := withID(tu.NewTask("date", "08:00:00", "2024-01-01", "/a.mp3"), "1")
		t1.Status = models.StatusPlaying
		t2 := withID(tu.NewTask("weekly", "08:00:00", "Mon", "/b.mp3"), "2")
		fired := Occurrences{t1.Key: Occurrence(t1, monday8am.Add(-time.Second))}

		for _, now := range []time.Time{monday8am, monday8am.Add(time.Second)} {
			if plan := EvaluateWithin(Tolerance, now, []models.Task{t1, t2}, t1.Key, fired, allExist); plan.Start != "" {
				t.Errorf("at %s: expected no preemption, got %q", now.Format(time.TimeOnly), plan.Start)
			}
		}
	})

	t.Run("active task outside its window can be preempted", func(t *testing.T) {
		t1 := withID(tu.NewTask("early", "07:00:00", "Mon", "/a.mp3"), "1")
		t1.Status = models.StatusPlaying
		t2 := withID(tu.NewTask("weekly", "08:00:00", "Mon", "/b.mp3"), "2")
		fired := Occurrences{t1.Key: Occurrence(t1, monday8am)}

		if plan := EvaluateWithin(Tolerance, monday8am, []models.Task{t1, t2}, t1.Key, fired, allExist); plan.Start != t2.Key {
			t.Errorf("expected the due task to start, got %q", plan.Start)
		}
	})
}

func TestOccurrence(t *testing.T) {
	task := tu.NewTask("bell", "8:00", "Mon", "/a.mp3")
	if got := Occurrence(task, monday8am.Add(3*time.Hour)); got != "2024-01-01 08:00:00" {
		t.Errorf("unexpected occurrence %q", got)
	}
	task.StartTime = "bad"
	if got := Occurrence(task, monday8am); got != "" {
		t.Errorf("malformed start should have no occurrence, got %q", got)
	}
}

func TestMatches(t *testing.T) {
	task := tu.NewTask("dated", "08:00:00", "2024-01-02", "/a.mp3")
	if ok, _ := Matches(task, monday8am, Tolerance); ok {
		t.Error("date form must not match another date")
	}
	if ok, _ := Matches(task, monday8am.AddDate(0, 0, 1), Tolerance); !ok {
		t.Error("date form should match its date")
	}
}

func TestScheduler(t *testing.T) {
	var ticks atomic.Int32
	s := New(time.Second, func(time.Time) { ticks.Add(1) }, shared.NewLogger(&bytes.Buffer{}))

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("second start should be a no-op: %v", err)
	}
	if !s.Running() {
		t.Error("expected running scheduler")
	}

	if !tu.WaitFor(t, 3*time.Second, func() bool { return ticks.Load() > 0 }) {
		t.Fatal("expected at least one tick")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Running() {
		t.Error("expected stopped scheduler")
	}

	n := ticks.Load()
	time.Sleep(1200 * time.Millisecond)
	if ticks.Load() != n {
		t.Error("ticks continued after stop")
	}
}

func TestThrottle(t *testing.T) {
	th := NewThrottle(time.Hour)
	var a, b int
	for range 3 {
		th.Do("a", func() { a++ })
		th.Do("b", func() { b++ })
	}
	if a != 1 || b != 1 {
		t.Errorf("expected one call per key, got a=%d b=%d", a, b)
	}

	th.Forget("a")
	th.Do("a", func() { a++ })
	if a != 2 {
		t.Errorf("expected forget to reset the key, got %d", a)
	}
}
