package shared

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestFormatDuration(t *testing.T) {
	tc := []struct {
		name string
		in   time.Duration
		want string
	}{
		{name: "zero", in: 0, want: "0:00"},
		{name: "seconds", in: 42 * time.Second, want: "0:42"},
		{name: "minutes", in: 3*time.Minute + 5*time.Second, want: "3:05"},
		{name: "rounds", in: 59*time.Second + 600*time.Millisecond, want: "1:00"},
		{name: "hours", in: time.Hour + 2*time.Minute + 3*time.Second, want: "1:02:03"},
		{name: "negative clamps", in: -time.Second, want: "0:00"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.in); got != tt.want {
				t.Errorf("FormatDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	t.Run("ApplyLogLevel", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&buf)

		if err := ApplyLogLevel(l, "warn"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		l.Info("hidden")
		l.Warn("shown")

		out := buf.String()
		if strings.Contains(out, "hidden") {
			t.Errorf("info should be filtered at warn level, got %q", out)
		}
		if !strings.Contains(out, "shown") {
			t.Errorf("expected warn output, got %q", out)
		}
		if l.GetLevel() != log.WarnLevel {
			t.Errorf("expected warn level, got %v", l.GetLevel())
		}
	})

	t.Run("ApplyLogLevel rejects unknown level", func(t *testing.T) {
		err := ApplyLogLevel(NewLogger(&bytes.Buffer{}), "chatty")
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("NewFileLogger", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "chime.log")
		l, closer, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("failed to create file logger: %v", err)
		}
		l.Info("written to file", "key", "value")
		if err := closer.Close(); err != nil {
			t.Fatalf("failed to close log file: %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read log file: %v", err)
		}
		if !strings.Contains(string(data), "written to file") {
			t.Errorf("expected log line in file, got %q", data)
		}
	})
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp3")
	if FileExists(path) {
		t.Error("expected missing file to report false")
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if !FileExists(path) {
		t.Error("expected existing file to report true")
	}
	if FileExists(dir) {
		t.Error("a directory is not an audio resource")
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b {
		t.Error("expected unique ids")
	}
	if len(a) != 36 {
		t.Errorf("expected uuid string, got %q", a)
	}
}
