package formatter

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/chime/internal/models"
	"github.com/desertthunder/chime/internal/shared"
	th "github.com/desertthunder/chime/internal/testing"
)

func sampleTasks() []models.Task {
	return []models.Task{
		{
			ID:        "1",
			Name:      "Morning bell",
			StartTime: "08:00:00",
			EndTime:   "08:05:00",
			Volume:    80,
			Schedule:  "Mon, Wed",
			AudioPath: "/audio/bell.mp3",
			Status:    models.StatusWaiting,
		},
		{
			ID:        "2",
			Name:      "Fire drill | annual",
			StartTime: "10:30:00",
			EndTime:   "10:32:00",
			Volume:    100,
			Schedule:  "2024-03-01",
			AudioPath: "/audio/siren.wav",
			Status:    models.StatusError,
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleTasks())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "ID,Name,Start,End,Volume,Schedule,Audio,Status") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, `1,Morning bell,08:00:00,08:05:00,80,"Mon, Wed",/audio/bell.mp3,waiting`) {
			t.Errorf("CSV missing first task, got: %s", output)
		}
		if !strings.Contains(output, "2024-03-01") {
			t.Errorf("CSV missing date schedule")
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(sampleTasks())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		tc := []string{
			"# Scheduled tasks",
			"**Tasks**: 2",
			"**Errors**: 1",
			"| 1 | Morning bell | 08:00:00 | 08:05:00 | 80 | Mon, Wed | Waiting |",
			`Fire drill \| annual`,
			"## Audio",
			"2. `/audio/siren.wav`",
		}
		for _, want := range tc {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("ExportToMarkdown empty", func(t *testing.T) {
		data, _ := ExportToMarkdown(nil)
		if !strings.Contains(string(data), "_No tasks._") {
			t.Errorf("expected empty marker, got %s", data)
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		tasks := sampleTasks()
		tasks[0].Name = strings.Repeat("long name ", 10)

		data, err := ExportToText(tasks)
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Tasks: 2") {
			t.Errorf("Text missing task count")
		}
		if !strings.Contains(output, "NAME") || !strings.Contains(output, "SCHEDULE") {
			t.Errorf("Text missing header")
		}
		if strings.Contains(output, tasks[0].Name) {
			t.Errorf("long name should be truncated")
		}
		if !strings.Contains(output, "…") {
			t.Errorf("truncated name should end with an ellipsis")
		}
		if !strings.Contains(output, "Error") {
			t.Errorf("Text missing status label")
		}
	})
}

func TestExport(t *testing.T) {
	tc := []struct {
		format string
		want   string
	}{
		{FormatJSON, `"audioPath": "/audio/bell.mp3"`},
		{"", `"version": 2`},
		{FormatCSV, "ID,Name"},
		{FormatMarkdown, "# Scheduled tasks"},
		{"md", "# Scheduled tasks"},
		{FormatText, "Tasks: 2"},
	}
	for _, tt := range tc {
		t.Run("format "+tt.format, func(t *testing.T) {
			data, err := Export(sampleTasks(), tt.format)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(string(data), tt.want) {
				t.Errorf("expected %q in output, got %s", tt.want, data)
			}
		})
	}

	t.Run("unsupported format", func(t *testing.T) {
		if _, err := Export(sampleTasks(), "xml"); !errors.Is(err, shared.ErrUnsupportedFormat) {
			t.Errorf("expected ErrUnsupportedFormat, got %v", err)
		}
	})
}

func TestTruncateName(t *testing.T) {
	tc := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"much longer name", 8, "much lo…"},
		{"unchanged", 0, "unchanged"},
	}
	for _, tt := range tc {
		if got := TruncateName(tt.in, tt.width); got != tt.want {
			t.Errorf("TruncateName(%q, %d): expected %q, got %q", tt.in, tt.width, tt.want, got)
		}
	}
}

func TestRenderMarkdown(t *testing.T) {
	data, _ := ExportToMarkdown(sampleTasks())
	out := RenderMarkdown(data, 80)
	if len(out) == 0 {
		t.Fatal("expected rendered output")
	}
	if !strings.Contains(string(out), "Morning bell") {
		t.Errorf("rendered output missing task name: %s", out)
	}
}

func TestWriteExport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.csv")

	if err := WriteExport(sampleTasks(), FormatCSV, path); err != nil {
		t.Fatalf("WriteExport failed: %v", err)
	}
	th.AssertFileExists(t, path)
	if content := th.MustReadFile(t, path); !strings.Contains(content, "Morning bell") {
		t.Errorf("unexpected file content: %s", content)
	}

	if err := WriteExport(sampleTasks(), FormatCSV, filepath.Join(dir, "missing", "tasks.csv")); err == nil {
		t.Error("expected error writing into a missing directory")
	}
}
