// package formatter renders task collections as JSON, CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/chime/internal/models"
	"github.com/desertthunder/chime/internal/shared"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
)

// Supported export formats.
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// Formats lists the accepted values of the export format flag.
var Formats = []string{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// NameWidth is the column width names are truncated to in text output.
const NameWidth = 32

var (
	rendererMu sync.Mutex
	renderers  = map[int]*glamour.TermRenderer{}
)

// Export renders tasks in the named format.
func Export(tasks []models.Task, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		return models.EncodeRecords(tasks)
	case FormatCSV:
		return ExportToCSV(tasks)
	case FormatMarkdown, "md":
		return ExportToMarkdown(tasks)
	case FormatText, "text":
		return ExportToText(tasks)
	default:
		return nil, fmt.Errorf("%w: %q (expected one of %s)", shared.ErrUnsupportedFormat, format, strings.Join(Formats, ", "))
	}
}

// ExportToCSV converts tasks to CSV with columns: ID, Name, Start, End, Volume, Schedule, Audio, Status
func ExportToCSV(tasks []models.Task) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Start", "End", "Volume", "Schedule", "Audio", "Status"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, t := range tasks {
		record := []string{
			t.ID,
			t.Name,
			t.StartTime,
			t.EndTime,
			strconv.Itoa(t.Volume),
			t.Schedule,
			t.AudioPath,
			string(t.Status),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts tasks to a Markdown document with a summary and a task table
func ExportToMarkdown(tasks []models.Task) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Scheduled tasks\n\n")
	buf.WriteString(fmt.Sprintf("**Tasks**: %d\n", len(tasks)))

	counts := map[models.Status]int{}
	for _, t := range tasks {
		counts[t.Status]++
	}
	if n := counts[models.StatusError]; n > 0 {
		buf.WriteString(fmt.Sprintf("**Errors**: %d\n", n))
	}
	if n := counts[models.StatusPausedToday]; n > 0 {
		buf.WriteString(fmt.Sprintf("**Paused today**: %d\n", n))
	}
	buf.WriteString("\n")

	if len(tasks) == 0 {
		buf.WriteString("_No tasks._\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("| ID | Name | Start | End | Volume | Schedule | Status |\n")
	buf.WriteString("|---|---|---|---|---|---|---|\n")
	for _, t := range tasks {
		buf.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %d | %s | %s |\n",
			t.ID, escapeCell(t.Name), t.StartTime, t.EndTime, t.Volume, escapeCell(t.Schedule), t.Status.Label()))
	}

	buf.WriteString("\n## Audio\n\n")
	for _, t := range tasks {
		buf.WriteString(fmt.Sprintf("%s. `%s`\n", t.ID, t.AudioPath))
	}

	return buf.Bytes(), nil
}

// ExportToText converts tasks to a bordered plain text table
func ExportToText(tasks []models.Task) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Tasks: %d\n\n", len(tasks)))
	if len(tasks) == 0 {
		return buf.Bytes(), nil
	}

	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			t.ID, TruncateName(t.Name, NameWidth), t.StartTime, t.EndTime,
			strconv.Itoa(t.Volume), t.Schedule, t.Status.Label(),
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "START", "END", "VOL", "SCHEDULE", "STATUS").
		Rows(rows...)
	buf.WriteString(tbl.String())
	buf.WriteString("\n")

	return buf.Bytes(), nil
}

// TruncateName shortens s to at most width cells, marking the cut with an ellipsis.
func TruncateName(s string, width int) string {
	if width <= 0 || ansi.PrintableRuneWidth(s) <= width {
		return s
	}
	return truncate.StringWithTail(s, uint(width), "…")
}

// RenderMarkdown formats Markdown for terminal display at the given width.
//
// The input is returned unchanged when rendering fails.
func RenderMarkdown(data []byte, width int) []byte {
	if width < 20 {
		width = 20
	}

	renderer := markdownRenderer(width)
	if renderer == nil {
		return data
	}
	out, err := renderer.RenderBytes(data)
	if err != nil {
		return data
	}
	return out
}

func markdownRenderer(width int) *glamour.TermRenderer {
	rendererMu.Lock()
	defer rendererMu.Unlock()
	if cached, ok := renderers[width]; ok {
		return cached
	}
	created, err := glamour.NewTermRenderer(
		glamour.WithStyles(styles.ASCIIStyleConfig),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	renderers[width] = created
	return created
}

// WriteExport renders tasks in format and writes them to path.
func WriteExport(tasks []models.Task, format, path string) error {
	data, err := Export(tasks, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
