package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/chime/internal/models"
	"github.com/muesli/reflow/truncate"
)

var _ list.Item = taskItem{}

// titleWidth bounds task names in the list.
const titleWidth = 48

// taskItem wraps [models.Task] to implement [list.Item].
type taskItem struct {
	task models.Task
}

func (i taskItem) FilterValue() string { return i.task.Name }
func (i taskItem) Title() string {
	name := truncate.StringWithTail(i.task.Name, titleWidth, "…")
	return fmt.Sprintf("%s. %s", i.task.ID, name)
}
func (i taskItem) Description() string {
	desc := fmt.Sprintf("%s-%s • %s • vol %d", i.task.StartTime, i.task.EndTime, i.task.Schedule, i.task.Volume)
	return fmt.Sprintf("%s • %s", desc, statusStyle(i.task.Status).Render(i.task.Status.Label()))
}

func taskItems(tasks []models.Task) []list.Item {
	items := make([]list.Item, len(tasks))
	for i, t := range tasks {
		items[i] = taskItem{task: t}
	}
	return items
}
