package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/EdgeApp/libforge/internal/app/tasks"
	"github.com/EdgeApp/libforge/internal/model"
)

// JSONPrinter prints build information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// taskItem represents a registered task in the list output.
type taskItem struct {
	Name         string     `json:"name"`
	CacheTag     string     `json:"cache_tag,omitempty"`
	Dependencies []string   `json:"dependencies,omitempty"`
	State        string     `json:"state"`
	LastRun      *time.Time `json:"last_run,omitempty"`
}

// runItem represents a journaled build run in the list output.
type runItem struct {
	ID         string     `json:"id"`
	RootTask   string     `json:"root_task"`
	Status     string     `json:"status"`
	FailedTask string     `json:"failed_task,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// PrintTaskList prints registered tasks in JSON format.
func (j *JSONPrinter) PrintTaskList(infos []tasks.TaskInfo) error {
	items := make([]taskItem, len(infos))
	for i, info := range infos {
		items[i] = taskItem{
			Name:         info.Task.Name,
			CacheTag:     info.Task.CacheTag,
			Dependencies: info.Task.Dependencies,
			State:        taskState(info),
		}
		if info.Status != nil {
			lastRun := info.Status.LastRun
			items[i].LastRun = &lastRun
		}
	}

	return j.encode(items)
}

// PrintRunList prints journaled build runs in JSON format.
func (j *JSONPrinter) PrintRunList(runs []model.BuildRun) error {
	items := make([]runItem, len(runs))
	for i, r := range runs {
		items[i] = runItem{
			ID:         r.ID,
			RootTask:   r.RootTask,
			Status:     string(r.Status),
			FailedTask: r.FailedTask,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
		}
	}

	return j.encode(items)
}

func (j *JSONPrinter) encode(v interface{}) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
