package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/EdgeApp/libforge/internal/app/tasks"
	"github.com/EdgeApp/libforge/internal/model"
)

// TablePrinter prints build information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintTaskList prints registered tasks in a table format.
func (t *TablePrinter) PrintTaskList(infos []tasks.TaskInfo) error {
	if len(infos) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header
	fmt.Fprintln(tw, "NAME\tCACHE TAG\tDEPENDS ON\tSTATE\tLAST RUN")

	// Print rows
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			info.Task.Name,
			orDash(info.Task.CacheTag),
			orDash(strings.Join(info.Task.Dependencies, ", ")),
			taskState(info),
			taskLastRun(info),
		)
	}

	return nil
}

// PrintRunList prints journaled build runs in a table format.
func (t *TablePrinter) PrintRunList(runs []model.BuildRun) error {
	if len(runs) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header
	fmt.Fprintln(tw, "ID\tTASK\tSTATUS\tFAILED TASK\tSTARTED\tDURATION")

	// Print rows
	for _, r := range runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.RootTask,
			r.Status,
			orDash(r.FailedTask),
			TimeAgo(r.StartedAt),
			duration,
		)
	}

	return nil
}

func taskState(info tasks.TaskInfo) string {
	switch {
	case info.Task.CacheTag == "":
		return "uncacheable"
	case info.Status == nil:
		return "never built"
	case info.Status.Success && info.Status.CacheTag == info.Task.CacheTag:
		return "clean"
	default:
		return "dirty"
	}
}

func taskLastRun(info tasks.TaskInfo) string {
	if info.Status == nil {
		return "-"
	}
	return TimeAgo(info.Status.LastRun)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
