package printer

import (
	"github.com/EdgeApp/libforge/internal/app/tasks"
	"github.com/EdgeApp/libforge/internal/model"
)

// Printer knows how to print build information in different formats.
type Printer interface {
	PrintTaskList(infos []tasks.TaskInfo) error
	PrintRunList(runs []model.BuildRun) error
}
