package engine

import (
	"fmt"
	"io"
	"os"

	"github.com/EdgeApp/libforge/internal/conventions"
)

// FileLogSinks opens one log file per task invocation under the build logs
// directory. It implements LogSinkFactory.
type FileLogSinks struct {
	// BasePath is the build base path; log files live under its logs
	// subdirectory.
	BasePath string
}

// OpenTaskLog opens (truncating) the log file for a task invocation and
// returns it with its path. The caller owns the sink exclusively.
func (f FileLogSinks) OpenTaskLog(taskName string) (io.WriteCloser, string, error) {
	if err := os.MkdirAll(conventions.LogsDirPath(f.BasePath), 0755); err != nil {
		return nil, "", fmt.Errorf("could not create logs directory: %w", err)
	}

	path := conventions.TaskLogPath(f.BasePath, taskName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, "", fmt.Errorf("could not open log file: %w", err)
	}

	return file, path, nil
}
