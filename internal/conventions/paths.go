package conventions

import (
	"path/filepath"
	"regexp"
)

const (
	// DefaultDataDir is the default libforge data directory name (relative to home).
	DefaultDataDir = ".libforge"
	// HistoryDBFile is the filename of the build-run history database.
	HistoryDBFile = "libforge.db"

	// StatusDir is the subdirectory of the build base path holding per-task
	// status documents.
	StatusDir = "status"
	// LogsDir is the subdirectory of the build base path holding per-task
	// log files.
	LogsDir = "logs"

	// DefaultRootTask is the task built when no task argument is given.
	DefaultRootTask = "default"
	// ProjectConfigFile is the optional per-project configuration filename.
	ProjectConfigFile = ".libforge.yaml"
)

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SafeTaskFileName maps a task name to a filename-safe form. The mapping is
// deterministic so a task always resolves to the same status and log paths.
func SafeTaskFileName(taskName string) string {
	return unsafePathChars.ReplaceAllString(taskName, "_")
}

// StatusDirPath returns the status directory for a build base path.
func StatusDirPath(basePath string) string {
	return filepath.Join(basePath, StatusDir)
}

// LogsDirPath returns the logs directory for a build base path.
func LogsDirPath(basePath string) string {
	return filepath.Join(basePath, LogsDir)
}

// TaskLogPath returns the log file path for a task invocation.
func TaskLogPath(basePath, taskName string) string {
	return filepath.Join(LogsDirPath(basePath), SafeTaskFileName(taskName)+".log")
}
