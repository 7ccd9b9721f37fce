package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
)

// CycleError is returned when a task transitively depends on itself. It
// carries the full dependency chain from the task back to itself so the user
// can see exactly where the cycle closes.
type CycleError struct {
	// Path is the dependency chain, starting and ending with the same task.
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Path, " -> "))
}

// ProcessError is returned when an external command exited non-zero or could
// not be spawned at all.
type ProcessError struct {
	// Command is the full command line that was invoked.
	Command string
	// ExitCode is the command exit code. It is -1 when the process could not
	// be spawned.
	ExitCode int
	// Err is the underlying spawn error, if any.
	Err error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("command %q failed: %s", e.Command, e.Err)
	}
	return fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
}

func (e *ProcessError) Unwrap() error { return e.Err }
