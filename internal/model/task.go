package model

import (
	"context"
	"fmt"
)

// RunFunc is the body of a build task. It receives the per-execution build
// context and returns an error when the task work failed.
type RunFunc func(ctx context.Context, bc BuildContext) error

// Task is the immutable definition of a named unit of build work.
//
// Tasks are registered once at startup and never mutated afterwards.
type Task struct {
	// Name is the unique key of the task across the whole registry.
	Name string
	// CacheTag is an opaque version marker. When empty the task is never
	// considered cacheable and always executes. The engine only compares
	// tags for equality, it never interprets their contents.
	CacheTag string
	// Dependencies are task names that must be confirmed clean or re-executed
	// before Run is invoked. Tasks may also discover dependencies at runtime
	// through BuildContext.Requires.
	Dependencies []string
	// Run is the task body.
	Run RunFunc
}

// Validate checks the task definition is usable.
func (t Task) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("task name is required: %w", ErrNotValid)
	}
	if t.Run == nil {
		return fmt.Errorf("task %q run body is required: %w", t.Name, ErrNotValid)
	}
	return nil
}

// BuildContext is the ephemeral environment handed to a running task body.
//
// Every execution gets a fresh context: working directory and environment
// mutations are local to the task and never visible to siblings or ancestors.
type BuildContext interface {
	// BasePath returns the invariant root directory of the whole build.
	BasePath() string
	// Workdir returns the current working directory of this context.
	Workdir() string
	// Cd changes the context working directory. Relative paths are resolved
	// against the current working directory.
	Cd(dir string)
	// Env returns a copy of the environment of this context.
	Env() map[string]string
	// Setenv sets an environment variable on this context.
	Setenv(key, value string)
	// Logf appends a formatted line to the task's log sink.
	Logf(format string, args ...interface{})
	// Exec runs an external command gated by the build rate limiter, streaming
	// its output to the task's log sink.
	Exec(ctx context.Context, req ExecRequest) (*ExecResult, error)
	// Requires resolves another named task as a dynamic dependency of the
	// running task, sharing the memoization and cycle checks of statically
	// declared dependencies.
	Requires(ctx context.Context, taskName string) error
}
