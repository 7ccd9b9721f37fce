package engine

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/EdgeApp/libforge/internal/model"
)

// buildContext is the per-execution environment handed to a task body. It
// implements model.BuildContext.
//
// Directory and environment mutations stay local to this context: the map is
// copied from the engine base environment at creation and discarded when the
// task settles.
type buildContext struct {
	run      *buildRun
	taskName string
	// stack is the ancestor chain including this task, used to route
	// dynamically requested sub-tasks through the regular cycle checks.
	stack []string

	workdir string
	env     map[string]string
	sink    io.Writer
}

func newBuildContext(run *buildRun, taskName string, stack []string, sink io.Writer) *buildContext {
	env := make(map[string]string, len(run.engine.baseEnv))
	for k, v := range run.engine.baseEnv {
		env[k] = v
	}

	return &buildContext{
		run:      run,
		taskName: taskName,
		stack:    stack,
		workdir:  run.engine.basePath,
		env:      env,
		sink:     sink,
	}
}

func (c *buildContext) BasePath() string { return c.run.engine.basePath }

func (c *buildContext) Workdir() string { return c.workdir }

func (c *buildContext) Cd(dir string) {
	if filepath.IsAbs(dir) {
		c.workdir = filepath.Clean(dir)
		return
	}
	c.workdir = filepath.Join(c.workdir, dir)
}

func (c *buildContext) Env() map[string]string {
	env := make(map[string]string, len(c.env))
	for k, v := range c.env {
		env[k] = v
	}
	return env
}

func (c *buildContext) Setenv(key, value string) {
	c.env[key] = value
}

func (c *buildContext) Logf(format string, args ...interface{}) {
	fmt.Fprintf(c.sink, format+"\n", args...)
}

func (c *buildContext) Exec(ctx context.Context, req model.ExecRequest) (*model.ExecResult, error) {
	if req.Dir == "" {
		req.Dir = c.workdir
	}
	if req.Env == nil {
		req.Env = c.env
	}

	return c.run.engine.executor.Exec(ctx, c.sink, req)
}

func (c *buildContext) Requires(ctx context.Context, taskName string) error {
	_, err := c.run.resolve(ctx, taskName, c.stack)
	return err
}
