// Package executor spawns external build commands, streaming their output to
// a task-scoped log sink.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/EdgeApp/libforge/internal/limiter"
	"github.com/EdgeApp/libforge/internal/log"
	"github.com/EdgeApp/libforge/internal/model"
)

// ExecutorConfig is the configuration for the process executor.
type ExecutorConfig struct {
	Limiter *limiter.Limiter
	Logger  log.Logger
}

func (c *ExecutorConfig) defaults() error {
	if c.Limiter == nil {
		return fmt.Errorf("limiter is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "executor.Executor"})
	return nil
}

// Executor runs one external command per call, gated by the rate limiter.
type Executor struct {
	limiter *limiter.Limiter
	logger  log.Logger
}

// NewExecutor creates a new process executor.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Executor{
		limiter: cfg.Limiter,
		logger:  cfg.Logger,
	}, nil
}

// Exec runs the requested command, streaming stdout and stderr into sink as
// they arrive. The command line is written to the sink before a limiter slot
// is acquired; the child process itself is never started without a slot.
//
// A zero exit code resolves the call. Any other outcome returns a
// *model.ProcessError carrying the exit code or the underlying spawn error.
func (e *Executor) Exec(ctx context.Context, sink io.Writer, req model.ExecRequest) (*model.ExecResult, error) {
	if req.Command == "" {
		return nil, fmt.Errorf("command is required: %w", model.ErrNotValid)
	}

	cmdLine := commandLine(req.Command, req.Args)
	fmt.Fprintf(sink, "$ %s\n", cmdLine)

	var stdout bytes.Buffer

	err := e.limiter.Do(ctx, func() error {
		cmd := exec.CommandContext(ctx, req.Command, req.Args...)
		cmd.Dir = req.Dir
		cmd.Env = envList(req.Env)

		// Stdout and stderr arrive on separate goroutines, so the shared sink
		// needs serialized writes.
		out := &syncWriter{w: sink}
		if req.CaptureStdout {
			cmd.Stdout = io.MultiWriter(out, &stdout)
		} else {
			cmd.Stdout = out
		}
		cmd.Stderr = out

		e.logger.Debugf("Executing: %s", cmdLine)

		return cmd.Run()
	})
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintf(sink, "exit status %d\n", exitErr.ExitCode())
			return nil, &model.ProcessError{Command: cmdLine, ExitCode: exitErr.ExitCode()}
		}
		return nil, &model.ProcessError{Command: cmdLine, ExitCode: -1, Err: err}
	}

	return &model.ExecResult{
		Stdout:   stdout.String(),
		ExitCode: 0,
	}, nil
}

// commandLine renders the invocation for logging.
func commandLine(command string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, command)
	for _, a := range args {
		if strings.ContainsAny(a, " \t\"'") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// envList converts an environment map to the sorted KEY=VALUE form os/exec
// expects.
func envList(env map[string]string) []string {
	if env == nil {
		return nil
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, fmt.Sprintf("%s=%s", k, env[k]))
	}
	return list
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
