// Package engine implements the build task orchestrator: it resolves the
// dependency graph of a root task, reuses cached results where the whole
// subtree is clean, and executes dirty tasks with bounded process parallelism.
package engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/EdgeApp/libforge/internal/log"
	"github.com/EdgeApp/libforge/internal/model"
	"github.com/EdgeApp/libforge/internal/registry"
	"github.com/EdgeApp/libforge/internal/storage"
)

// ProcessExecutor runs one external command, streaming its output to the
// given sink.
type ProcessExecutor interface {
	Exec(ctx context.Context, sink io.Writer, req model.ExecRequest) (*model.ExecResult, error)
}

// LogSinkFactory opens the exclusive append-only log sink for one task
// invocation.
type LogSinkFactory interface {
	OpenTaskLog(taskName string) (io.WriteCloser, string, error)
}

// EngineConfig is the configuration for the build engine.
type EngineConfig struct {
	Registry *registry.Registry
	Status   storage.StatusRepository
	Executor ProcessExecutor
	LogSinks LogSinkFactory
	// BasePath is the invariant root directory for the whole build.
	BasePath string
	// BaseEnv is the environment every build context starts from, usually the
	// ambient process environment plus user overrides.
	BaseEnv map[string]string
	Logger  log.Logger
}

func (c *EngineConfig) defaults() error {
	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}
	if c.Status == nil {
		return fmt.Errorf("status repository is required")
	}
	if c.Executor == nil {
		return fmt.Errorf("executor is required")
	}
	if c.LogSinks == nil {
		return fmt.Errorf("log sink factory is required")
	}
	if c.BasePath == "" {
		return fmt.Errorf("base path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "engine.Engine"})
	return nil
}

// Engine orchestrates one build run at a time over an immutable task registry.
type Engine struct {
	registry *registry.Registry
	status   storage.StatusRepository
	executor ProcessExecutor
	logSinks LogSinkFactory
	basePath string
	baseEnv  map[string]string
	logger   log.Logger
}

// NewEngine creates a new build engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		registry: cfg.Registry,
		status:   cfg.Status,
		executor: cfg.Executor,
		logSinks: cfg.LogSinks,
		basePath: cfg.BasePath,
		baseEnv:  cfg.BaseEnv,
		logger:   cfg.Logger,
	}, nil
}

// Result is the outcome of a build run.
type Result struct {
	// Clean is true when the root task result was reused without executing
	// anything.
	Clean bool
	// FailedTask names the first task whose body failed, when the build
	// failed because of a task body.
	FailedTask string
	// FailedLogPath is the log file of the failing task.
	FailedLogPath string
}

// Build resolves and executes the named root task. It is the single entry
// point of a build run: per-run memoization state lives only for the duration
// of this call.
//
// Configuration errors (unknown task names) and dependency cycles in the
// declared graph abort the build before any task executes. Task body failures
// propagate to all transitive dependents while unrelated subtrees settle
// independently; the returned Result names the first failing task.
func (e *Engine) Build(ctx context.Context, rootTask string) (*Result, error) {
	// Walking the declared graph up front keeps cycle detection finite and
	// deterministic even when independent subtrees resolve concurrently.
	if err := e.validateDeclared(rootTask); err != nil {
		return nil, err
	}

	run := &buildRun{
		engine:   e,
		attempts: map[string]*attempt{},
	}

	e.logger.Infof("Building task %q", rootTask)

	clean, err := run.resolve(ctx, rootTask, nil)
	if err != nil {
		res := &Result{
			FailedTask:    run.failedTask,
			FailedLogPath: run.failedLogPath,
		}
		return res, err
	}

	if clean {
		e.logger.Infof("Task %q is up to date", rootTask)
	} else {
		e.logger.Infof("Task %q built successfully", rootTask)
	}

	return &Result{Clean: clean}, nil
}

// validateDeclared walks the statically declared dependency graph reachable
// from root, rejecting unknown task names and cycles. Dynamically discovered
// dependencies are checked again at request time against the ancestor chain.
func (e *Engine) validateDeclared(root string) error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := map[string]int{}

	var walk func(name string, stack []string) error
	walk = func(name string, stack []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			// Close the cycle path from the repeated task back to itself.
			path := []string{name}
			for i := len(stack) - 1; i >= 0; i-- {
				path = append([]string{stack[i]}, path...)
				if stack[i] == name {
					break
				}
			}
			return &model.CycleError{Path: path}
		}

		t, err := e.registry.Lookup(name)
		if err != nil {
			return fmt.Errorf("unresolvable dependency: %w", err)
		}

		state[name] = visiting
		for _, dep := range t.Dependencies {
			if err := walk(dep, append(stack, name)); err != nil {
				return err
			}
		}
		state[name] = done

		return nil
	}

	return walk(root, nil)
}

// attempt is the shared future of one task resolution within a build run.
// Concurrent requesters of the same task wait on the same attempt.
type attempt struct {
	done  chan struct{}
	clean bool
	err   error
}

// buildRun holds the per-run in-memory execution state.
type buildRun struct {
	engine *Engine

	mu       sync.Mutex
	attempts map[string]*attempt

	failMu        sync.Mutex
	failedTask    string
	failedLogPath string
}

// resolve returns whether the task was clean (reused) and its settled error.
// stack is the ancestor chain of the request path, used for cycle detection
// of dynamically discovered dependencies.
func (r *buildRun) resolve(ctx context.Context, name string, stack []string) (bool, error) {
	// Cycle check must run before the shared-attempt lookup so a task that
	// reaches itself fails instead of waiting on its own future.
	for i, ancestor := range stack {
		if ancestor == name {
			path := append(append([]string{}, stack[i:]...), name)
			return false, &model.CycleError{Path: path}
		}
	}

	r.mu.Lock()
	if a, ok := r.attempts[name]; ok {
		r.mu.Unlock()
		select {
		case <-a.done:
			return a.clean, a.err
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	a := &attempt{done: make(chan struct{})}
	r.attempts[name] = a
	r.mu.Unlock()

	a.clean, a.err = r.run(ctx, name, stack)
	close(a.done)

	return a.clean, a.err
}

// run performs the dependency resolution, cache decision and execution of a
// single task attempt.
func (r *buildRun) run(ctx context.Context, name string, stack []string) (bool, error) {
	task, err := r.engine.registry.Lookup(name)
	if err != nil {
		return false, fmt.Errorf("unresolvable dependency: %w", err)
	}

	childStack := make([]string, 0, len(stack)+1)
	childStack = append(childStack, stack...)
	childStack = append(childStack, name)

	// Independent subtrees have no ordering requirement between each other,
	// so declared dependencies resolve concurrently. A plain errgroup (no
	// shared context cancellation) lets sibling subtrees settle on their own
	// even when one of them fails.
	depsClean := true
	var cleanMu sync.Mutex
	var eg errgroup.Group
	for _, dep := range task.Dependencies {
		dep := dep
		eg.Go(func() error {
			clean, err := r.resolve(ctx, dep, childStack)
			if err != nil {
				return err
			}
			cleanMu.Lock()
			depsClean = depsClean && clean
			cleanMu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		// A task never runs with a failed dependency.
		return false, err
	}

	if r.isClean(ctx, *task, depsClean) {
		r.engine.logger.Debugf("Task %q is clean, skipping", name)
		return true, nil
	}

	return false, r.execute(ctx, *task, childStack)
}

// isClean decides whether the task may reuse its previous result: it must be
// cacheable, every dependency must have been clean, and the stored record
// must match the current tag with a successful outcome.
func (r *buildRun) isClean(ctx context.Context, task model.Task, depsClean bool) bool {
	if task.CacheTag == "" || !depsClean {
		return false
	}

	record, err := r.engine.status.LoadStatus(ctx, task.Name)
	if err != nil || record == nil {
		return false
	}

	return record.Success && record.CacheTag == task.CacheTag
}

// execute runs the task body with a fresh build context and persists the
// outcome for cacheable tasks.
func (r *buildRun) execute(ctx context.Context, task model.Task, stack []string) error {
	sink, logPath, err := r.engine.logSinks.OpenTaskLog(task.Name)
	if err != nil {
		return fmt.Errorf("task %q: could not open log sink: %w", task.Name, err)
	}
	defer sink.Close()

	bc := newBuildContext(r, task.Name, stack, sink)

	r.engine.logger.Infof("Running task %q (log: %s)", task.Name, logPath)
	start := time.Now()

	runErr := task.Run(ctx, bc)

	if task.CacheTag != "" {
		record := model.StatusRecord{
			CacheTag: task.CacheTag,
			LastRun:  time.Now().UTC(),
			Success:  runErr == nil,
		}
		if err := r.engine.status.SaveStatus(ctx, task.Name, record); err != nil {
			r.engine.logger.Warningf("Could not save status for task %q: %s", task.Name, err)
		}
	}

	if runErr != nil {
		r.recordFailure(task.Name, logPath)
		r.engine.logger.Errorf("Task %q failed after %s: %s", task.Name, time.Since(start).Round(time.Millisecond), runErr)
		return fmt.Errorf("task %q: %w", task.Name, runErr)
	}

	r.engine.logger.Debugf("Task %q finished in %s", task.Name, time.Since(start).Round(time.Millisecond))
	return nil
}

// recordFailure keeps the first failing task for user-facing reporting.
func (r *buildRun) recordFailure(taskName, logPath string) {
	r.failMu.Lock()
	defer r.failMu.Unlock()

	if r.failedTask == "" {
		r.failedTask = taskName
		r.failedLogPath = logPath
	}
}
