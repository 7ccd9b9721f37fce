// Package build implements the build use case: run the engine for a root
// task and journal the run outcome.
package build

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/EdgeApp/libforge/internal/engine"
	"github.com/EdgeApp/libforge/internal/log"
	"github.com/EdgeApp/libforge/internal/model"
	"github.com/EdgeApp/libforge/internal/storage"
)

// ServiceConfig is the configuration for the build service.
type ServiceConfig struct {
	Engine *engine.Engine
	// Runs is the build-run history journal. Optional: when nil, runs are not
	// journaled.
	Runs   storage.RunRepository
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Engine == nil {
		return fmt.Errorf("engine is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Build"})
	return nil
}

// Service handles build runs.
type Service struct {
	engine *engine.Engine
	runs   storage.RunRepository
	logger log.Logger
}

// NewService creates a new build service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		engine: cfg.Engine,
		runs:   cfg.Runs,
		logger: cfg.Logger,
	}, nil
}

// Request contains the parameters for a build run.
type Request struct {
	// RootTask is the task to build.
	RootTask string
}

// Result is the user-facing outcome of a build run.
type Result struct {
	// RunID identifies the journaled run, empty when journaling is disabled.
	RunID string
	// Clean is true when nothing had to execute.
	Clean bool
	// Duration is the wall time of the run.
	Duration time.Duration
	// FailedTask and FailedLogPath describe the first failing task on build
	// failure.
	FailedTask    string
	FailedLogPath string
}

// Run executes a build for the requested root task.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if req.RootTask == "" {
		return nil, fmt.Errorf("root task is required: %w", model.ErrNotValid)
	}

	started := time.Now().UTC()
	runID := s.journalStart(ctx, req.RootTask, started)

	res, buildErr := s.engine.Build(ctx, req.RootTask)

	finished := time.Now().UTC()
	result := &Result{
		RunID:    runID,
		Duration: finished.Sub(started),
	}
	if res != nil {
		result.Clean = res.Clean
		result.FailedTask = res.FailedTask
		result.FailedLogPath = res.FailedLogPath
	}

	s.journalFinish(ctx, runID, req.RootTask, started, finished, result, buildErr)

	if buildErr != nil {
		var cycleErr *model.CycleError
		if errors.As(buildErr, &cycleErr) {
			return result, fmt.Errorf("could not build %q: %w", req.RootTask, buildErr)
		}
		return result, fmt.Errorf("build of %q failed: %w", req.RootTask, buildErr)
	}

	return result, nil
}

// journalStart records the run start, returning the run ID. Journal failures
// only log a warning, they never fail the build itself.
func (s *Service) journalStart(ctx context.Context, rootTask string, started time.Time) string {
	if s.runs == nil {
		return ""
	}

	id := ulid.MustNew(ulid.Timestamp(started), rand.Reader).String()
	err := s.runs.CreateRun(ctx, model.BuildRun{
		ID:        id,
		RootTask:  rootTask,
		Status:    model.BuildRunStatusRunning,
		StartedAt: started,
	})
	if err != nil {
		s.logger.Warningf("Could not journal build run start: %s", err)
		return ""
	}

	return id
}

func (s *Service) journalFinish(ctx context.Context, runID, rootTask string, started, finished time.Time, result *Result, buildErr error) {
	if s.runs == nil || runID == "" {
		return
	}

	status := model.BuildRunStatusSucceeded
	if buildErr != nil {
		status = model.BuildRunStatusFailed
	}

	err := s.runs.FinishRun(ctx, model.BuildRun{
		ID:         runID,
		RootTask:   rootTask,
		Status:     status,
		FailedTask: result.FailedTask,
		StartedAt:  started,
		FinishedAt: &finished,
	})
	if err != nil {
		s.logger.Warningf("Could not journal build run outcome: %s", err)
	}
}
