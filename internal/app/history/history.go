// Package history implements the build-run history use case.
package history

import (
	"context"
	"fmt"

	"github.com/EdgeApp/libforge/internal/log"
	"github.com/EdgeApp/libforge/internal/model"
	"github.com/EdgeApp/libforge/internal/storage"
)

// ServiceConfig is the configuration for the history service.
type ServiceConfig struct {
	Runs   storage.RunRepository
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Runs == nil {
		return fmt.Errorf("run repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.History"})
	return nil
}

// Service lists journaled build runs.
type Service struct {
	runs   storage.RunRepository
	logger log.Logger
}

// NewService creates a new history service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		runs:   cfg.Runs,
		logger: cfg.Logger,
	}, nil
}

// Request contains the parameters for listing build runs.
type Request struct {
	// Limit bounds the number of returned runs. Zero means no limit.
	Limit int
}

// List returns the most recent build runs, newest first.
func (s *Service) List(ctx context.Context, req Request) ([]model.BuildRun, error) {
	if req.Limit < 0 {
		return nil, fmt.Errorf("limit cannot be negative: %w", model.ErrNotValid)
	}

	runs, err := s.runs.ListRuns(ctx, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("could not list runs: %w", err)
	}

	return runs, nil
}
