// Package clean implements the cache cleaning use case.
package clean

import (
	"context"
	"fmt"

	"github.com/EdgeApp/libforge/internal/log"
	"github.com/EdgeApp/libforge/internal/registry"
	"github.com/EdgeApp/libforge/internal/storage"
)

// ServiceConfig is the configuration for the clean service.
type ServiceConfig struct {
	Registry *registry.Registry
	Status   storage.StatusRepository
	Logger   log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}
	if c.Status == nil {
		return fmt.Errorf("status repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Clean"})
	return nil
}

// Service drops persisted task statuses so the next build re-runs them.
type Service struct {
	registry *registry.Registry
	status   storage.StatusRepository
	logger   log.Logger
}

// NewService creates a new clean service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		registry: cfg.Registry,
		status:   cfg.Status,
		logger:   cfg.Logger,
	}, nil
}

// Request contains the parameters for a clean operation.
type Request struct {
	// Tasks are the task names to forget. Empty means every task.
	Tasks []string
}

// Run drops the requested statuses.
func (s *Service) Run(ctx context.Context, req Request) error {
	if len(req.Tasks) == 0 {
		if err := s.status.ClearStatuses(ctx); err != nil {
			return fmt.Errorf("could not clear statuses: %w", err)
		}
		s.logger.Infof("Cleared all task statuses")
		return nil
	}

	for _, name := range req.Tasks {
		// Fail early on unknown names instead of silently ignoring typos.
		if _, err := s.registry.Lookup(name); err != nil {
			return fmt.Errorf("could not clean task: %w", err)
		}
		if err := s.status.DeleteStatus(ctx, name); err != nil {
			return fmt.Errorf("could not delete status for task %q: %w", name, err)
		}
		s.logger.Infof("Cleared status for task %q", name)
	}

	return nil
}
