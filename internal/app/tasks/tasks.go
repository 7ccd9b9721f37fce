// Package tasks implements the task listing use case.
package tasks

import (
	"context"
	"fmt"

	"github.com/EdgeApp/libforge/internal/log"
	"github.com/EdgeApp/libforge/internal/model"
	"github.com/EdgeApp/libforge/internal/registry"
	"github.com/EdgeApp/libforge/internal/storage"
)

// ServiceConfig is the configuration for the tasks service.
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Tasks"})
	return nil
}

// Service lists registered tasks with their cache state.
type Service struct {
	registry *registry.Registry
	status   storage.StatusRepository
	logger   log.Logger
}

// NewService creates a new tasks service.
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

// TaskInfo is a registered task with its persisted status, when any.
type TaskInfo struct {
	Task   model.Task
	Status *model.StatusRecord
}

// List returns every registered task sorted by name, joined with its stored
// status record.
func (s *Service) List(ctx context.Context) ([]TaskInfo, error) {
	tasks := s.registry.List()

	infos := make([]TaskInfo, 0, len(tasks))
	for _, t := range tasks {
		record, err := s.status.LoadStatus(ctx, t.Name)
		if err != nil {
			return nil, fmt.Errorf("could not load status for task %q: %w", t.Name, err)
		}
		infos = append(infos, TaskInfo{Task: t, Status: record})
	}

	return infos, nil
}
