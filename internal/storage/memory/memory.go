// Package memory provides in-memory storage implementations, used by tests
// and as a stand-in when persistence is disabled.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/EdgeApp/libforge/internal/log"
	"github.com/EdgeApp/libforge/internal/model"
)

// StatusRepositoryConfig is the configuration for the memory status repository.
type StatusRepositoryConfig struct {
	Logger log.Logger
}

func (c *StatusRepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// StatusRepository is an in-memory implementation of storage.StatusRepository.
type StatusRepository struct {
	statuses map[string]model.StatusRecord
	mu       sync.RWMutex
	logger   log.Logger
}

// NewStatusRepository creates a new memory status repository.
func NewStatusRepository(cfg StatusRepositoryConfig) (*StatusRepository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &StatusRepository{
		statuses: map[string]model.StatusRecord{},
		logger:   cfg.Logger,
	}, nil
}

// LoadStatus returns the stored record for a task, or nil when absent.
func (r *StatusRepository) LoadStatus(ctx context.Context, taskName string) (*model.StatusRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.statuses[taskName]
	if !ok {
		return nil, nil
	}

	recordCopy := record
	return &recordCopy, nil
}

// SaveStatus persists the record for a task.
func (r *StatusRepository) SaveStatus(ctx context.Context, taskName string, record model.StatusRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.statuses[taskName] = record
	return nil
}

// DeleteStatus removes the stored record for a task, if any.
func (r *StatusRepository) DeleteStatus(ctx context.Context, taskName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.statuses, taskName)
	return nil
}

// ClearStatuses removes every stored record.
func (r *StatusRepository) ClearStatuses(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.statuses = map[string]model.StatusRecord{}
	return nil
}

// RunRepositoryConfig is the configuration for the memory run repository.
type RunRepositoryConfig struct {
	Logger log.Logger
}

func (c *RunRepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// RunRepository is an in-memory implementation of storage.RunRepository.
type RunRepository struct {
	runs   map[string]model.BuildRun
	mu     sync.RWMutex
	logger log.Logger
}

// NewRunRepository creates a new memory run repository.
func NewRunRepository(cfg RunRepositoryConfig) (*RunRepository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &RunRepository{
		runs:   map[string]model.BuildRun{},
		logger: cfg.Logger,
	}, nil
}

// CreateRun records a new build run.
func (r *RunRepository) CreateRun(ctx context.Context, run model.BuildRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; ok {
		return fmt.Errorf("run %s: %w", run.ID, model.ErrAlreadyExists)
	}
	r.runs[run.ID] = run

	return nil
}

// FinishRun updates a build run with its final outcome.
func (r *RunRepository) FinishRun(ctx context.Context, run model.BuildRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; !ok {
		return fmt.Errorf("run %s: %w", run.ID, model.ErrNotFound)
	}
	r.runs[run.ID] = run

	return nil
}

// ListRuns returns the most recent runs, newest first.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]model.BuildRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]model.BuildRun, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	return runs, nil
}
