// Package fsjson stores per-task build statuses as one JSON document per
// cacheable task under a status directory.
package fsjson

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/EdgeApp/libforge/internal/conventions"
	"github.com/EdgeApp/libforge/internal/log"
	"github.com/EdgeApp/libforge/internal/model"
)

// StatusRepositoryConfig is the configuration for the JSON status repository.
type StatusRepositoryConfig struct {
	// StatusDir is the directory holding the status documents.
	StatusDir string
	Logger    log.Logger
}

func (c *StatusRepositoryConfig) defaults() error {
	if c.StatusDir == "" {
		return fmt.Errorf("status directory is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.FSJSON"})
	return nil
}

// StatusRepository is a filesystem implementation of storage.StatusRepository.
type StatusRepository struct {
	dir    string
	logger log.Logger
}

// NewStatusRepository creates a new filesystem status repository.
func NewStatusRepository(cfg StatusRepositoryConfig) (*StatusRepository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &StatusRepository{
		dir:    cfg.StatusDir,
		logger: cfg.Logger,
	}, nil
}

// statusDocument is the on-disk JSON shape of a status record.
type statusDocument struct {
	CacheTag string    `json:"cache_tag"`
	LastRun  time.Time `json:"last_run"`
	Success  bool      `json:"success"`
}

// LoadStatus returns the stored record for a task, treating any read or parse
// failure as "no usable record" so a corrupted cache only causes a rebuild.
func (r *StatusRepository) LoadStatus(ctx context.Context, taskName string) (*model.StatusRecord, error) {
	data, err := os.ReadFile(r.statusPath(taskName))
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Debugf("Unreadable status for task %q, treating as absent: %s", taskName, err)
		}
		return nil, nil
	}

	var doc statusDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		r.logger.Warningf("Malformed status for task %q, treating as absent: %s", taskName, err)
		return nil, nil
	}

	return &model.StatusRecord{
		CacheTag: doc.CacheTag,
		LastRun:  doc.LastRun,
		Success:  doc.Success,
	}, nil
}

// SaveStatus persists the record for a task.
func (r *StatusRepository) SaveStatus(ctx context.Context, taskName string, record model.StatusRecord) error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("could not create status directory: %w", err)
	}

	doc := statusDocument{
		CacheTag: record.CacheTag,
		LastRun:  record.LastRun,
		Success:  record.Success,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal status: %w", err)
	}

	if err := os.WriteFile(r.statusPath(taskName), data, 0644); err != nil {
		return fmt.Errorf("could not write status: %w", err)
	}

	r.logger.Debugf("Saved status for task %q (tag: %q, success: %t)", taskName, record.CacheTag, record.Success)
	return nil
}

// DeleteStatus removes the stored record for a task, if any.
func (r *StatusRepository) DeleteStatus(ctx context.Context, taskName string) error {
	err := os.Remove(r.statusPath(taskName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not delete status: %w", err)
	}
	return nil
}

// ClearStatuses removes every stored record.
func (r *StatusRepository) ClearStatuses(ctx context.Context) error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("could not read status directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		if err := os.Remove(filepath.Join(r.dir, e.Name())); err != nil {
			return fmt.Errorf("could not delete status %q: %w", e.Name(), err)
		}
	}

	return nil
}

// statusPath derives the deterministic document path for a task name.
func (r *StatusRepository) statusPath(taskName string) string {
	return filepath.Join(r.dir, conventions.SafeTaskFileName(taskName)+".json")
}
