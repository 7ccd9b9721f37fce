package storage

import (
	"context"

	"github.com/EdgeApp/libforge/internal/model"
)

// StatusRepository is the interface for per-task build status persistence.
type StatusRepository interface {
	// LoadStatus returns the stored record for a task, or nil when no usable
	// record exists. Unreadable or malformed records are reported as absent,
	// never as an error.
	LoadStatus(ctx context.Context, taskName string) (*model.StatusRecord, error)
	// SaveStatus persists the record for a task.
	SaveStatus(ctx context.Context, taskName string, record model.StatusRecord) error
	// DeleteStatus removes the stored record for a task, if any.
	DeleteStatus(ctx context.Context, taskName string) error
	// ClearStatuses removes every stored record.
	ClearStatuses(ctx context.Context) error
}

// RunRepository is the interface for the build-run history journal.
type RunRepository interface {
	CreateRun(ctx context.Context, r model.BuildRun) error
	FinishRun(ctx context.Context, r model.BuildRun) error
	ListRuns(ctx context.Context, limit int) ([]model.BuildRun, error)
}
