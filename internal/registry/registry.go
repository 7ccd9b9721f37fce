// Package registry holds the process-wide table of task definitions.
//
// The registry is populated entirely before a build starts and is treated as
// read-only while the engine is executing.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/EdgeApp/libforge/internal/model"
)

// Registry maps task names to task definitions and enforces name uniqueness.
type Registry struct {
	tasks map[string]model.Task
	mu    sync.RWMutex
}

// New creates an empty task registry.
func New() *Registry {
	return &Registry{tasks: map[string]model.Task{}}
}

// Register stores a task definition. Registering a second task with the same
// name is a configuration error.
func (r *Registry) Register(t model.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.Name]; ok {
		return fmt.Errorf("task %q: %w", t.Name, model.ErrAlreadyExists)
	}
	r.tasks[t.Name] = t

	return nil
}

// Lookup returns a task definition by name.
func (r *Registry) Lookup(name string) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[name]
	if !ok {
		return nil, fmt.Errorf("task %q: %w", name, model.ErrNotFound)
	}

	// Return a copy.
	taskCopy := t
	return &taskCopy, nil
}

// List returns all registered tasks sorted by name.
func (r *Registry) List() []model.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]model.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Name < tasks[j].Name })

	return tasks
}
