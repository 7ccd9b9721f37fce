// Package limiter bounds the number of concurrently running external
// processes during a build.
package limiter

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Limiter is a FIFO bounded-concurrency gate. Callers above the bound wait in
// arrival order until a slot frees up; a failing body still releases its slot.
type Limiter struct {
	sem *semaphore.Weighted
	max int
}

// New creates a limiter with the given maximum concurrency. A max below 1
// defaults to the number of available CPUs.
func New(max int) *Limiter {
	if max < 1 {
		max = runtime.NumCPU()
	}
	return &Limiter{
		sem: semaphore.NewWeighted(int64(max)),
		max: max,
	}
}

// Max returns the configured concurrency bound.
func (l *Limiter) Max() int { return l.max }

// Do runs fn once a slot is available, releasing the slot when fn returns.
// Waiters are served in FIFO order. The wait is aborted when ctx is done.
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire execution slot: %w", err)
	}
	defer l.sem.Release(1)

	return fn()
}
