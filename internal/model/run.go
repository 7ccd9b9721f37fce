package model

import "time"

// BuildRunStatus represents the outcome of a whole build run.
type BuildRunStatus string

const (
	// BuildRunStatusRunning indicates the run is still in progress.
	BuildRunStatusRunning BuildRunStatus = "running"
	// BuildRunStatusSucceeded indicates every reachable task succeeded or was
	// confirmed clean.
	BuildRunStatusSucceeded BuildRunStatus = "succeeded"
	// BuildRunStatusFailed indicates at least one reachable task failed.
	BuildRunStatusFailed BuildRunStatus = "failed"
)

// BuildRun is one journaled invocation of the build tool.
type BuildRun struct {
	ID         string
	RootTask   string
	Status     BuildRunStatus
	FailedTask string
	StartedAt  time.Time
	FinishedAt *time.Time
}
