package model

import "time"

// StatusRecord is the persisted outcome of a cacheable task.
//
// A record is authoritative only when its CacheTag equals the task's current
// tag and Success is true. Anything else (mismatch, missing file, parse error)
// means the task is dirty and must re-run.
type StatusRecord struct {
	// CacheTag is the tag of the task definition that produced this record.
	CacheTag string
	// LastRun is the time of the last attempted run.
	LastRun time.Time
	// Success is whether that run completed successfully.
	Success bool
}
