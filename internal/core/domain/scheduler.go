package domain

import "time"

// Task identifiers for background maintenance.
const (
	// TaskIDIntegrityCheck is the periodic index/metadata parity check.
	TaskIDIntegrityCheck = "integrity-check"
)

// ScheduledTask is a persisted background task definition.
type ScheduledTask struct {
	// ID is the stable task identifier.
	ID string

	// Name is the human-readable task name.
	Name string

	// Interval between runs.
	Interval time.Duration

	// Enabled turns the task on.
	Enabled bool

	// LastRun is when the task last executed.
	LastRun time.Time

	// NextRun is when the task is next due.
	NextRun time.Time

	// LastStatus is "ok" or "error" after the last run.
	LastStatus string

	// LastError holds the failure message of the last run, if any.
	LastError string
}

// Due reports whether the task should run at the given time.
func (t *ScheduledTask) Due(now time.Time) bool {
	return t.Enabled && !t.NextRun.After(now)
}
