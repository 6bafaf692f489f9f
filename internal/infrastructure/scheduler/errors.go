package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when triggering a stopped job
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrRunAlreadyQueued is returned when a manual trigger is already waiting
	ErrRunAlreadyQueued = errors.New("reconciliation run already queued")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
