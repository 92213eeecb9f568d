package scanner

import "errors"

var (
	// ErrScanInProgress is returned when a trigger races an in-flight scan.
	ErrScanInProgress = errors.New("scanner: scan already in progress")

	// ErrAlreadyRunning is returned when starting a running periodic loop.
	ErrAlreadyRunning = errors.New("scanner: already running")

	// ErrNotRunning is returned when stopping a stopped periodic loop.
	ErrNotRunning = errors.New("scanner: not running")
)
