package sim

import "errors"

var (
	ErrSchedulerRunning = errors.New("scheduler already running")
	ErrRendererPanic    = errors.New("renderer panicked")
)
