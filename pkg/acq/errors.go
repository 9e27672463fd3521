package acq

import "errors"

var (
	// ErrNotArmed indicates an event was delivered to a session not running.
	ErrNotArmed = errors.New("session not armed")
	// ErrAlreadyRunning indicates Run was called twice.
	ErrAlreadyRunning = errors.New("session already running")
)
