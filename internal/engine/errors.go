// internal/engine/errors.go
package engine

import "errors"

var (
	// ErrAttemptInProgress rejects a second attempt while one holds the browser.
	ErrAttemptInProgress = errors.New("another application attempt is in progress")
	// ErrUnsupportedDomain is returned for jobs hosted outside LinkedIn.
	ErrUnsupportedDomain = errors.New("assistant currently only supports LinkedIn Easy Apply jobs")
	// ErrSessionNotRunning is returned when no browser has been launched.
	ErrSessionNotRunning = errors.New("assistant browser is not running")
	// ErrStopRequested marks an attempt aborted through RequestStop or Stop.
	ErrStopRequested = errors.New("automation stopped by user")
	// ErrIllegalTransition guards the state machine's transition table.
	ErrIllegalTransition = errors.New("illegal state transition")
)
