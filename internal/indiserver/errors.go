package indiserver

import "errors"

var (
	// ErrAlreadyRunning indicates Start was called while the server
	// is not stopped. The running set is left unchanged.
	ErrAlreadyRunning = errors.New("indiserver already running")

	// ErrNotRunning indicates a driver operation was attempted while
	// the server is not running (including out-of-band death).
	ErrNotRunning = errors.New("indiserver not running")

	// ErrStartFailed indicates the server process or its control FIFO
	// failed to come up. The supervisor reverts to stopped; it is
	// never left half-initialized.
	ErrStartFailed = errors.New("indiserver start failed")

	// ErrChannelUnavailable indicates the control FIFO could not be
	// opened for writing.
	ErrChannelUnavailable = errors.New("control channel unavailable")
)
