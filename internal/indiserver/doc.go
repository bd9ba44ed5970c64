// Package indiserver supervises the external indiserver process.
//
// The supervisor owns the process handle, the control FIFO, and the
// set of drivers it has commanded to run. Whole-server start/stop
// spawns or terminates the process; per-driver start/stop goes
// through the FIFO without touching the process. After a start the
// supervisor can schedule a best-effort auto-connect sweep that sets
// each running driver's CONNECT switch over the client TCP port.
//
// Lifecycle: stopped -> starting -> running -> stopping -> stopped.
// Concurrent calls are serialized; there are no internal workers
// beyond the process monitor and the one-shot auto-connect timer.
package indiserver
