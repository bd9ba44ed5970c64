// Package process manages external subprocess lifecycles.
//
// It handles spawning, output capture, and graceful shutdown
// (SIGTERM to the process group, SIGKILL after a grace period).
// The manager deliberately does not restart a process that dies
// out-of-band: death is recorded and surfaced through Alive() on
// the next call, and the restart decision belongs to the caller.
package process
