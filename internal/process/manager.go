package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status represents the current state of a managed process.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusExited   Status = "exited"
)

// outputBufferSize is the buffer size for capturing subprocess stdout/stderr.
const outputBufferSize = 4096

// defaultGracefulTimeout is how long Stop waits before SIGKILL.
const defaultGracefulTimeout = 10 * time.Second

// Config holds configuration for a managed subprocess.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format).
	// Appended to the parent environment.
	Env []string

	// WorkDir is the working directory for the process.
	// If empty, inherits from parent process.
	WorkDir string

	// GracefulTimeout is how long to wait for graceful shutdown before SIGKILL.
	GracefulTimeout time.Duration

	// OnExit is called from the monitor goroutine when the process
	// exits for any reason. err is nil on clean exit.
	OnExit func(err error)
}

// Logger defines the logging interface for the process manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager owns the lifecycle of a single subprocess.
//
// The manager never restarts the process on its own. If the process
// dies out-of-band, the death is recorded and surfaced by Alive() on
// the next call; the decision to restart belongs to the caller.
type Manager struct {
	config Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	status        Status
	exitErr       error
	startTime     time.Time
	stopRequested bool

	// done is closed by the monitor goroutine once the process has
	// been reaped. Recreated on each Start.
	done chan struct{}
}

// NewManager creates a new process manager with the given configuration.
func NewManager(cfg Config) *Manager {
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = defaultGracefulTimeout
	}
	return &Manager{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Start launches the subprocess and begins monitoring it.
// Returns an error if the process fails to spawn or if it is
// already running.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.status == StatusRunning || m.status == StatusStarting {
		m.mu.Unlock()
		return fmt.Errorf("process %s is already running", m.config.Name)
	}
	m.status = StatusStarting
	m.stopRequested = false
	m.exitErr = nil
	m.mu.Unlock()

	if err := m.spawn(); err != nil {
		m.mu.Lock()
		m.status = StatusStopped
		m.mu.Unlock()
		return err
	}

	return nil
}

// spawn starts the subprocess and its monitor goroutine.
func (m *Manager) spawn() error {
	m.logger.Info("starting process",
		"name", m.config.Name,
		"binary", m.config.Binary,
		"args", m.config.Args,
	)

	cmd := exec.Command(m.config.Binary, m.config.Args...) //nolint:gosec // Binary path comes from validated config

	// New process group so Stop can signal the server and all its
	// driver subprocesses together.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if m.config.Env != nil {
		cmd.Env = append(os.Environ(), m.config.Env...)
	}
	if m.config.WorkDir != "" {
		cmd.Dir = m.config.WorkDir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", m.config.Name, err)
	}

	done := make(chan struct{})

	m.mu.Lock()
	m.cmd = cmd
	m.status = StatusRunning
	m.startTime = time.Now()
	m.done = done
	m.mu.Unlock()

	go m.captureOutput("stdout", stdout)
	go m.captureOutput("stderr", stderr)
	go m.monitor(cmd, done)

	m.logger.Info("process started",
		"name", m.config.Name,
		"pid", cmd.Process.Pid,
	)

	return nil
}

// captureOutput reads from the given reader and logs each chunk.
func (m *Manager) captureOutput(stream string, r io.Reader) {
	buf := make([]byte, outputBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			m.logger.Debug("process output",
				"name", m.config.Name,
				"stream", stream,
				"output", string(buf[:n]),
			)
		}
		if err != nil {
			return
		}
	}
}

// monitor reaps the process and records its exit.
func (m *Manager) monitor(cmd *exec.Cmd, done chan struct{}) {
	defer close(done)

	err := cmd.Wait()

	m.mu.Lock()
	stopRequested := m.stopRequested
	m.exitErr = err
	if stopRequested {
		m.status = StatusStopped
	} else {
		m.status = StatusExited
	}
	m.mu.Unlock()

	if stopRequested {
		m.logger.Info("process stopped as requested", "name", m.config.Name)
	} else {
		m.logger.Warn("process exited out-of-band",
			"name", m.config.Name,
			"error", err,
		)
	}

	if m.config.OnExit != nil {
		m.config.OnExit(err)
	}
}

// Stop gracefully stops the subprocess.
// It sends SIGTERM to the process group and waits for exit, then
// SIGKILL after the graceful timeout. Calling Stop when the process
// is not running is a no-op.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.status != StatusRunning && m.status != StatusStarting {
		m.mu.Unlock()
		return nil
	}
	m.stopRequested = true
	cmd := m.cmd
	done := m.done
	m.mu.Unlock()

	if cmd == nil || cmd.Process == nil || done == nil {
		return nil
	}

	pid := cmd.Process.Pid
	m.logger.Info("stopping process", "name", m.config.Name, "pid", pid)

	// Negative PID signals the whole process group (Setpgid above).
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		if !errors.Is(err, syscall.ESRCH) {
			m.logger.Warn("failed to send SIGTERM to process group",
				"name", m.config.Name, "error", err)
		}
	}

	select {
	case <-done:
		m.logger.Info("process stopped gracefully", "name", m.config.Name)
		return nil
	case <-time.After(m.config.GracefulTimeout):
		m.logger.Warn("graceful shutdown timeout, sending SIGKILL",
			"name", m.config.Name,
			"timeout", m.config.GracefulTimeout,
		)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		if !errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("killing process group %s: %w", m.config.Name, err)
		}
	}

	<-done
	m.logger.Info("process killed", "name", m.config.Name)

	return nil
}

// Status returns the current status of the managed process.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Alive reports whether the process is actually running right now.
// This is a liveness probe (signal 0), not a cached flag: it returns
// false once the process has died even if Stop was never called.
func (m *Manager) Alive() bool {
	m.mu.RLock()
	cmd := m.cmd
	status := m.status
	m.mu.RUnlock()

	if status != StatusRunning || cmd == nil || cmd.Process == nil {
		return false
	}

	// Signal 0 performs permission/existence checks without
	// delivering a signal.
	return syscall.Kill(cmd.Process.Pid, 0) == nil
}

// ExitError returns the error recorded when the process last exited,
// or nil if it exited cleanly or has not exited.
func (m *Manager) ExitError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.exitErr
}

// Uptime returns how long the process has been running.
// Returns 0 if the process is not running.
func (m *Manager) Uptime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status != StatusRunning {
		return 0
	}
	return time.Since(m.startTime)
}

// PID returns the process ID, or 0 if no process has been started.
func (m *Manager) PID() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cmd != nil && m.cmd.Process != nil {
		return m.cmd.Process.Pid
	}
	return 0
}

// Wait blocks until the monitor goroutine has reaped the process.
// Returns immediately if no process has been started.
func (m *Manager) Wait() {
	m.mu.RLock()
	done := m.done
	m.mu.RUnlock()

	if done == nil {
		return
	}
	<-done
}

// Stats describes the managed process for status endpoints.
type Stats struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	PID       int           `json:"pid,omitempty"`
	Uptime    time.Duration `json:"uptime,omitempty"`
	LastError string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the process.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Name:   m.config.Name,
		Status: m.status,
	}

	if m.cmd != nil && m.cmd.Process != nil {
		stats.PID = m.cmd.Process.Pid
	}
	if m.status == StatusRunning {
		stats.Uptime = time.Since(m.startTime)
	}
	if m.exitErr != nil {
		stats.LastError = m.exitErr.Error()
	}

	return stats
}
