package indiserver

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/astrohub/indiweb-core/internal/driver"
	"github.com/astrohub/indiweb-core/internal/process"
)

// Readiness and shutdown timing.
const (
	// defaultStartTimeout is how long Start waits for the control
	// FIFO to accept a writer after spawning the server.
	defaultStartTimeout = 10 * time.Second

	// readyPollInterval is how often the FIFO open is retried during
	// the readiness wait.
	readyPollInterval = 100 * time.Millisecond

	// fifoPermissions is the mode for the control FIFO.
	fifoPermissions = 0600
)

// State is the supervisor lifecycle state.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// EventType identifies a lifecycle event emitted by the supervisor.
type EventType string

const (
	EventServerStarted EventType = "server_started"
	EventServerStopped EventType = "server_stopped"
	EventDriverStarted EventType = "driver_started"
	EventDriverStopped EventType = "driver_stopped"
)

// Event describes a supervisor lifecycle change, for broadcast to
// status consumers (websocket hub, metrics recorder).
type Event struct {
	Type  EventType `json:"type"`
	Label string    `json:"label,omitempty"`
	Port  int       `json:"port,omitempty"`
	Time  time.Time `json:"time"`
}

// Config holds supervisor configuration.
type Config struct {
	// Binary is the indiserver executable path or name.
	Binary string

	// FIFOPath is where the control FIFO lives. The supervisor
	// recreates it on each start and owns it exclusively; if another
	// actor writes the same FIFO the running set can drift from the
	// server's true state.
	FIFOPath string

	// ConfigDir is the server's working directory and INDICONFIG
	// location (driver config files land here).
	ConfigDir string

	// MaxClients is passed to indiserver -m.
	MaxClients int

	// StartTimeout bounds the wait for the FIFO to become openable.
	StartTimeout time.Duration

	// GracefulTimeout bounds the SIGTERM-to-SIGKILL window on stop.
	GracefulTimeout time.Duration
}

// Logger defines the logging interface used by the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager supervises the indiserver process: lifecycle state machine,
// control FIFO, and the set of drivers this supervisor has commanded
// to run.
//
// The running set reflects only this supervisor's own directives. It
// is not re-synchronized by querying the server, so it can drift if
// another writer shares the FIFO.
//
// All state transitions and running-set mutations happen under one
// mutex; concurrent callers are serialized.
type Manager struct {
	config Config
	logger Logger

	mu      sync.Mutex
	state   State
	port    int
	proc    *process.Manager
	channel *ControlChannel
	running map[string]driver.Driver

	// epoch invalidates pending auto-connect timers across
	// stop/start cycles.
	epoch     uint64
	connTimer *time.Timer

	onEvent func(Event)
}

// NewManager creates a supervisor. The server is not started.
func NewManager(cfg Config) *Manager {
	if cfg.StartTimeout == 0 {
		cfg.StartTimeout = defaultStartTimeout
	}
	return &Manager{
		config:  cfg,
		logger:  noopLogger{},
		state:   StateStopped,
		running: make(map[string]driver.Driver),
	}
}

// SetLogger sets the logger for the supervisor.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// OnEvent registers a callback invoked on lifecycle events.
// The callback runs synchronously inside supervisor operations and
// must not call back into the Manager.
func (m *Manager) OnEvent(fn func(Event)) {
	m.onEvent = fn
}

// Start spawns indiserver on the given port, waits for the control
// FIFO to accept a writer, then writes a start directive for each
// driver in the given order.
//
// Returns ErrAlreadyRunning if the supervisor is not stopped. Any
// failure before reaching the running state is wrapped in
// ErrStartFailed and the supervisor reverts to stopped, killing a
// partially-spawned process best-effort.
func (m *Manager) Start(port int, drivers []driver.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateStopped {
		return fmt.Errorf("%w: state %s", ErrAlreadyRunning, m.state)
	}
	m.state = StateStarting
	m.epoch++

	if err := m.startLocked(port, drivers); err != nil {
		// Best-effort kill of a partially-spawned process.
		if m.proc != nil {
			if stopErr := m.proc.Stop(); stopErr != nil {
				m.logger.Warn("terminating partially-started indiserver", "error", stopErr)
			}
		}
		m.teardownLocked()
		m.state = StateStopped
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	m.state = StateRunning
	m.logger.Info("indiserver running",
		"port", port, "drivers", len(drivers), "pid", m.proc.PID())
	m.emit(Event{Type: EventServerStarted, Port: port, Time: time.Now()})
	return nil
}

// startLocked performs the spawn/FIFO/directive sequence.
// Caller holds mu and handles cleanup on error.
func (m *Manager) startLocked(port int, drivers []driver.Driver) error {
	if err := m.recreateFIFO(); err != nil {
		return err
	}

	m.proc = process.NewManager(process.Config{
		Name:   "indiserver",
		Binary: m.config.Binary,
		Args: []string{
			"-p", strconv.Itoa(port),
			"-m", strconv.Itoa(m.config.MaxClients),
			"-v",
			"-f", m.config.FIFOPath,
		},
		Env:             []string{"INDICONFIG=" + m.config.ConfigDir},
		WorkDir:         m.config.ConfigDir,
		GracefulTimeout: m.config.GracefulTimeout,
	})
	m.proc.SetLogger(m.logger)

	if err := m.proc.Start(); err != nil {
		return err
	}

	channel, err := m.waitForChannel()
	if err != nil {
		return err
	}
	m.channel = channel
	m.port = port

	for _, d := range drivers {
		if err := m.channel.StartDriver(d); err != nil {
			return fmt.Errorf("starting driver %q: %w", d.Label, err)
		}
		m.running[d.Label] = d
		m.logger.Debug("driver start directive sent", "label", d.Label, "binary", d.Binary)
	}

	return nil
}

// recreateFIFO replaces any stale FIFO at the configured path.
// The supervisor owns the FIFO; indiserver is its reader.
func (m *Manager) recreateFIFO() error {
	if err := os.Remove(m.config.FIFOPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale fifo %s: %w", m.config.FIFOPath, err)
	}
	if err := syscall.Mkfifo(m.config.FIFOPath, fifoPermissions); err != nil {
		return fmt.Errorf("creating fifo %s: %w", m.config.FIFOPath, err)
	}
	return nil
}

// waitForChannel retries the FIFO open until indiserver attaches as
// reader or the start timeout elapses. A write-only non-blocking open
// of a reader-less FIFO fails with ENXIO, so a successful open means
// the server is consuming directives.
func (m *Manager) waitForChannel() (*ControlChannel, error) {
	deadline := time.Now().Add(m.config.StartTimeout)

	for {
		if !m.proc.Alive() {
			if exitErr := m.proc.ExitError(); exitErr != nil {
				return nil, fmt.Errorf("indiserver exited during startup: %w", exitErr)
			}
			return nil, errors.New("indiserver exited during startup")
		}

		channel, err := openControlChannel(m.config.FIFOPath)
		if err == nil {
			return channel, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("control fifo not ready after %v: %w",
				m.config.StartTimeout, err)
		}

		time.Sleep(readyPollInterval)
	}
}

// Stop shuts the server down: closes the control FIFO, terminates the
// process (SIGTERM, then SIGKILL after the grace period), and clears
// the running set. Stopping an already-stopped server is a no-op.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateStopped {
		return nil
	}
	m.state = StateStopping
	m.epoch++
	port := m.port

	var stopErr error
	if m.proc != nil {
		stopErr = m.proc.Stop()
	}
	m.teardownLocked()
	m.state = StateStopped

	if stopErr != nil {
		return fmt.Errorf("stopping indiserver: %w", stopErr)
	}

	m.logger.Info("indiserver stopped", "port", port)
	m.emit(Event{Type: EventServerStopped, Port: port, Time: time.Now()})
	return nil
}

// teardownLocked releases channel/process state and clears the
// running set. Caller holds mu.
func (m *Manager) teardownLocked() {
	if m.connTimer != nil {
		m.connTimer.Stop()
		m.connTimer = nil
	}
	if m.channel != nil {
		if err := m.channel.Close(); err != nil {
			m.logger.Warn("closing control fifo", "error", err)
		}
		m.channel = nil
	}
	m.running = make(map[string]driver.Driver)
	m.port = 0
}

// StartDriver writes a start directive for the driver and records it
// in the running set, replacing any prior entry with the same label.
// Returns ErrNotRunning if the server is not running.
func (m *Manager) StartDriver(d driver.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireRunningLocked(); err != nil {
		return err
	}
	if err := m.channel.StartDriver(d); err != nil {
		return err
	}
	m.running[d.Label] = d

	m.logger.Info("driver started", "label", d.Label, "binary", d.Binary)
	m.emit(Event{Type: EventDriverStarted, Label: d.Label, Port: m.port, Time: time.Now()})
	return nil
}

// StopDriver writes a stop directive for the driver and removes its
// label from the running set. Removal is idempotent: stopping a
// driver that was never recorded is not an error.
// Returns ErrNotRunning if the server is not running.
func (m *Manager) StopDriver(d driver.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireRunningLocked(); err != nil {
		return err
	}
	if err := m.channel.StopDriver(d); err != nil {
		return err
	}
	delete(m.running, d.Label)

	m.logger.Info("driver stopped", "label", d.Label)
	m.emit(Event{Type: EventDriverStopped, Label: d.Label, Port: m.port, Time: time.Now()})
	return nil
}

// RestartDriver stops then starts the driver. If the server dies
// between the two steps the driver stays absent from the running set
// and the second step reports ErrNotRunning; there is no retry.
func (m *Manager) RestartDriver(d driver.Driver) error {
	if err := m.StopDriver(d); err != nil {
		return err
	}
	return m.StartDriver(d)
}

// requireRunningLocked verifies the state machine is in running and
// the process is actually alive. An out-of-band death is surfaced
// here as ErrNotRunning rather than proactively signaled.
func (m *Manager) requireRunningLocked() error {
	if m.state != StateRunning {
		return fmt.Errorf("%w: state %s", ErrNotRunning, m.state)
	}
	if m.proc == nil || !m.proc.Alive() {
		return fmt.Errorf("%w: process died out-of-band", ErrNotRunning)
	}
	return nil
}

// IsRunning reports whether the supervisor is in the running state
// AND the underlying process is still alive. This is a liveness
// probe, not a cached flag.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateRunning && m.proc != nil && m.proc.Alive()
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Port returns the client port the server was started on, or 0.
func (m *Manager) Port() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.port
}

// RunningDrivers returns a snapshot copy of the running set, keyed by
// label. The snapshot reflects this supervisor's own directives only.
func (m *Manager) RunningDrivers() map[string]driver.Driver {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[string]driver.Driver, len(m.running))
	for label, d := range m.running {
		snapshot[label] = d
	}
	return snapshot
}

// Stats returns process statistics for status endpoints.
func (m *Manager) Stats() process.Stats {
	m.mu.Lock()
	proc := m.proc
	m.mu.Unlock()

	if proc == nil {
		return process.Stats{Name: "indiserver", Status: process.StatusStopped}
	}
	return proc.Stats()
}

// emit invokes the event callback if registered. Caller holds mu;
// the callback contract forbids re-entry.
func (m *Manager) emit(ev Event) {
	if m.onEvent != nil {
		m.onEvent(ev)
	}
}
