package agent

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/astrohub/indiweb-core/internal/process"
)

// Agent operating modes. ModeOff stops the agent.
const (
	ModeOff     = "off"
	ModeSolo    = "solo"
	ModeShare   = "share"
	ModeRobotic = "robotic"
)

// ErrInvalidMode indicates an unknown agent mode was requested.
var ErrInvalidMode = errors.New("invalid agent mode")

// Config holds agent supervisor configuration.
type Config struct {
	// Binary is the indihub-agent executable path or name.
	Binary string

	// INDIServerManagerURL is passed to the agent so it can reach
	// this service's HTTP API.
	INDIServerManagerURL string

	// GracefulTimeout bounds the SIGTERM-to-SIGKILL window on stop.
	GracefulTimeout time.Duration
}

// Logger defines the logging interface used by the agent manager.
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

// Manager supervises the optional indihub-agent sidecar process,
// which relays the local device server to the INDIHUB network in one
// of three sharing modes.
type Manager struct {
	config Config
	logger Logger

	mu      sync.Mutex
	proc    *process.Manager
	mode    string
	profile string
}

// NewManager creates an agent supervisor. The agent is not started.
func NewManager(cfg Config) *Manager {
	return &Manager{
		config: cfg,
		logger: noopLogger{},
		mode:   ModeOff,
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// ValidMode reports whether mode is a recognised agent mode.
func ValidMode(mode string) bool {
	switch mode {
	case ModeOff, ModeSolo, ModeShare, ModeRobotic:
		return true
	}
	return false
}

// SetMode switches the agent to the given mode for the named profile.
// Any running agent is stopped first; ModeOff leaves it stopped.
func (m *Manager) SetMode(mode, profileName string) error {
	if !ValidMode(mode) {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.proc != nil {
		if err := m.proc.Stop(); err != nil {
			m.logger.Warn("stopping indihub-agent", "error", err)
		}
		m.proc = nil
	}
	m.mode = ModeOff
	m.profile = ""

	if mode == ModeOff {
		m.logger.Info("indihub-agent off")
		return nil
	}

	proc := process.NewManager(process.Config{
		Name:   "indihub-agent",
		Binary: m.config.Binary,
		Args: []string{
			"-indi-server-manager=" + m.config.INDIServerManagerURL,
			"-indi-profile=" + profileName,
			"-mode=" + mode,
		},
		GracefulTimeout: m.config.GracefulTimeout,
	})
	proc.SetLogger(m.logger)

	if err := proc.Start(); err != nil {
		return fmt.Errorf("starting indihub-agent: %w", err)
	}

	m.proc = proc
	m.mode = mode
	m.profile = profileName

	m.logger.Info("indihub-agent started", "mode", mode, "profile", profileName)
	return nil
}

// Stop stops the agent if running. Idempotent.
func (m *Manager) Stop() error {
	return m.SetMode(ModeOff, "")
}

// Mode returns the current agent mode. Reports ModeOff when the
// agent process has died out-of-band.
func (m *Manager) Mode() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode != ModeOff && (m.proc == nil || !m.proc.Alive()) {
		return ModeOff
	}
	return m.mode
}

// Profile returns the profile the agent was started with, or "".
func (m *Manager) Profile() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile
}

// IsRunning reports whether the agent process is alive.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.proc != nil && m.proc.Alive()
}
