// Package api provides the HTTP REST API and WebSocket event feed for
// the INDI web manager.
//
// It exposes profile management, device server control, driver catalog
// queries, and system endpoints to astronomy clients (KStars/Ekos, web
// UIs, scripts).
//
// The server follows the same lifecycle pattern as other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/astrohub/indiweb-core/internal/driver"
	"github.com/astrohub/indiweb-core/internal/indiserver"
	"github.com/astrohub/indiweb-core/internal/infrastructure/config"
	"github.com/astrohub/indiweb-core/internal/infrastructure/logging"
	"github.com/astrohub/indiweb-core/internal/process"
	"github.com/astrohub/indiweb-core/internal/profile"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ServerController is the device server supervisor surface the API
// drives. Satisfied by *indiserver.Manager; narrowed to an interface so
// handlers can be tested against a fake.
type ServerController interface {
	Start(port int, drivers []driver.Driver) error
	Stop() error
	StartDriver(d driver.Driver) error
	StopDriver(d driver.Driver) error
	RestartDriver(d driver.Driver) error
	ScheduleAutoConnect(delay time.Duration)
	IsRunning() bool
	Port() int
	RunningDrivers() map[string]driver.Driver
	Stats() process.Stats
}

// AgentController is the INDIHub agent surface the API drives.
// Satisfied by *agent.Manager.
type AgentController interface {
	SetMode(mode, profileName string) error
	Mode() string
	Profile() string
	IsRunning() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.WebConfig
	WS         config.WebSocketConfig
	INDI       config.INDIConfig
	System     config.SystemConfig
	Logger     *logging.Logger
	Registry   *driver.Registry
	Supervisor ServerController
	Agent      AgentController // optional; indihub endpoints 503 without it
	Profiles   profile.Repository
	Version    string
}

// Server is the HTTP API server for the INDI web manager.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub,
// and owns the profile-start orchestration (resolving a profile's
// driver labels against the registry before handing them to the
// supervisor).
type Server struct {
	cfg        config.WebConfig
	wsCfg      config.WebSocketConfig
	indiCfg    config.INDIConfig
	sysCfg     config.SystemConfig
	logger     *logging.Logger
	registry   *driver.Registry
	supervisor ServerController
	agent      AgentController
	profiles   profile.Repository
	version    string

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc

	// activeProfile is the profile the running server was started
	// with; cleared on stop.
	activeMu      sync.Mutex
	activeProfile string
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("driver registry is required")
	}
	if deps.Supervisor == nil {
		return nil, fmt.Errorf("server supervisor is required")
	}
	if deps.Profiles == nil {
		return nil, fmt.Errorf("profile repository is required")
	}

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		indiCfg:    deps.INDI,
		sysCfg:     deps.System,
		logger:     deps.Logger,
		registry:   deps.Registry,
		supervisor: deps.Supervisor,
		agent:      deps.Agent,
		profiles:   deps.Profiles,
		version:    deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, and launches the
// HTTP listener in a background goroutine. The server can be stopped
// with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// BroadcastEvent relays a supervisor lifecycle event to connected
// WebSocket clients. Wired as the supervisor's OnEvent callback.
func (s *Server) BroadcastEvent(ev indiserver.Event) {
	if s.hub != nil {
		s.hub.Broadcast(string(ev.Type), ev)
	}
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

// ActiveProfile returns the name of the profile the running device
// server was started with, or "" when stopped.
func (s *Server) ActiveProfile() string {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	return s.activeProfile
}

func (s *Server) setActiveProfile(name string) {
	s.activeMu.Lock()
	s.activeProfile = name
	s.activeMu.Unlock()
}
