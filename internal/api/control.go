package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/astrohub/indiweb-core/internal/agent"
	"github.com/astrohub/indiweb-core/internal/driver"
	"github.com/astrohub/indiweb-core/internal/profile"
)

// ServerStatus is the payload of GET /api/server/status.
type ServerStatus struct {
	Running       bool    `json:"running"`
	ActiveProfile string  `json:"active_profile,omitempty"`
	Port          int     `json:"port,omitempty"`
	PID           int     `json:"pid,omitempty"`
	UptimeSeconds float64 `json:"uptime_seconds,omitempty"`
}

// handleServerStatus reports whether the device server is running and
// which profile it was started with.
func (s *Server) handleServerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.serverStatus())
}

func (s *Server) serverStatus() ServerStatus {
	status := ServerStatus{Running: s.supervisor.IsRunning()}
	if !status.Running {
		return status
	}

	stats := s.supervisor.Stats()
	status.ActiveProfile = s.ActiveProfile()
	status.Port = s.supervisor.Port()
	status.PID = stats.PID
	status.UptimeSeconds = stats.Uptime.Seconds()
	return status
}

// handleServerDrivers returns the drivers the supervisor has been told
// to run, sorted by label.
func (s *Server) handleServerDrivers(w http.ResponseWriter, _ *http.Request) {
	running := s.supervisor.RunningDrivers()

	drivers := make([]driver.Driver, 0, len(running))
	for _, d := range running {
		drivers = append(drivers, d)
	}
	sort.Slice(drivers, func(i, j int) bool {
		return drivers[i].Label < drivers[j].Label
	})

	writeJSON(w, http.StatusOK, drivers)
}

// handleServerStart starts the device server with the named profile's
// drivers. A running server is stopped first, so starting a different
// profile is a switch, not an error.
func (s *Server) handleServerStart(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "profile")

	if err := s.StartProfile(r.Context(), name); err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			writeNotFound(w, "profile not found: "+name)
			return
		}
		if errors.Is(err, driver.ErrNotFound) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("starting server", "profile", name, "error", err)
		writeInternalError(w, "failed to start server: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.serverStatus())
}

// handleServerStop stops the device server. Stopping an already
// stopped server succeeds.
func (s *Server) handleServerStop(w http.ResponseWriter, _ *http.Request) {
	if err := s.StopServer(); err != nil {
		s.logger.Error("stopping server", "error", err)
		writeInternalError(w, "failed to stop server: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.serverStatus())
}

// handleServerAutoConnect triggers an immediate CONNECT sweep over the
// running drivers.
func (s *Server) handleServerAutoConnect(w http.ResponseWriter, _ *http.Request) {
	if !s.supervisor.IsRunning() {
		writeConflict(w, "server is not running")
		return
	}
	s.supervisor.ScheduleAutoConnect(0)
	w.WriteHeader(http.StatusNoContent)
}

// StartProfile resolves the named profile's driver list against the
// registry and starts the device server with it. Any running server is
// stopped first. When the profile requests auto-connect, a deferred
// CONNECT sweep is scheduled after the configured delay.
func (s *Server) StartProfile(ctx context.Context, name string) error {
	p, err := s.profiles.GetProfile(ctx, name)
	if err != nil {
		return err
	}

	labels, err := s.profiles.GetProfileDriverLabels(ctx, name)
	if err != nil {
		return fmt.Errorf("loading driver labels: %w", err)
	}
	remote, err := s.profiles.GetProfileRemoteDrivers(ctx, name)
	if err != nil {
		return fmt.Errorf("loading remote drivers: %w", err)
	}

	drivers := make([]driver.Driver, 0, len(labels)+len(remote))
	for _, label := range labels {
		d, err := s.registry.ByLabel(label)
		if err != nil {
			return fmt.Errorf("profile %q: %w", name, err)
		}
		drivers = append(drivers, d)
	}
	for _, spec := range remote {
		drivers = append(drivers, driver.NewRemote(spec))
	}

	if s.supervisor.IsRunning() {
		if err := s.StopServer(); err != nil {
			return fmt.Errorf("stopping previous server: %w", err)
		}
	}

	port := p.Port
	if port == 0 {
		port = s.indiCfg.Port
	}
	if err := s.supervisor.Start(port, drivers); err != nil {
		return err
	}
	s.setActiveProfile(name)

	if p.AutoConnect {
		delay := s.indiCfg.AutoConnectDelay
		if delay == 0 {
			delay = 3 * time.Second
		}
		s.supervisor.ScheduleAutoConnect(delay)
	}

	s.logger.Info("profile started", "profile", name, "port", port, "drivers", len(drivers))
	return nil
}

// StopServer stops the device server and any running relay agent, and
// clears the active profile.
func (s *Server) StopServer() error {
	if s.agent != nil && s.agent.IsRunning() {
		if err := s.agent.SetMode(agent.ModeOff, ""); err != nil {
			s.logger.Warn("stopping relay agent", "error", err)
		}
	}

	if err := s.supervisor.Stop(); err != nil {
		return err
	}
	s.setActiveProfile("")
	return nil
}

// Autostart starts the first profile flagged for autostart, if any.
// Called once on service boot.
func (s *Server) Autostart(ctx context.Context) error {
	profiles, err := s.profiles.ListProfiles(ctx)
	if err != nil {
		return fmt.Errorf("listing profiles for autostart: %w", err)
	}

	for _, p := range profiles {
		if !p.AutoStart {
			continue
		}
		s.logger.Info("autostarting profile", "profile", p.Name)
		return s.StartProfile(ctx, p.Name)
	}
	return nil
}
