package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/astrohub/indiweb-core/internal/driver"
	"github.com/astrohub/indiweb-core/internal/indiserver"
)

// handleListDrivers returns the full driver catalog sorted by label.
func (s *Server) handleListDrivers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.All())
}

// handleDriverGroups returns the catalog grouped by family, the shape
// driver-selection UIs render.
func (s *Server) handleDriverGroups(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.GroupsByFamily())
}

// handleStartDriver starts one driver by catalog label on the running
// server.
func (s *Server) handleStartDriver(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")

	d, err := s.registry.ByLabel(label)
	if err != nil {
		writeNotFound(w, "driver not found: "+label)
		return
	}

	if err := s.supervisor.StartDriver(d); err != nil {
		s.writeSupervisorError(w, "starting driver "+label, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStopDriver stops one driver by catalog label.
func (s *Server) handleStopDriver(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")

	d, err := s.registry.ByLabel(label)
	if err != nil {
		writeNotFound(w, "driver not found: "+label)
		return
	}

	if err := s.supervisor.StopDriver(d); err != nil {
		s.writeSupervisorError(w, "stopping driver "+label, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRestartDriver stops then starts one driver by catalog label.
func (s *Server) handleRestartDriver(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")

	d, err := s.registry.ByLabel(label)
	if err != nil {
		writeNotFound(w, "driver not found: "+label)
		return
	}

	if err := s.supervisor.RestartDriver(d); err != nil {
		s.writeSupervisorError(w, "restarting driver "+label, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStartRemoteDriver connects the running server to a remote
// driver endpoint (host@port spec).
func (s *Server) handleStartRemoteDriver(w http.ResponseWriter, r *http.Request) {
	spec := chi.URLParam(r, "spec")

	if err := s.supervisor.StartDriver(driver.NewRemote(spec)); err != nil {
		s.writeSupervisorError(w, "starting remote driver "+spec, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStopRemoteDriver disconnects a remote driver endpoint.
func (s *Server) handleStopRemoteDriver(w http.ResponseWriter, r *http.Request) {
	spec := chi.URLParam(r, "spec")

	if err := s.supervisor.StopDriver(driver.NewRemote(spec)); err != nil {
		s.writeSupervisorError(w, "stopping remote driver "+spec, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeSupervisorError maps supervisor errors to HTTP responses:
// lifecycle-state violations are conflicts, everything else is a 500.
func (s *Server) writeSupervisorError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, indiserver.ErrNotRunning) || errors.Is(err, indiserver.ErrAlreadyRunning) {
		writeConflict(w, err.Error())
		return
	}
	s.logger.Error(op, "error", err)
	writeInternalError(w, op+": "+err.Error())
}
