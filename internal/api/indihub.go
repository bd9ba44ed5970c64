package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/astrohub/indiweb-core/internal/agent"
)

// IndihubStatus is the payload of GET /api/indihub/status.
type IndihubStatus struct {
	Mode    string `json:"mode"`
	Profile string `json:"profile,omitempty"`
	Running bool   `json:"running"`
}

// handleIndihubStatus reports the relay agent's mode and profile.
func (s *Server) handleIndihubStatus(w http.ResponseWriter, _ *http.Request) {
	if s.agent == nil {
		writeUnavailable(w, "indihub agent is not configured")
		return
	}

	writeJSON(w, http.StatusOK, IndihubStatus{
		Mode:    s.agent.Mode(),
		Profile: s.agent.Profile(),
		Running: s.agent.IsRunning(),
	})
}

// handleIndihubMode switches the relay agent to the requested mode.
// The agent shares the active profile's equipment, so every mode other
// than off requires a running device server.
func (s *Server) handleIndihubMode(w http.ResponseWriter, r *http.Request) {
	if s.agent == nil {
		writeUnavailable(w, "indihub agent is not configured")
		return
	}

	mode := chi.URLParam(r, "mode")
	profileName := ""

	if mode != agent.ModeOff {
		if !s.supervisor.IsRunning() {
			writeConflict(w, "device server must be running to enable indihub")
			return
		}
		profileName = s.ActiveProfile()
	}

	if err := s.agent.SetMode(mode, profileName); err != nil {
		if errors.Is(err, agent.ErrInvalidMode) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("switching indihub mode", "mode", mode, "error", err)
		writeInternalError(w, "failed to switch indihub mode")
		return
	}

	writeJSON(w, http.StatusOK, IndihubStatus{
		Mode:    s.agent.Mode(),
		Profile: s.agent.Profile(),
		Running: s.agent.IsRunning(),
	})
}
