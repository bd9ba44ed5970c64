package api

import (
	"net/http"
	"os"
	"runtime"
)

// handleInfoVersion returns the service version.
func (s *Server) handleInfoVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// handleInfoArch returns the host architecture.
func (s *Server) handleInfoArch(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"arch": runtime.GOARCH})
}

// handleInfoHostname returns the host name.
func (s *Server) handleInfoHostname(w http.ResponseWriter, _ *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		writeInternalError(w, "failed to read hostname")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"hostname": hostname})
}
