package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
//
// The route layout mirrors the surface astronomy clients already speak
// (KStars/Ekos talks to /api/profiles and /api/server directly), so
// there is no version prefix.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		// Profile store
		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", s.handleListProfiles)
			r.Post("/custom", s.handleSaveCustomDriver)

			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleGetProfile)
				r.Post("/", s.handleCreateProfile)
				r.Put("/", s.handleUpdateProfile)
				r.Delete("/", s.handleDeleteProfile)
				r.Get("/labels", s.handleGetProfileLabels)
				r.Get("/remote", s.handleGetProfileRemote)
				r.Post("/drivers", s.handleSetProfileDrivers)
			})
		})

		// Device server lifecycle
		r.Route("/server", func(r chi.Router) {
			r.Get("/status", s.handleServerStatus)
			r.Get("/drivers", s.handleServerDrivers)
			r.Post("/start/{profile}", s.handleServerStart)
			r.Post("/stop", s.handleServerStop)
			r.Post("/autoconnect", s.handleServerAutoConnect)
		})

		// Driver catalog and per-driver control
		r.Route("/drivers", func(r chi.Router) {
			r.Get("/", s.handleListDrivers)
			r.Get("/groups", s.handleDriverGroups)
			r.Post("/start/{label}", s.handleStartDriver)
			r.Post("/stop/{label}", s.handleStopDriver)
			r.Post("/restart/{label}", s.handleRestartDriver)
			r.Post("/start_remote/{spec}", s.handleStartRemoteDriver)
			r.Post("/stop_remote/{spec}", s.handleStopRemoteDriver)
		})

		// Host information
		r.Route("/info", func(r chi.Router) {
			r.Get("/version", s.handleInfoVersion)
			r.Get("/arch", s.handleInfoArch)
			r.Get("/hostname", s.handleInfoHostname)
		})

		// OS power control
		r.Route("/system", func(r chi.Router) {
			r.Post("/reboot", s.handleSystemReboot)
			r.Post("/poweroff", s.handleSystemPoweroff)
		})

		// INDIHub relay agent
		r.Route("/indihub", func(r chi.Router) {
			r.Get("/status", s.handleIndihubStatus)
			r.Post("/mode/{mode}", s.handleIndihubMode)
		})

		// WebSocket event feed
		r.Get("/events", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
