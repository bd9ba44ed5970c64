package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/astrohub/indiweb-core/internal/driver"
	"github.com/astrohub/indiweb-core/internal/profile"
)

// ProfileRequest is the optional JSON body for profile create/update.
type ProfileRequest struct {
	Port        int  `json:"port"`
	AutoStart   bool `json:"autostart"`
	AutoConnect bool `json:"autoconnect"`
}

// ProfileDriverEntry is one element of the driver list posted to a
// profile: either a catalog label or a remote endpoint spec.
type ProfileDriverEntry struct {
	Label  string `json:"label,omitempty"`
	Remote string `json:"remote,omitempty"`
}

// CustomDriverRequest is the JSON body for saving a custom driver.
type CustomDriverRequest struct {
	Label   string `json:"label"`
	Name    string `json:"name"`
	Family  string `json:"family"`
	Binary  string `json:"binary"`
	Version string `json:"version"`
}

// handleListProfiles returns all stored profiles.
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.profiles.ListProfiles(r.Context())
	if err != nil {
		s.logger.Error("listing profiles", "error", err)
		writeInternalError(w, "failed to list profiles")
		return
	}
	if profiles == nil {
		profiles = []profile.Profile{}
	}
	writeJSON(w, http.StatusOK, profiles)
}

// handleGetProfile returns one profile by name.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	p, err := s.profiles.GetProfile(r.Context(), name)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			writeNotFound(w, "profile not found: "+name)
			return
		}
		s.logger.Error("getting profile", "name", name, "error", err)
		writeInternalError(w, "failed to get profile")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleCreateProfile creates a profile. The body is optional; an
// empty body creates a profile with default port and flags.
func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	p := &profile.Profile{
		Name:        name,
		Port:        req.Port,
		AutoStart:   req.AutoStart,
		AutoConnect: req.AutoConnect,
	}
	if err := s.profiles.CreateProfile(r.Context(), p); err != nil {
		if errors.Is(err, profile.ErrAlreadyExists) {
			writeConflict(w, "profile already exists: "+name)
			return
		}
		s.logger.Error("creating profile", "name", name, "error", err)
		writeInternalError(w, "failed to create profile")
		return
	}

	s.logger.Info("profile created", "name", name)
	writeJSON(w, http.StatusCreated, p)
}

// handleUpdateProfile updates port and flags for an existing profile.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	p := &profile.Profile{
		Name:        name,
		Port:        req.Port,
		AutoStart:   req.AutoStart,
		AutoConnect: req.AutoConnect,
	}
	if err := s.profiles.UpdateProfile(r.Context(), p); err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			writeNotFound(w, "profile not found: "+name)
			return
		}
		s.logger.Error("updating profile", "name", name, "error", err)
		writeInternalError(w, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleDeleteProfile removes a profile and its driver lists.
func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := s.profiles.DeleteProfile(r.Context(), name); err != nil {
		s.logger.Error("deleting profile", "name", name, "error", err)
		writeInternalError(w, "failed to delete profile")
		return
	}

	s.logger.Info("profile deleted", "name", name)
	w.WriteHeader(http.StatusNoContent)
}

// handleGetProfileLabels returns the driver labels of a profile in the
// shape astronomy clients expect: a list of {"label": ...} objects.
func (s *Server) handleGetProfileLabels(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	labels, err := s.profiles.GetProfileDriverLabels(r.Context(), name)
	if err != nil {
		s.logger.Error("getting profile labels", "name", name, "error", err)
		writeInternalError(w, "failed to get profile drivers")
		return
	}

	out := make([]ProfileDriverEntry, 0, len(labels))
	for _, label := range labels {
		out = append(out, ProfileDriverEntry{Label: label})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetProfileRemote returns the remote endpoint specs of a profile.
func (s *Server) handleGetProfileRemote(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	remote, err := s.profiles.GetProfileRemoteDrivers(r.Context(), name)
	if err != nil {
		s.logger.Error("getting profile remote drivers", "name", name, "error", err)
		writeInternalError(w, "failed to get remote drivers")
		return
	}
	if remote == nil {
		remote = []string{}
	}
	writeJSON(w, http.StatusOK, remote)
}

// handleSetProfileDrivers replaces a profile's driver list. The body
// is a list of entries carrying either a catalog label or a remote
// endpoint spec.
func (s *Server) handleSetProfileDrivers(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var entries []ProfileDriverEntry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var labels, remote []string
	for _, e := range entries {
		switch {
		case e.Remote != "":
			remote = append(remote, e.Remote)
		case e.Label != "":
			labels = append(labels, e.Label)
		}
	}

	if err := s.profiles.SetProfileDrivers(r.Context(), name, labels, remote); err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			writeNotFound(w, "profile not found: "+name)
			return
		}
		s.logger.Error("setting profile drivers", "name", name, "error", err)
		writeInternalError(w, "failed to save profile drivers")
		return
	}

	s.logger.Info("profile drivers saved",
		"name", name, "labels", len(labels), "remote", len(remote))
	w.WriteHeader(http.StatusNoContent)
}

// handleSaveCustomDriver stores a custom driver definition and
// reloads the registry's custom overlay so the new driver is
// immediately available to lookups.
func (s *Server) handleSaveCustomDriver(w http.ResponseWriter, r *http.Request) {
	var req CustomDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Label == "" || req.Binary == "" {
		writeBadRequest(w, "label and binary are required")
		return
	}

	d := &profile.CustomDriver{
		Label:   req.Label,
		Name:    req.Name,
		Family:  req.Family,
		Binary:  req.Binary,
		Version: req.Version,
	}
	if err := s.profiles.SaveCustomDriver(r.Context(), d); err != nil {
		s.logger.Error("saving custom driver", "label", req.Label, "error", err)
		writeInternalError(w, "failed to save custom driver")
		return
	}

	if err := s.ReloadCustomDrivers(r.Context()); err != nil {
		s.logger.Error("reloading custom drivers", "error", err)
		writeInternalError(w, "driver saved but registry reload failed")
		return
	}

	s.logger.Info("custom driver saved", "label", req.Label)
	w.WriteHeader(http.StatusNoContent)
}

// ReloadCustomDrivers replaces the registry's custom overlay with the
// definitions currently stored in the profile database. Called on
// startup and after every custom driver save.
func (s *Server) ReloadCustomDrivers(ctx context.Context) error {
	stored, err := s.profiles.ListCustomDrivers(ctx)
	if err != nil {
		return err
	}

	drivers := make([]driver.Driver, 0, len(stored))
	for _, c := range stored {
		drivers = append(drivers, driver.Driver{
			Name:    c.Name,
			Label:   c.Label,
			Version: c.Version,
			Binary:  c.Binary,
			Family:  c.Family,
			Custom:  true,
		})
	}

	s.registry.ClearCustom()
	s.registry.LoadCustom(drivers)
	return nil
}
