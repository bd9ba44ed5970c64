package api

import (
	"net/http"
	"os/exec"
)

// handleSystemReboot reboots the host. Used by remote observatories
// where the manager is the only reachable service on the machine.
func (s *Server) handleSystemReboot(w http.ResponseWriter, _ *http.Request) {
	s.runPowerCommand(w, "reboot")
}

// handleSystemPoweroff powers the host off.
func (s *Server) handleSystemPoweroff(w http.ResponseWriter, _ *http.Request) {
	s.runPowerCommand(w, "poweroff")
}

// runPowerCommand launches the given power verb, optionally through
// sudo, and responds before the command takes effect. The command is
// not waited on: a successful reboot never returns.
func (s *Server) runPowerCommand(w http.ResponseWriter, verb string) {
	// Bring equipment down cleanly before the OS goes away.
	if s.supervisor.IsRunning() {
		if err := s.StopServer(); err != nil {
			s.logger.Warn("stopping server before "+verb, "error", err)
		}
	}

	var cmd *exec.Cmd
	if s.sysCfg.Sudo {
		cmd = exec.Command("sudo", verb)
	} else {
		cmd = exec.Command(verb)
	}

	s.logger.Warn("system power command requested", "command", verb, "sudo", s.sysCfg.Sudo)

	if err := cmd.Start(); err != nil {
		s.logger.Error("launching power command", "command", verb, "error", err)
		writeInternalError(w, "failed to run "+verb)
		return
	}
	go cmd.Wait() //nolint:errcheck // Reap the child; outcome is irrelevant here

	writeJSON(w, http.StatusOK, map[string]string{"status": verb})
}
