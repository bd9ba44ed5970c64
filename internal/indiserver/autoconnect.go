package indiserver

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net"
	"time"
)

// Auto-connect timing.
const (
	// connectDialTimeout bounds each per-driver TCP connect so one
	// unreachable driver cannot stall the sweep.
	connectDialTimeout = 2 * time.Second

	// connectWriteTimeout bounds the property-set write.
	connectWriteTimeout = 2 * time.Second
)

// AutoConnect sets the CONNECT switch for every driver currently in
// the running set, over a short-lived TCP connection per driver to
// the server's client port.
//
// Best-effort: a failure for one driver is logged and the sweep
// continues. Callers are responsible for delaying this until the
// server has initialized its drivers (see ScheduleAutoConnect).
func (m *Manager) AutoConnect() {
	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return
	}
	port := m.port
	drivers := make([]string, 0, len(m.running))
	for label := range m.running {
		drivers = append(drivers, label)
	}
	m.mu.Unlock()

	addr := fmt.Sprintf("localhost:%d", port)
	for _, label := range drivers {
		if err := sendConnect(addr, label); err != nil {
			m.logger.Warn("auto-connect failed", "label", label, "error", err)
			continue
		}
		m.logger.Debug("auto-connect sent", "label", label)
	}
}

// ScheduleAutoConnect arranges a one-shot AutoConnect after the given
// delay. The timer is tied to the supervisor's state epoch: a Stop
// (or restart) before it fires invalidates it, so it never operates
// on a stale process.
func (m *Manager) ScheduleAutoConnect(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateRunning {
		return
	}
	if m.connTimer != nil {
		m.connTimer.Stop()
	}

	epoch := m.epoch
	m.connTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		stale := m.epoch != epoch || m.state != StateRunning
		m.mu.Unlock()
		if stale {
			return
		}
		m.AutoConnect()
	})

	m.logger.Debug("auto-connect scheduled", "delay", delay)
}

// sendConnect transmits the CONNECTION property-set for one driver.
func sendConnect(addr, label string) error {
	conn, err := net.DialTimeout("tcp", addr, connectDialTimeout)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer conn.Close() //nolint:errcheck // Best effort cleanup

	if err := conn.SetWriteDeadline(time.Now().Add(connectWriteTimeout)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if _, err := conn.Write([]byte(connectMessage(label))); err != nil {
		return fmt.Errorf("writing property set: %w", err)
	}
	return nil
}

// connectMessage builds the INDI newSwitchVector message that turns a
// driver's CONNECT switch on.
func connectMessage(label string) string {
	var escaped bytes.Buffer
	xml.EscapeText(&escaped, []byte(label)) //nolint:errcheck // bytes.Buffer writes cannot fail

	return fmt.Sprintf(
		`<newSwitchVector device="%s" name="CONNECTION"><oneSwitch name="CONNECT">On</oneSwitch></newSwitchVector>`,
		escaped.String(),
	)
}
