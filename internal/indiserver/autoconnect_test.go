package indiserver

import (
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/astrohub/indiweb-core/internal/driver"
)

func TestConnectMessage(t *testing.T) {
	got := connectMessage("CCD Simulator")
	want := `<newSwitchVector device="CCD Simulator" name="CONNECTION"><oneSwitch name="CONNECT">On</oneSwitch></newSwitchVector>`
	if got != want {
		t.Errorf("connectMessage() = %q, want %q", got, want)
	}
}

func TestConnectMessage_EscapesLabel(t *testing.T) {
	got := connectMessage(`Scope <&> "Prime"`)
	if strings.Contains(got, `device="Scope <`) {
		t.Errorf("label not XML-escaped: %q", got)
	}
	if !strings.Contains(got, "&lt;") || !strings.Contains(got, "&amp;") {
		t.Errorf("expected escaped label in %q", got)
	}
}

// recordingListener accepts connections on an ephemeral port and
// forwards each connection's payload.
func recordingListener(t *testing.T) (port int, payloads chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() }) //nolint:errcheck // Test cleanup

	payloads = make(chan string, 16)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				data, _ := io.ReadAll(c) //nolint:errcheck // Peer close ends the read
				payloads <- string(data)
			}(conn)
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port, payloads
}

func collectPayloads(t *testing.T, payloads chan string, count int) []string {
	t.Helper()

	var got []string
	for len(got) < count {
		select {
		case p := <-payloads:
			got = append(got, p)
		case <-time.After(5 * time.Second):
			t.Fatalf("received %d payloads, want %d", len(got), count)
		}
	}
	return got
}

func TestAutoConnect(t *testing.T) {
	port, payloads := recordingListener(t)

	m, _ := newTestManager(t, stubServer)
	if err := m.Start(port, []driver.Driver{simCCD, simScope}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop() //nolint:errcheck // Test cleanup

	m.AutoConnect()

	got := collectPayloads(t, payloads, 2)
	joined := strings.Join(got, "\n")
	if !strings.Contains(joined, `device="CCD Simulator"`) {
		t.Errorf("no CONNECT sent for CCD Simulator: %q", joined)
	}
	if !strings.Contains(joined, `device="Telescope Simulator"`) {
		t.Errorf("no CONNECT sent for Telescope Simulator: %q", joined)
	}
	for _, p := range got {
		if !strings.Contains(p, `name="CONNECTION"`) || !strings.Contains(p, `<oneSwitch name="CONNECT">On</oneSwitch>`) {
			t.Errorf("malformed property set: %q", p)
		}
	}
}

func TestAutoConnect_WhenStopped_IsNoop(t *testing.T) {
	_, payloads := recordingListener(t)

	m, _ := newTestManager(t, stubServer)

	// Never started: the sweep must not dial anything.
	m.AutoConnect()

	select {
	case p := <-payloads:
		t.Errorf("unexpected connection: %q", p)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestScheduleAutoConnect(t *testing.T) {
	port, payloads := recordingListener(t)

	m, _ := newTestManager(t, stubServer)
	if err := m.Start(port, []driver.Driver{simCCD}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop() //nolint:errcheck // Test cleanup

	m.ScheduleAutoConnect(100 * time.Millisecond)

	got := collectPayloads(t, payloads, 1)
	if !strings.Contains(got[0], `device="CCD Simulator"`) {
		t.Errorf("scheduled auto-connect payload = %q", got[0])
	}
}

func TestScheduleAutoConnect_CancelledByStop(t *testing.T) {
	port, payloads := recordingListener(t)

	m, _ := newTestManager(t, stubServer)
	if err := m.Start(port, []driver.Driver{simCCD}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	m.ScheduleAutoConnect(300 * time.Millisecond)

	// Stop before the timer fires invalidates it.
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	select {
	case p := <-payloads:
		t.Errorf("auto-connect fired after Stop: %q", p)
	case <-time.After(600 * time.Millisecond):
	}
}

func TestScheduleAutoConnect_StaleAcrossRestart(t *testing.T) {
	port, payloads := recordingListener(t)

	m, _ := newTestManager(t, stubServer)
	if err := m.Start(port, []driver.Driver{simCCD}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	m.ScheduleAutoConnect(300 * time.Millisecond)

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	// Restart on a port nobody listens on. The old timer must not
	// fire against the new epoch; nothing should reach the listener.
	if err := m.Start(7625, nil); err != nil {
		t.Fatalf("restart Start() error = %v", err)
	}
	defer m.Stop() //nolint:errcheck // Test cleanup

	select {
	case p := <-payloads:
		t.Errorf("stale auto-connect fired after restart: %q", p)
	case <-time.After(600 * time.Millisecond):
	}
}
