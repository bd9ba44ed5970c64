package indiserver

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/astrohub/indiweb-core/internal/driver"
)

// ControlChannel wraps the indiserver control FIFO, opened for
// writing only. Directives are fire-and-forget: a nil error means
// "the line was written", not "the driver actually started" -
// indiserver provides no acknowledgment over the FIFO.
//
// Not safe for concurrent use; the supervisor serializes access.
type ControlChannel struct {
	path string
	f    *os.File
}

// openControlChannel opens the FIFO for writing without blocking.
// A FIFO with no reader fails the open with ENXIO, which callers use
// as the "server not ready yet" probe. Errors wrap
// ErrChannelUnavailable.
func openControlChannel(path string) (*ControlChannel, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrChannelUnavailable, path, err)
	}
	return &ControlChannel{path: path, f: f}, nil
}

// StartDriver writes a start directive for the given driver.
func (c *ControlChannel) StartDriver(d driver.Driver) error {
	return c.writeLine(startDirective(d))
}

// StopDriver writes a stop directive for the given driver.
func (c *ControlChannel) StopDriver(d driver.Driver) error {
	return c.writeLine(stopDirective(d))
}

// Close closes the underlying FIFO file.
func (c *ControlChannel) Close() error {
	if c.f == nil {
		return nil
	}
	err := c.f.Close()
	c.f = nil
	return err
}

func (c *ControlChannel) writeLine(directive string) error {
	if c.f == nil {
		return ErrChannelUnavailable
	}
	if _, err := c.f.WriteString(directive + "\n"); err != nil {
		return fmt.Errorf("writing control directive: %w", err)
	}
	return nil
}

// startDirective builds the indiserver FIFO start line:
//
//	start <binary> [-s "<skeleton>"] -n "<label>"
//
// Quoted fields have embedded quotes escaped so the server's
// tokenizer sees one argument.
func startDirective(d driver.Driver) string {
	var b strings.Builder
	b.WriteString("start ")
	b.WriteString(d.Binary)
	if d.SkeletonPath != "" {
		b.WriteString(` -s "`)
		b.WriteString(escapeQuotes(d.SkeletonPath))
		b.WriteString(`"`)
	}
	b.WriteString(` -n "`)
	b.WriteString(escapeQuotes(d.Label))
	b.WriteString(`"`)
	return b.String()
}

// stopDirective builds the indiserver FIFO stop line:
//
//	stop <binary> [-n "<label>"]
//
// The -n argument is omitted for python drivers; indiserver matches
// those by binary alone.
func stopDirective(d driver.Driver) string {
	var b strings.Builder
	b.WriteString("stop ")
	b.WriteString(d.Binary)
	if !strings.HasSuffix(d.Binary, ".py") {
		b.WriteString(` -n "`)
		b.WriteString(escapeQuotes(d.Label))
		b.WriteString(`"`)
	}
	return b.String()
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
