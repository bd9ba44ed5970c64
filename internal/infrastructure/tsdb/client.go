package tsdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/astrohub/indiweb-core/internal/infrastructure/config"
)

// Timeouts for recorder operations.
const (
	connectTimeout = 10 * time.Second
)

// Sentinel errors.
var (
	// ErrNotConnected indicates the recorder is not connected.
	ErrNotConnected = errors.New("tsdb: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("tsdb: connection failed")

	// ErrDisabled indicates the recorder is disabled in config.
	ErrDisabled = errors.New("tsdb: disabled in configuration")
)

// Recorder writes indiserver lifecycle events to InfluxDB.
//
// Optional: the service runs fine without it. Writes are non-blocking
// and batched by the underlying client; async write failures surface
// through the error callback.
//
// All methods are safe for concurrent use.
type Recorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	connected bool
	mu        sync.RWMutex

	onError func(err error)
}

// Connect creates a recorder and verifies connectivity with a ping.
func Connect(cfg config.InfluxDBConfig) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	r := &Recorder{
		client:    client,
		writeAPI:  client.WriteAPI(cfg.Org, cfg.Bucket),
		connected: true,
	}

	go r.handleWriteErrors(r.writeAPI.Errors())

	return r, nil
}

// handleWriteErrors forwards async write errors to the callback.
func (r *Recorder) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		r.mu.RLock()
		callback := r.onError
		r.mu.RUnlock()

		if callback != nil {
			callback(err)
		}
	}
}

// SetOnError registers a callback for async write failures.
func (r *Recorder) SetOnError(callback func(err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = callback
}

// RecordEvent writes a supervisor lifecycle event.
//
// Tags identify the event kind and driver label; the field carries
// the server port so dashboards can distinguish deployments.
func (r *Recorder) RecordEvent(eventType, label string, port int, at time.Time) {
	if !r.IsConnected() {
		return
	}

	tags := map[string]string{"event": eventType}
	if label != "" {
		tags["label"] = label
	}

	r.writeAPI.WritePoint(write.NewPoint(
		"indiserver_events",
		tags,
		map[string]interface{}{"port": port},
		at,
	))
}

// RecordUptime writes a periodic server uptime sample.
func (r *Recorder) RecordUptime(running bool, uptime time.Duration, driverCount int) {
	if !r.IsConnected() {
		return
	}

	r.writeAPI.WritePoint(write.NewPoint(
		"indiserver_uptime",
		map[string]string{},
		map[string]interface{}{
			"running":        running,
			"uptime_seconds": uptime.Seconds(),
			"driver_count":   driverCount,
		},
		time.Now(),
	))
}

// IsConnected reports whether the recorder is usable.
func (r *Recorder) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}

// HealthCheck pings the server.
func (r *Recorder) HealthCheck(ctx context.Context) error {
	if !r.IsConnected() {
		return ErrNotConnected
	}
	healthy, err := r.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("tsdb ping: %w", err)
	}
	if !healthy {
		return fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}
	return nil
}

// Close flushes pending writes and shuts the client down.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.connected {
		return nil
	}
	r.connected = false

	r.writeAPI.Flush()
	r.client.Close()
	return nil
}
