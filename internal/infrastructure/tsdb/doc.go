// Package tsdb records indiserver lifecycle events and uptime
// samples in InfluxDB for long-term observability of an observatory
// deployment.
//
// The recorder is optional (influxdb.enabled in config.yaml); when
// disabled the rest of the service runs unaffected.
package tsdb
