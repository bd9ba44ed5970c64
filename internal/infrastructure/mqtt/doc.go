// Package mqtt publishes indiweb server status and lifecycle events
// to an MQTT broker.
//
// The announcer is optional (mqtt.enabled in config.yaml). Status is
// published retained on indiweb/status with a last-will marking the
// service offline; supervisor events go to indiweb/events.
package mqtt
