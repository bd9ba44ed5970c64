// Package profile persists named driver-set profiles and custom
// driver definitions in SQLite.
//
// A profile bundles a list of driver labels, optional remote driver
// endpoint specs, the indiserver port, and autostart/autoconnect
// flags. The HTTP layer resolves a profile into driver descriptors
// via the driver registry before handing them to the supervisor.
package profile
