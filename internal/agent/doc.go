// Package agent supervises the optional indihub-agent sidecar, a
// network relay that shares the local device server with the INDIHUB
// network in solo, share, or robotic mode.
package agent
