// Package orchestrator ties the capture controller to note storage and
// capture history.
package orchestrator

// Orchestrator configuration constants
const (
	// Capture history size when none is configured
	HistoryMaxEntries = 20

	// Channel buffer sizes
	EventBuffer = 100
)

// Event types
const (
	EventStatus = "status"
	EventText   = "text"
	EventNotice = "notice"
)
