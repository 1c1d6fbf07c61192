// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Per-connection WebSocket rate limit (sliding window)
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// Captures returned by /api/captures without a limit
	DefaultCaptureLimit = 20

	// Bound on a single broadcast write to a slow client
	BroadcastWriteTimeout = 5 * time.Second

	// Events queued per WebSocket client before new ones are dropped
	ClientSendBuffer = 256

	// Largest accepted JSON request body
	MaxBodyBytes = 1 << 16
)
