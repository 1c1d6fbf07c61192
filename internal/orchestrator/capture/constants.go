// Package capture runs the sample → OCR → gate cycle that decides which
// camera text is new.
package capture

import "time"

// Capture defaults
const (
	// Cadence of the capture timer.
	DefaultInterval = 3 * time.Second

	// Trimmed text shorter than this (in runes) is treated as OCR noise.
	DefaultMinTextLength = 15

	// Text at least this similar to the last accepted text is a duplicate.
	DefaultSimilarityThreshold = 0.8

	// Buffered updates before Emit starts dropping.
	DefaultUpdateBuffer = 64
)
