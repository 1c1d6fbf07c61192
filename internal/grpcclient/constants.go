package grpcclient

import "time"

// Client configuration defaults
const (
	// Keepalive configuration
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second

	// OCR service contract
	ServiceName       = "scanner.ocr.v1.OCRService"
	ExtractTextMethod = "/" + ServiceName + "/ExtractText"
	FormatKey         = "x-image-format"
)
