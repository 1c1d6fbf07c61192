package capture

import "fmt"

// Status is the user-visible state of the capture session.
type Status uint8

const (
	Idle Status = iota
	Scanning
	Processing
	Waiting
	Error
	Paused
)

var statusNames = [...]string{
	Idle:       "idle",
	Scanning:   "scanning",
	Processing: "processing",
	Waiting:    "waiting",
	Error:      "error",
	Paused:     "paused",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", b)
}
