//go:build linux

package camera

const (
	defaultInput  = "v4l2"
	defaultDevice = "/dev/video0"
)
