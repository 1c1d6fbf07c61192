//go:build windows

package camera

const (
	defaultInput  = "dshow"
	defaultDevice = "video=Integrated Camera"
)
