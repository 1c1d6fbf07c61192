//go:build darwin

package camera

const (
	defaultInput  = "avfoundation"
	defaultDevice = "0"
)
