// Package camera provides frame sources backed by a capture device or an
// image file.
package camera

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	apperrors "github.com/GriffinCanCode/study-scanner/internal/errors"
)

// Device grabs one still per call by running ffmpeg against the
// platform capture API.
type Device struct {
	ffmpeg string
	input  string
	device string

	mu      sync.Mutex
	tempDir string
	closed  bool
}

// Option configures a Device.
type Option func(*Device)

// WithFFmpeg overrides the ffmpeg binary.
func WithFFmpeg(path string) Option {
	return func(d *Device) { d.ffmpeg = path }
}

// WithInput overrides the ffmpeg input format (v4l2, avfoundation, dshow).
func WithInput(format string) Option {
	return func(d *Device) { d.input = format }
}

// New opens a capture device. An empty device name selects the platform
// default camera.
func New(device string, opts ...Option) *Device {
	d := &Device{ffmpeg: "ffmpeg", input: defaultInput, device: device}
	if d.device == "" {
		d.device = defaultDevice
	}
	for _, opt := range opts {
		opt(d)
	}
	d.tempDir = makeTempDir()
	return d
}

func makeTempDir() string {
	dir, err := os.MkdirTemp("", "scanner-camera-*")
	if err != nil {
		slog.Error("failed to create temp dir", "error", err)
		return os.TempDir()
	}
	return dir
}

// Frame returns the latest still, or false if the device is not ready.
func (d *Device) Frame() (image.Image, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	data := d.grab()
	if data == nil {
		return nil, false
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		slog.Debug("camera frame not decodable", "error", err)
		return nil, false
	}
	return img, true
}

func (d *Device) grab() []byte {
	if d.closed || d.tempDir == "" {
		return nil
	}
	out := filepath.Join(d.tempDir, "frame.jpg")
	ctx, cancel := context.WithTimeout(context.Background(), GrabTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.ffmpeg, d.args(out)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		slog.Debug("camera grab failed", "device", d.device, "error", err, "stderr", stderr.String())
		return nil
	}
	data, err := os.ReadFile(out)
	if err != nil {
		slog.Debug("failed to read camera frame", "error", err)
		return nil
	}
	os.Remove(out)
	return data
}

func (d *Device) args(out string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", d.input,
		"-i", d.device,
		"-frames:v", "1",
		"-y", out,
	}
}

// Reset re-creates the scratch directory so the next grab starts clean.
func (d *Device) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return apperrors.New(apperrors.CodeSourceNotReady, "camera closed")
	}
	d.removeTemp()
	d.tempDir = makeTempDir()
	slog.Info("camera reset", "device", d.device)
	return nil
}

// SetDevice switches to another capture device. An empty name selects
// the platform default.
func (d *Device) SetDevice(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return apperrors.New(apperrors.CodeSourceNotReady, "camera closed")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultDevice
	}
	if name == d.device {
		return nil
	}
	d.device = name
	d.removeTemp()
	d.tempDir = makeTempDir()
	slog.Info("camera switched", "device", d.device)
	return nil
}

// Device returns the current capture device name.
func (d *Device) Device() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.device
}

// Close removes the scratch directory. Later grabs report not ready.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.removeTemp()
}

func (d *Device) removeTemp() {
	if d.tempDir != "" && d.tempDir != os.TempDir() {
		os.RemoveAll(d.tempDir)
	}
	d.tempDir = ""
}

// File decodes an image file that another process keeps refreshing.
type File struct {
	path string
}

// NewFile creates a file-backed source.
func NewFile(path string) *File {
	return &File{path: path}
}

// Frame decodes the file, or returns false if it is missing or partial.
func (f *File) Frame() (image.Image, bool) {
	data, err := os.ReadFile(f.path)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	return img, true
}
