// Package config handles scanner configuration: built-in defaults, an
// optional TOML file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string

	OCRBackend    string // "grpc" or "tesseract"
	OCRAddr       string
	OCRTimeout    time.Duration // 0 disables
	TesseractPath string
	TesseractLang string

	FrameSource  string // "camera" or "file"
	CameraDevice string // "" uses the platform default
	FramePath    string
	JPEGQuality  int

	CaptureInterval     time.Duration
	MinTextLength       int
	SimilarityThreshold float64
	HistorySize         int

	NotesDSN  string
	NoteOwner string

	LogLevel  string
	LogFormat string // "tint", "text" or "json"
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		HTTPAddr:            ":8000",
		OCRBackend:          "grpc",
		OCRAddr:             "localhost:50051",
		TesseractPath:       "tesseract",
		TesseractLang:       "eng",
		FrameSource:         "camera",
		JPEGQuality:         90,
		CaptureInterval:     3 * time.Second,
		MinTextLength:       15,
		SimilarityThreshold: 0.8,
		HistorySize:         20,
		NotesDSN:            DefaultNotesPath(),
		NoteOwner:           defaultOwner(),
		LogLevel:            "info",
		LogFormat:           "tint",
	}
}

// Load builds the configuration from defaults, the TOML file named by
// SCANNER_CONFIG (or the XDG default), and the environment.
func Load() (*Config, error) {
	cfg := Defaults()

	path := getEnv("SCANNER_CONFIG", DefaultConfigPath())
	file, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := file.apply(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.OCRBackend = getEnv("OCR_BACKEND", c.OCRBackend)
	c.OCRAddr = getEnv("OCR_ADDR", c.OCRAddr)
	c.OCRTimeout = getEnvDuration("OCR_TIMEOUT", c.OCRTimeout)
	c.TesseractPath = getEnv("TESSERACT_PATH", c.TesseractPath)
	c.TesseractLang = getEnv("TESSERACT_LANG", c.TesseractLang)
	c.FrameSource = getEnv("FRAME_SOURCE", c.FrameSource)
	c.CameraDevice = getEnv("CAMERA_DEVICE", c.CameraDevice)
	c.FramePath = getEnv("FRAME_PATH", c.FramePath)
	c.JPEGQuality = getEnvInt("JPEG_QUALITY", c.JPEGQuality)
	c.CaptureInterval = getEnvDuration("CAPTURE_INTERVAL", c.CaptureInterval)
	c.MinTextLength = getEnvInt("MIN_TEXT_LENGTH", c.MinTextLength)
	c.SimilarityThreshold = getEnvFloat("SIMILARITY_THRESHOLD", c.SimilarityThreshold)
	c.HistorySize = getEnvInt("HISTORY_SIZE", c.HistorySize)
	c.NotesDSN = getEnv("NOTES_DSN", c.NotesDSN)
	c.NoteOwner = getEnv("NOTE_OWNER", c.NoteOwner)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.OCRBackend {
	case "grpc", "tesseract":
	default:
		return fmt.Errorf("unknown OCR backend %q", c.OCRBackend)
	}
	switch c.FrameSource {
	case "camera":
	case "file":
		if c.FramePath == "" {
			return fmt.Errorf("frame source %q needs a frame path", c.FrameSource)
		}
	default:
		return fmt.Errorf("unknown frame source %q", c.FrameSource)
	}
	if c.CaptureInterval <= 0 {
		return fmt.Errorf("capture interval must be positive, got %s", c.CaptureInterval)
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold must be in (0,1], got %v", c.SimilarityThreshold)
	}
	if c.MinTextLength < 0 {
		return fmt.Errorf("min text length must not be negative, got %d", c.MinTextLength)
	}
	return nil
}

func defaultOwner() string {
	if v := os.Getenv("USER"); v != "" {
		return v
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "local"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// getEnvDuration accepts Go durations ("3s") or bare milliseconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), "scanner", "config.toml")
}

// DefaultNotesPath returns the default SQLite notes database path.
func DefaultNotesPath() string {
	return filepath.Join(XDGDataHome(), "scanner", "notes.db")
}
