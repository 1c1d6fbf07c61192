package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig mirrors config.toml. Pointer fields distinguish "unset"
// from zero values.
type FileConfig struct {
	Server  ServerSection  `toml:"server"`
	OCR     OCRSection     `toml:"ocr"`
	Camera  CameraSection  `toml:"camera"`
	Capture CaptureSection `toml:"capture"`
	Notes   NotesSection   `toml:"notes"`
	Log     LogSection     `toml:"log"`
}

type ServerSection struct {
	Addr *string `toml:"addr"`
}

type OCRSection struct {
	Backend       *string `toml:"backend"`
	Addr          *string `toml:"addr"`
	Timeout       *string `toml:"timeout"`
	TesseractPath *string `toml:"tesseract-path"`
	Lang          *string `toml:"lang"`
}

type CameraSection struct {
	Source      *string `toml:"source"`
	Device      *string `toml:"device"`
	Path        *string `toml:"path"`
	JPEGQuality *int    `toml:"jpeg-quality"`
}

type CaptureSection struct {
	Interval            *string  `toml:"interval"`
	MinTextLength       *int     `toml:"min-text-length"`
	SimilarityThreshold *float64 `toml:"similarity-threshold"`
	HistorySize         *int     `toml:"history-size"`
}

type NotesSection struct {
	DSN   *string `toml:"dsn"`
	Owner *string `toml:"owner"`
}

type LogSection struct {
	Level  *string `toml:"level"`
	Format *string `toml:"format"`
}

// LoadFile reads a TOML config from path. A missing file is not an error.
func LoadFile(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var fc FileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return fc, nil
}

func (f FileConfig) apply(c *Config) error {
	setString(&c.HTTPAddr, f.Server.Addr)
	setString(&c.OCRBackend, f.OCR.Backend)
	setString(&c.OCRAddr, f.OCR.Addr)
	setString(&c.TesseractPath, f.OCR.TesseractPath)
	setString(&c.TesseractLang, f.OCR.Lang)
	setString(&c.FrameSource, f.Camera.Source)
	setString(&c.CameraDevice, f.Camera.Device)
	setString(&c.FramePath, f.Camera.Path)
	setString(&c.NotesDSN, f.Notes.DSN)
	setString(&c.NoteOwner, f.Notes.Owner)
	setString(&c.LogLevel, f.Log.Level)
	setString(&c.LogFormat, f.Log.Format)

	if f.Camera.JPEGQuality != nil {
		c.JPEGQuality = *f.Camera.JPEGQuality
	}
	if f.Capture.MinTextLength != nil {
		c.MinTextLength = *f.Capture.MinTextLength
	}
	if f.Capture.SimilarityThreshold != nil {
		c.SimilarityThreshold = *f.Capture.SimilarityThreshold
	}
	if f.Capture.HistorySize != nil {
		c.HistorySize = *f.Capture.HistorySize
	}

	if err := setDuration(&c.OCRTimeout, f.OCR.Timeout, "ocr.timeout"); err != nil {
		return err
	}
	return setDuration(&c.CaptureInterval, f.Capture.Interval, "capture.interval")
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, key string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
