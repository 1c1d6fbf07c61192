// Package ocr holds local OCR engine adapters.
package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	apperrors "github.com/GriffinCanCode/study-scanner/internal/errors"
	"github.com/GriffinCanCode/study-scanner/internal/trace"
)

// Tesseract runs the tesseract CLI on each image.
type Tesseract struct {
	Path string
	Lang string
}

// NewTesseract creates an adapter. Empty values fall back to
// "tesseract" and "eng".
func NewTesseract(path, lang string) *Tesseract {
	if path == "" {
		path = "tesseract"
	}
	if lang == "" {
		lang = "eng"
	}
	return &Tesseract{Path: path, Lang: lang}
}

// ExtractText pipes the image through tesseract and returns its stdout.
// The format is ignored; tesseract sniffs it from the data.
func (t *Tesseract) ExtractText(ctx context.Context, imageData []byte, format string) (string, error) {
	if len(imageData) == 0 {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "empty image")
	}

	cmd := exec.CommandContext(ctx, t.Path, "stdin", "stdout", "-l", t.Lang)
	cmd.Stdin = bytes.NewReader(imageData)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", apperrors.Wrap(ctx.Err(), apperrors.CodeTimeout, "tesseract interrupted")
		}
		trace.Logger(ctx).Debug("tesseract failed", "error", err, "stderr", stderr.String(), "format", format)
		return "", apperrors.Wrap(err, apperrors.CodeExtractionFailure, strings.TrimSpace(stderr.String())).
			WithMetadata("engine", "tesseract")
	}
	return stdout.String(), nil
}
