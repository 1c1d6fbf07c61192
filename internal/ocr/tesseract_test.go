package ocr

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	apperrors "github.com/GriffinCanCode/study-scanner/internal/errors"
)

// fakeTesseract writes a shell script standing in for the CLI.
func fakeTesseract(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "tesseract")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewTesseractDefaults(t *testing.T) {
	ts := NewTesseract("", "")
	if ts.Path != "tesseract" || ts.Lang != "eng" {
		t.Errorf("defaults = %q, %q", ts.Path, ts.Lang)
	}
}

func TestExtractText(t *testing.T) {
	// Echo args and stdin so the test can check both.
	ts := NewTesseract(fakeTesseract(t, `echo "$@"; cat`), "deu")

	out, err := ts.ExtractText(context.Background(), []byte("page"), "jpeg")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if out != "stdin stdout -l deu\npage" {
		t.Errorf("out = %q", out)
	}
}

func TestExtractTextFailure(t *testing.T) {
	ts := NewTesseract(fakeTesseract(t, `echo "cannot read image" >&2; exit 1`), "eng")

	_, err := ts.ExtractText(context.Background(), []byte("page"), "jpeg")
	if !apperrors.IsCode(err, apperrors.CodeExtractionFailure) {
		t.Fatalf("err = %v, want EXTRACTION_FAILURE", err)
	}
}

func TestExtractTextEmptyImage(t *testing.T) {
	_, err := NewTesseract("", "").ExtractText(context.Background(), nil, "jpeg")
	if !apperrors.IsCode(err, apperrors.CodeInvalidArgument) {
		t.Errorf("err = %v, want INVALID_ARGUMENT", err)
	}
}

func TestExtractTextMissingBinary(t *testing.T) {
	ts := NewTesseract(filepath.Join(t.TempDir(), "missing"), "eng")
	if _, err := ts.ExtractText(context.Background(), []byte("page"), "jpeg"); err == nil {
		t.Error("expected error for missing binary")
	}
}
