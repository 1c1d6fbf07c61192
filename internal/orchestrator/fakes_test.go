package orchestrator

import (
	"context"

	"github.com/GriffinCanCode/study-scanner/internal/frame"
)

type stillSampler struct{}

func (stillSampler) Sample() (*frame.Frame, bool) {
	return &frame.Frame{Data: []byte("jpeg"), Format: frame.Format}, true
}

type staticOCR string

func (s staticOCR) ExtractText(context.Context, []byte, string) (string, error) {
	return string(s), nil
}
