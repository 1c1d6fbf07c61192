// Package frame turns raw camera stills into cropped, encoded frames
// ready for text extraction.
package frame

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	"github.com/corona10/goimagehash"

	apperrors "github.com/GriffinCanCode/study-scanner/internal/errors"
)

const (
	// CropWidthRatio and CropHeightRatio size the guide region relative
	// to the source frame.
	CropWidthRatio  = 0.8
	CropHeightRatio = 0.6

	DefaultQuality = 90
	Format         = "jpeg"
)

// Source yields the most recent still. ok is false when no decodable
// frame is available yet.
type Source interface {
	Frame() (img image.Image, ok bool)
}

// Resetter is implemented by sources that can re-acquire their device.
type Resetter interface {
	Reset() error
}

// Switcher is implemented by sources with more than one device.
type Switcher interface {
	SetDevice(name string) error
}

// Frame is the cropped region of one still, encoded for OCR.
type Frame struct {
	Image  *image.RGBA
	Data   []byte
	Format string
	Hash   *goimagehash.ImageHash
}

// Fingerprint returns the perceptual hash as a hex string, or "" when
// hashing failed.
func (f *Frame) Fingerprint() string {
	if f == nil || f.Hash == nil {
		return ""
	}
	return fmt.Sprintf("%016x", f.Hash.GetHash())
}

// CropRect returns the centred guide rectangle inside bounds.
func CropRect(bounds image.Rectangle) image.Rectangle {
	w := int(float64(bounds.Dx()) * CropWidthRatio)
	h := int(float64(bounds.Dy()) * CropHeightRatio)
	x := bounds.Min.X + (bounds.Dx()-w)/2
	y := bounds.Min.Y + (bounds.Dy()-h)/2
	return image.Rect(x, y, x+w, y+h)
}

// Crop renders the guide region of img into a fresh buffer anchored at
// the origin.
func Crop(img image.Image) *image.RGBA {
	r := CropRect(img.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// Sampler crops and encodes stills from a Source.
type Sampler struct {
	src     Source
	quality int
}

// NewSampler creates a sampler. quality <= 0 uses DefaultQuality.
func NewSampler(src Source, quality int) *Sampler {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Sampler{src: src, quality: quality}
}

// Sample grabs, crops and encodes one frame. ok is false when the source
// is not ready or the still is empty.
func (s *Sampler) Sample() (*Frame, bool) {
	img, ok := s.src.Frame()
	if !ok || img == nil {
		return nil, false
	}
	cropped := Crop(img)
	if cropped.Bounds().Empty() {
		return nil, false
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, cropped, &jpeg.Options{Quality: s.quality}); err != nil {
		return nil, false
	}

	f := &Frame{Image: cropped, Data: buf.Bytes(), Format: Format}
	if hash, err := goimagehash.PerceptionHash(cropped); err == nil {
		f.Hash = hash
	}
	return f, true
}

// Reset asks the underlying source to re-acquire its device.
func (s *Sampler) Reset() error {
	if r, ok := s.src.(Resetter); ok {
		return r.Reset()
	}
	return nil
}

// SetDevice switches the underlying source to another device.
func (s *Sampler) SetDevice(name string) error {
	if sw, ok := s.src.(Switcher); ok {
		return sw.SetDevice(name)
	}
	return apperrors.New(apperrors.CodeInvalidArgument, "frame source has no selectable device")
}
