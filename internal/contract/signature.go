package contract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/Alltagsbruecke/SignUp-APP/internal/record"
)

// ErrCaptureCancelled is returned by a Capturer when the signer cancels.
var ErrCaptureCancelled = errors.New("signature capture cancelled")

// Point is a pad coordinate. It encodes as a two-element JSON array.
type Point struct {
	X, Y float64
}

// MarshalJSON encodes the point as [x, y].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// UnmarshalJSON decodes a point from [x, y].
func (p *Point) UnmarshalJSON(data []byte) error {
	var xy [2]float64
	if err := json.Unmarshal(data, &xy); err != nil {
		return fmt.Errorf("point must be [x, y]: %w", err)
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

// Stroke is one continuous pen movement.
type Stroke []Point

// Signature is the captured mark: either vector strokes on a pad of the
// given size, or a PNG image. Exactly one form is set.
type Signature struct {
	Width   float64  `json:"width"`
	Height  float64  `json:"height"`
	Strokes []Stroke `json:"strokes,omitempty"`
	PNG     []byte   `json:"-"`
}

// IsRaster reports whether the signature is a PNG image.
func (s Signature) IsRaster() bool {
	return len(s.PNG) > 0
}

// Validate rejects a blank signature. Strokes are blank unless at least
// one stroke has two points; an image is blank when every pixel has the
// same color or is fully transparent.
func (s Signature) Validate() error {
	const op = "sign"

	if s.IsRaster() {
		_, err := s.decodeRaster()
		return err
	}

	if s.Width <= 0 || s.Height <= 0 {
		return record.NewValidationError(op, "signature pad size must be positive")
	}
	for _, st := range s.Strokes {
		if len(st) >= 2 {
			return nil
		}
	}
	return record.NewValidationError(op, "signature is blank")
}

// Normalize validates s and returns the form embedded in documents.
// Raster signatures are re-encoded as 8-bit, non-interlaced RGBA PNG
// whatever bit depth or interlacing the pad produced.
func (s Signature) Normalize() (Signature, error) {
	if !s.IsRaster() {
		if err := s.Validate(); err != nil {
			return Signature{}, err
		}
		return s, nil
	}

	img, err := s.decodeRaster()
	if err != nil {
		return Signature{}, err
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return Signature{}, fmt.Errorf("sign: encode signature image: %w", err)
	}
	return Signature{PNG: buf.Bytes()}, nil
}

// decodeRaster decodes the PNG and rejects unreadable or blank images.
func (s Signature) decodeRaster() (image.Image, error) {
	const op = "sign"

	img, err := png.Decode(bytes.NewReader(s.PNG))
	if err != nil {
		return nil, record.NewValidationError(op, fmt.Sprintf("signature image is not a valid PNG: %v", err))
	}
	if blankImage(img) {
		return nil, record.NewValidationError(op, "signature is blank")
	}
	return img, nil
}

func blankImage(img image.Image) bool {
	b := img.Bounds()
	if b.Empty() {
		return true
	}
	r0, g0, b0, a0 := img.At(b.Min.X, b.Min.Y).RGBA()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if a == 0 && a0 == 0 {
				continue
			}
			if r != r0 || g != g0 || bl != b0 || a != a0 {
				return false
			}
		}
	}
	return true
}

// ParseStrokes decodes a stroke signature of the form
// {"width": 400, "height": 160, "strokes": [[[x, y], ...], ...]}.
func ParseStrokes(data []byte) (Signature, error) {
	var s Signature
	if err := json.Unmarshal(data, &s); err != nil {
		return Signature{}, record.NewValidationError("sign", fmt.Sprintf("invalid stroke data: %v", err))
	}
	return s, nil
}

// Capturer obtains a signature from the signer. Capture blocks until the
// signer finishes, cancels (ErrCaptureCancelled) or ctx is done.
type Capturer interface {
	Capture(ctx context.Context) (Signature, error)
}

// CaptureFunc adapts a function to Capturer.
type CaptureFunc func(ctx context.Context) (Signature, error)

// Capture calls f.
func (f CaptureFunc) Capture(ctx context.Context) (Signature, error) {
	return f(ctx)
}

// FileCapturer reads a signature prepared by an external pad: a .png
// image or a .json stroke file.
type FileCapturer struct {
	Path string
}

// Capture reads the file. A missing file counts as a cancelled capture.
func (c FileCapturer) Capture(ctx context.Context) (Signature, error) {
	if err := ctx.Err(); err != nil {
		return Signature{}, err
	}
	data, err := os.ReadFile(c.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Signature{}, ErrCaptureCancelled
	}
	if err != nil {
		return Signature{}, record.NewIOError("capture", c.Path, err)
	}
	if strings.EqualFold(filepath.Ext(c.Path), ".png") {
		return Signature{PNG: data}, nil
	}
	return ParseStrokes(data)
}
