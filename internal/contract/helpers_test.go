package contract

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/Alltagsbruecke/SignUp-APP/internal/record"
)

var (
	createdAt = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	takenAt   = time.Date(2026, 2, 1, 10, 30, 0, 0, time.UTC)
)

func testClient() record.Client {
	return record.Client{
		ID:        7,
		Name:      "Anna Müller",
		CreatedAt: createdAt,
		Fields: record.Fields{
			{Key: "Phone", Value: "0228 123456"},
			{Key: "Pflegegrad", Value: "3"},
		},
	}
}

func testBranding() record.Branding {
	return record.Branding{
		CompanyName: "Alltagsbrücke GmbH",
		LogoPath:    "/srv/branding/logo.png",
		AccentColor: "#0a7f5c",
	}
}

func strokeSignature() Signature {
	return Signature{
		Width:  400,
		Height: 160,
		Strokes: []Stroke{
			{{X: 10, Y: 80}, {X: 60, Y: 40}, {X: 120, Y: 100}},
			{{X: 150, Y: 90}, {X: 300, Y: 60}},
		},
	}
}

// pngSignature encodes a white image, optionally with a dark diagonal.
func pngSignature(t *testing.T, withMark bool) Signature {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.White)
		}
	}
	if withMark {
		for i := 0; i < 16; i++ {
			img.Set(i*2, i, color.RGBA{17, 24, 39, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return Signature{PNG: buf.Bytes()}
}

// rgba64Signature encodes the same picture as pngSignature at 16 bits
// per channel.
func rgba64Signature(t *testing.T, withMark bool) Signature {
	t.Helper()
	img := image.NewRGBA64(image.Rect(0, 0, 40, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.White)
		}
	}
	if withMark {
		for i := 0; i < 16; i++ {
			img.Set(i*2, i, color.RGBA64{0x1111, 0x1818, 0x2727, 0xffff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return Signature{PNG: buf.Bytes()}
}

func formatText(txt Text) []byte {
	return []byte(fmt.Sprintf("# %s\n\n%s\n[%s]\n%s\n", txt.Title, txt.Body, txt.SignatureLabel, txt.Footer))
}
