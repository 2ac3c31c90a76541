package metadata_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math/big"
	"strings"
	"testing"
	"time"

	"shelf-go/internal/metadata"
	"shelf-go/internal/testutil"
)

func TestReadExif(t *testing.T) {
	t.Run("reads camera details", func(t *testing.T) {
		got, err := metadata.ReadExif(bytes.NewReader(testutil.PhotoJPEG(32, 24, testutil.DefaultPhoto)))
		if err != nil {
			t.Fatalf("ReadExif() error = %v", err)
		}
		if got == nil {
			t.Fatal("ReadExif() = nil, want EXIF details")
		}
		if got.Make != "Canon" || got.Model != "EOS 5D" {
			t.Errorf("Make/Model = %q/%q", got.Make, got.Model)
		}
		if got.Exposure != "1/250" {
			t.Errorf("Exposure = %q, want 1/250", got.Exposure)
		}
		if got.FNumber != "2.8" {
			t.Errorf("FNumber = %q, want 2.8", got.FNumber)
		}
		if got.ISO != "200" {
			t.Errorf("ISO = %q, want 200", got.ISO)
		}
		if got.FocalLength != 50 || got.FocalLength35mm != 0 {
			t.Errorf("focal length = %d (35mm %d), want 50", got.FocalLength, got.FocalLength35mm)
		}
		want := time.Date(2023, 7, 14, 18, 30, 5, 0, time.UTC)
		if got.TakenAt == nil || !got.TakenAt.Equal(want) {
			t.Errorf("TakenAt = %v, want %v", got.TakenAt, want)
		}
		if got.Width != 32 || got.Height != 24 {
			t.Errorf("dimensions = %dx%d, want 32x24", got.Width, got.Height)
		}
	})

	t.Run("jpeg without exif", func(t *testing.T) {
		var buf bytes.Buffer
		img := image.NewGray(image.Rect(0, 0, 8, 8))
		img.SetGray(1, 1, color.Gray{Y: 200})
		if err := jpeg.Encode(&buf, img, nil); err != nil {
			t.Fatalf("jpeg.Encode() error = %v", err)
		}
		if got, err := metadata.ReadExif(&buf); err != nil || got != nil {
			t.Errorf("ReadExif() = %+v, %v, want nil, nil", got, err)
		}
	})

	t.Run("not an image", func(t *testing.T) {
		if got, err := metadata.ReadExif(strings.NewReader("plain text")); err != nil || got != nil {
			t.Errorf("ReadExif() = %+v, %v, want nil, nil", got, err)
		}
	})
}

func TestLimitDenominator(t *testing.T) {
	tests := []struct {
		in   *big.Rat
		max  int64
		want string
	}{
		{big.NewRat(1, 250), 8000, "1/250"},
		{big.NewRat(3333, 1000000), 8000, "1/300"},
		{big.NewRat(314159, 100000), 100, "311/99"},
		{big.NewRat(5, 1), 8000, "5"},
	}
	for _, tt := range tests {
		if got := metadata.LimitDenominator(tt.in, tt.max).RatString(); got != tt.want {
			t.Errorf("LimitDenominator(%s, %d) = %s, want %s", tt.in.RatString(), tt.max, got, tt.want)
		}
	}
}

func TestSupported(t *testing.T) {
	for mt, want := range map[string]bool{
		"image/jpeg": true,
		"image/png":  false,
		"text/plain": false,
	} {
		if got := metadata.Supported(mt); got != want {
			t.Errorf("Supported(%q) = %v, want %v", mt, got, want)
		}
	}
}
