// Package dhash computes 64-bit difference hashes of images. The image is
// downscaled to 9x8 grayscale with a Hamming filter; each bit records whether
// a pixel is darker than its right-hand neighbour, row by row.
package dhash

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"math"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder
)

const (
	hashSize = 8
	width    = hashSize + 1
	height   = hashSize
)

// MaxPixels bounds the decoded size of an image. Larger images are rejected
// from their header, before any pixel memory is allocated.
const MaxPixels = 89_478_485

// ErrUnsupported is returned for content that is not a decodable image.
var ErrUnsupported = errors.New("unsupported image format")

var supported = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// hamming is a Hamming-windowed sinc with unit support.
var hamming = &draw.Kernel{
	Support: 1,
	At: func(t float64) float64 {
		if t < 0 {
			t = -t
		}
		if t == 0 {
			return 1
		}
		if t >= 1 {
			return 0
		}
		t *= math.Pi
		return math.Sin(t) / t * (0.54 + 0.46*math.Cos(t))
	},
}

// Supported reports whether content of the media type can be hashed.
func Supported(mediaType string) bool {
	return supported[mediaType]
}

// Compute decodes an image from r and returns its difference hash. The
// header is checked against MaxPixels first.
func Compute(r io.Reader) (uint64, error) {
	var head bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return 0, decodeError(err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return 0, fmt.Errorf("%w: %dx%d image exceeds %d pixels", ErrUnsupported, cfg.Width, cfg.Height, MaxPixels)
	}

	img, _, err := image.Decode(io.MultiReader(&head, r))
	if err != nil {
		return 0, decodeError(err)
	}
	return FromImage(img), nil
}

func decodeError(err error) error {
	if errors.Is(err, image.ErrFormat) {
		return ErrUnsupported
	}
	return fmt.Errorf("decoding image: %w", err)
}

// FromImage returns the difference hash of an already decoded image.
func FromImage(img image.Image) uint64 {
	small := image.NewGray(image.Rect(0, 0, width, height))
	hamming.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var result uint64
	for y := 0; y < height; y++ {
		for x := 0; x < hashSize; x++ {
			result <<= 1
			if small.GrayAt(x, y).Y < small.GrayAt(x+1, y).Y {
				result |= 1
			}
		}
	}
	return result
}
