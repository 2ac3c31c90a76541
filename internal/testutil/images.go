package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

// HashedPNG encodes a 9x8 grayscale PNG whose difference hash is exactly
// hash. Each row walks up or down from mid-gray one step per bit, so the
// hash survives the downscale unchanged. shift brightens every pixel and
// leaves the hash alone, giving distinct content with the same hash; it
// must stay at or below 75.
func HashedPNG(hash uint64, shift uint8) []byte {
	img := image.NewGray(image.Rect(0, 0, 9, 8))
	bit := 63
	for y := 0; y < 8; y++ {
		v := 100 + int(shift)
		img.SetGray(0, y, color.Gray{Y: uint8(v)})
		for x := 1; x < 9; x++ {
			if hash>>uint(bit)&1 == 1 {
				v += 10
			} else {
				v -= 10
			}
			bit--
			img.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
