// Package metadata reads descriptive metadata from file content. Photos yield
// their EXIF camera details and pixel dimensions.
package metadata

import (
	"bytes"
	"image"
	_ "image/jpeg" // register decoder
	"io"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"shelf-go/internal/model"
)

const (
	exifTimeLayout   = "2006:01:02 15:04:05"
	maxExposureDenom = 8000
	jpegMediaType    = "image/jpeg"
)

// Supported reports whether metadata can be read from the media type.
func Supported(mediaType string) bool {
	return mediaType == jpegMediaType
}

// ReadExif returns the EXIF details of the image read from r, or nil when the
// content is not an image or carries no EXIF block.
func ReadExif(r io.Reader) (*model.Exif, error) {
	var head bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return nil, nil
	}

	x, err := exif.Decode(io.MultiReader(&head, r))
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		return nil, nil
	}

	out := &model.Exif{
		Make:        stringTag(x, exif.Make),
		Model:       stringTag(x, exif.Model),
		FNumber:     decimalTag(x, exif.FNumber),
		Exposure:    fractionTag(x, exif.ExposureTime),
		TakenAt:     timeTag(x, exif.DateTimeOriginal),
		DigitizedAt: timeTag(x, exif.DateTimeDigitized),
		Width:       cfg.Width,
		Height:      cfg.Height,
	}
	if iso, ok := intTag(x, exif.ISOSpeedRatings); ok {
		out.ISO = strconv.Itoa(iso)
	}
	// The 35mm equivalent wins; the raw focal length is kept only without it.
	if fl, ok := intTag(x, exif.FocalLengthIn35mmFilm); ok && fl > 0 {
		out.FocalLength35mm = fl
	} else if num, den, ok := ratTag(x, exif.FocalLength); ok {
		out.FocalLength = int(num / den)
	}
	return out, nil
}

func tag(x *exif.Exif, name exif.FieldName) *tiff.Tag {
	t, err := x.Get(name)
	if err != nil {
		return nil
	}
	return t
}

func stringTag(x *exif.Exif, name exif.FieldName) string {
	t := tag(x, name)
	if t == nil {
		return ""
	}
	v, err := t.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.Trim(v, "\x00"))
}

func intTag(x *exif.Exif, name exif.FieldName) (int, bool) {
	t := tag(x, name)
	if t == nil {
		return 0, false
	}
	v, err := t.Int(0)
	if err != nil {
		return 0, false
	}
	return v, true
}

func ratTag(x *exif.Exif, name exif.FieldName) (int64, int64, bool) {
	t := tag(x, name)
	if t == nil {
		return 0, 0, false
	}
	num, den, err := t.Rat2(0)
	if err != nil || den == 0 || num == 0 {
		return 0, 0, false
	}
	return num, den, true
}

func decimalTag(x *exif.Exif, name exif.FieldName) string {
	num, den, ok := ratTag(x, name)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(float64(num)/float64(den), 'f', -1, 64)
}

func fractionTag(x *exif.Exif, name exif.FieldName) string {
	num, den, ok := ratTag(x, name)
	if !ok {
		return ""
	}
	return LimitDenominator(big.NewRat(num, den), maxExposureDenom).RatString()
}

func timeTag(x *exif.Exif, name exif.FieldName) *time.Time {
	v := stringTag(x, name)
	if v == "" {
		return nil
	}
	t, err := time.Parse(exifTimeLayout, v)
	if err != nil {
		return nil
	}
	return &t
}

// LimitDenominator returns the fraction closest to r whose denominator is at
// most maxDenom.
func LimitDenominator(r *big.Rat, maxDenom int64) *big.Rat {
	if !r.Denom().IsInt64() || r.Denom().Int64() <= maxDenom || !r.Num().IsInt64() {
		return r
	}

	n, d := r.Num().Int64(), r.Denom().Int64()
	p0, q0, p1, q1 := int64(0), int64(1), int64(1), int64(0)
	for d != 0 {
		a := n / d
		q2 := q0 + a*q1
		if q2 > maxDenom {
			break
		}
		p0, q0, p1, q1 = p1, q1, p0+a*p1, q2
		n, d = d, n-a*d
	}

	k := (maxDenom - q0) / q1
	lower := big.NewRat(p0+k*p1, q0+k*q1)
	upper := big.NewRat(p1, q1)

	dl := new(big.Rat).Sub(lower, r)
	du := new(big.Rat).Sub(upper, r)
	if du.Abs(du).Cmp(dl.Abs(dl)) <= 0 {
		return upper
	}
	return lower
}
