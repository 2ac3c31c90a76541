package testutil

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"sort"
	"time"
)

// Photo describes the EXIF block written by PhotoJPEG.
type Photo struct {
	Make    string
	Model   string
	TakenAt time.Time
	// Exposure, FNumber and FocalLength are numerator/denominator pairs.
	Exposure    [2]uint32
	FNumber     [2]uint32
	FocalLength [2]uint32
	ISO         uint16
}

// DefaultPhoto is a typical camera shot.
var DefaultPhoto = Photo{
	Make:        "Canon",
	Model:       "EOS 5D",
	TakenAt:     time.Date(2023, 7, 14, 18, 30, 5, 0, time.UTC),
	Exposure:    [2]uint32{10, 2500},
	FNumber:     [2]uint32{28, 10},
	FocalLength: [2]uint32{50, 1},
	ISO:         200,
}

// PhotoJPEG encodes a w x h JPEG carrying an EXIF APP1 segment for p.
func PhotoJPEG(w, h int, p Photo) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 5), B: 90, A: 255})
		}
	}
	var enc bytes.Buffer
	if err := jpeg.Encode(&enc, img, nil); err != nil {
		panic(err)
	}

	ts := p.TakenAt.Format("2006:01:02 15:04:05")
	exifIFD := []tiffEntry{
		rationalEntry(0x829A, p.Exposure),
		rationalEntry(0x829D, p.FNumber),
		{tag: 0x8827, typ: 3, count: 1, data: binary.LittleEndian.AppendUint16(nil, p.ISO)},
		asciiEntry(0x9003, ts),
		asciiEntry(0x9004, ts),
		rationalEntry(0x920A, p.FocalLength),
	}
	ifd0 := []tiffEntry{
		asciiEntry(0x010F, p.Make),
		asciiEntry(0x0110, p.Model),
		{tag: 0x8769, typ: 4, count: 1}, // Exif IFD pointer, filled in by encodeTIFF
	}
	tiff := encodeTIFF(ifd0, exifIFD)

	app1 := append([]byte("Exif\x00\x00"), tiff...)
	var out bytes.Buffer
	out.Write(enc.Bytes()[:2]) // SOI
	out.Write([]byte{0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(len(app1)+2))
	out.Write(app1)
	out.Write(enc.Bytes()[2:])
	return out.Bytes()
}

type tiffEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

func asciiEntry(tag uint16, s string) tiffEntry {
	return tiffEntry{tag: tag, typ: 2, count: uint32(len(s) + 1), data: append([]byte(s), 0)}
}

func rationalEntry(tag uint16, r [2]uint32) tiffEntry {
	data := binary.LittleEndian.AppendUint32(nil, r[0])
	data = binary.LittleEndian.AppendUint32(data, r[1])
	return tiffEntry{tag: tag, typ: 5, count: 1, data: data}
}

// encodeTIFF lays out a little-endian TIFF with ifd0 followed by the Exif
// IFD, then every value too large to sit inline.
func encodeTIFF(ifd0, exifIFD []tiffEntry) []byte {
	ifdSize := func(n int) uint32 { return uint32(2 + 12*n + 4) }
	ifd0At := uint32(8)
	exifAt := ifd0At + ifdSize(len(ifd0))
	dataAt := exifAt + ifdSize(len(exifIFD))

	for i := range ifd0 {
		if ifd0[i].tag == 0x8769 {
			ifd0[i].data = binary.LittleEndian.AppendUint32(nil, exifAt)
		}
	}

	var data []byte
	writeIFD := func(buf *bytes.Buffer, entries []tiffEntry) {
		sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })
		binary.Write(buf, binary.LittleEndian, uint16(len(entries)))
		for _, e := range entries {
			binary.Write(buf, binary.LittleEndian, e.tag)
			binary.Write(buf, binary.LittleEndian, e.typ)
			binary.Write(buf, binary.LittleEndian, e.count)
			if len(e.data) <= 4 {
				var inline [4]byte
				copy(inline[:], e.data)
				buf.Write(inline[:])
				continue
			}
			binary.Write(buf, binary.LittleEndian, dataAt+uint32(len(data)))
			data = append(data, e.data...)
			if len(data)%2 == 1 {
				data = append(data, 0)
			}
		}
		binary.Write(buf, binary.LittleEndian, uint32(0)) // no next IFD
	}

	var buf bytes.Buffer
	buf.WriteString("II*\x00")
	binary.Write(&buf, binary.LittleEndian, ifd0At)
	writeIFD(&buf, ifd0)
	writeIFD(&buf, exifIFD)
	buf.Write(data)
	return buf.Bytes()
}
