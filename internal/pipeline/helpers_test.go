package pipeline

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

func gradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8((x * 255) / max(1, w-1)),
				G: uint8((y * 255) / max(1, h-1)),
				B: uint8(((x + y) * 7) % 256),
				A: 255,
			})
		}
	}
	return img
}

func encodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func encodeGIF(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	return buf.Bytes()
}

// orientationTIFF is a big-endian TIFF block with a single orientation tag.
func orientationTIFF(orientation uint16) []byte {
	return []byte{
		'M', 'M', 0x00, 0x2A, 0x00, 0x00, 0x00, 0x08,
		0x00, 0x01,
		0x01, 0x12, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, byte(orientation >> 8), byte(orientation), 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
}

// exifAPP1 builds an EXIF APP1 segment holding only an orientation tag.
func exifAPP1(orientation uint16) []byte {
	payload := append([]byte("Exif\x00\x00"), orientationTIFF(orientation)...)
	size := len(payload) + 2
	return append([]byte{0xFF, 0xE1, byte(size >> 8), byte(size)}, payload...)
}

// withEXIF splices an EXIF segment directly after the JPEG SOI marker.
func withEXIF(jpegData []byte, orientation uint16) []byte {
	out := make([]byte, 0, len(jpegData)+64)
	out = append(out, jpegData[:2]...)
	out = append(out, exifAPP1(orientation)...)
	return append(out, jpegData[2:]...)
}

// withPNGSize rewrites the IHDR dimensions of a PNG and fixes up its CRC,
// producing a header that claims a size the pixel data does not have.
func withPNGSize(pngData []byte, w, h uint32) []byte {
	out := append([]byte(nil), pngData...)
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

// pngChunkBytes frames data as a PNG chunk with a valid CRC.
func pngChunkBytes(typ string, data []byte) []byte {
	out := binary.BigEndian.AppendUint32(nil, uint32(len(data)))
	out = append(out, typ...)
	out = append(out, data...)
	return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(out[4:]))
}

// withPNGEXIF inserts an eXIf chunk right after IHDR.
func withPNGEXIF(pngData []byte, payload []byte) []byte {
	const ihdrEnd = 8 + 12 + 13
	out := make([]byte, 0, len(pngData)+len(payload)+12)
	out = append(out, pngData[:ihdrEnd]...)
	out = append(out, pngChunkBytes("eXIf", payload)...)
	return append(out, pngData[ihdrEnd:]...)
}

// webpContainer wraps RIFF chunks in a WEBP file header. It only models the
// container; the chunks need not hold a decodable bitstream.
func webpContainer(chunks ...[]byte) []byte {
	var body []byte
	body = append(body, "WEBP"...)
	for _, c := range chunks {
		body = append(body, c...)
	}
	out := append([]byte("RIFF"), binary.LittleEndian.AppendUint32(nil, uint32(len(body)))...)
	return append(out, body...)
}

func riffChunkBytes(fourcc string, data []byte) []byte {
	out := append([]byte(fourcc), binary.LittleEndian.AppendUint32(nil, uint32(len(data)))...)
	out = append(out, data...)
	if len(data)%2 == 1 {
		out = append(out, 0)
	}
	return out
}
