package pipeline

import (
	"bytes"
	"encoding/binary"

	"github.com/rwcarlsen/goexif/exif"
)

var (
	pngSignature = []byte("\x89PNG\r\n\x1a\n")
	exifHeader   = []byte("Exif\x00\x00")
)

// Orientation is the EXIF orientation tag value, 1 through 8.
type Orientation int

const (
	OrientationNormal Orientation = iota + 1
	OrientationFlipHorizontal
	OrientationRotate180
	OrientationFlipVertical
	OrientationTranspose
	OrientationRotate90
	OrientationTransverse
	OrientationRotate270
)

// OrientationFromTag maps a raw tag value. Values outside 1-8 are reported as absent.
func OrientationFromTag(v int) (Orientation, bool) {
	if v < int(OrientationNormal) || v > int(OrientationRotate270) {
		return 0, false
	}
	return Orientation(v), true
}

// ReadOrientation looks for an EXIF orientation tag in data: JPEG APP1 and
// bare TIFF directly, PNG eXIf and WebP EXIF chunks via their TIFF payload.
// Missing or malformed EXIF yields false; it is never an error.
func ReadOrientation(data []byte) (o Orientation, ok bool) {
	defer func() {
		// goexif can panic on truncated IFDs.
		if recover() != nil {
			o, ok = 0, false
		}
	}()

	payload := exifPayload(data)
	if len(payload) == 0 {
		return 0, false
	}
	x, err := exif.Decode(bytes.NewReader(payload))
	if err != nil || x == nil {
		return 0, false
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0, false
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0, false
	}
	return OrientationFromTag(v)
}

// exifPayload returns the bytes to hand to the EXIF parser. Containers that
// keep EXIF in a chunk yield only that chunk; nil means the container has none.
func exifPayload(data []byte) []byte {
	switch {
	case bytes.HasPrefix(data, pngSignature):
		return trimExifHeader(pngChunk(data[len(pngSignature):], "eXIf"))
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return trimExifHeader(riffChunk(data[12:], "EXIF"))
	default:
		return data
	}
}

// pngChunk walks length/type/data/crc chunks until IEND.
func pngChunk(chunks []byte, want string) []byte {
	for len(chunks) >= 12 {
		n := binary.BigEndian.Uint32(chunks[0:4])
		typ := string(chunks[4:8])
		if uint64(n)+12 > uint64(len(chunks)) {
			return nil
		}
		if typ == want {
			return chunks[8 : 8+n]
		}
		if typ == "IEND" {
			return nil
		}
		chunks = chunks[12+n:]
	}
	return nil
}

// riffChunk walks fourcc/size/data chunks; odd sizes carry one pad byte.
func riffChunk(chunks []byte, want string) []byte {
	for len(chunks) >= 8 {
		n := uint64(binary.LittleEndian.Uint32(chunks[4:8]))
		if n+8 > uint64(len(chunks)) {
			return nil
		}
		if string(chunks[0:4]) == want {
			return chunks[8 : 8+n]
		}
		next := 8 + n + n&1
		if next > uint64(len(chunks)) {
			return nil
		}
		chunks = chunks[next:]
	}
	return nil
}

// trimExifHeader drops the "Exif\0\0" prefix some writers keep in chunk payloads.
func trimExifHeader(payload []byte) []byte {
	return bytes.TrimPrefix(payload, exifHeader)
}

// SwapsAxes reports whether applying o exchanges width and height.
func (o Orientation) SwapsAxes() bool {
	switch o {
	case OrientationTranspose, OrientationRotate90, OrientationTransverse, OrientationRotate270:
		return true
	default:
		return false
	}
}

func (o Orientation) String() string {
	switch o {
	case OrientationNormal:
		return "normal"
	case OrientationFlipHorizontal:
		return "flip_horizontal"
	case OrientationRotate180:
		return "rotate_180"
	case OrientationFlipVertical:
		return "flip_vertical"
	case OrientationTranspose:
		return "transpose"
	case OrientationRotate90:
		return "rotate_90"
	case OrientationTransverse:
		return "transverse"
	case OrientationRotate270:
		return "rotate_270"
	default:
		return "none"
	}
}
