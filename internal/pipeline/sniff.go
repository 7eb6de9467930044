package pipeline

import (
	"errors"
	"fmt"

	"github.com/dunamismax/mediaproc/internal/domain"
	"github.com/gabriel-vasile/mimetype"
)

var ErrUnrecognizedFormat = errors.New("unrecognized image format")

// sourceFormats are the containers the decoders can read, keyed by MIME type.
var sourceFormats = []struct {
	mime   string
	format string
}{
	{mime: "image/jpeg", format: "jpeg"},
	{mime: "image/png", format: "png"},
	{mime: "image/gif", format: "gif"},
	{mime: "image/webp", format: "webp"},
	{mime: "image/bmp", format: "bmp"},
	{mime: "image/tiff", format: "tiff"},
	{mime: "image/avif", format: "avif"},
}

// sniffFormat identifies the container from content alone.
func sniffFormat(input []byte) (string, error) {
	mt := mimetype.Detect(input)
	for _, sf := range sourceFormats {
		if mt.Is(sf.mime) {
			return sf.format, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnrecognizedFormat, mt.String())
}

// selectFormat returns the requested format, or the source format when it is
// itself encodable, or JPEG.
func selectFormat(requested domain.OutputFormat, source string) domain.OutputFormat {
	if requested.Valid() {
		return requested
	}
	if f := domain.OutputFormat(source); f.Valid() {
		return f
	}
	return domain.FormatJPEG
}
