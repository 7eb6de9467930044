package pipeline

import "github.com/dunamismax/mediaproc/internal/domain"

const (
	// avifSpeed trades encode time for size, 0 (slowest) to 10.
	avifSpeed = 4
	// webpMethod is the libwebp effort level, 0 (fastest) to 6.
	webpMethod = 4
)

// canvas is a decoded pixel buffer owned by a single transform.
type canvas interface {
	Size() Dimensions
	Close()
}

// codec is the pixel backend. Implementations are selected at build time.
type codec interface {
	// inspect reads the natural size without decoding pixel data.
	inspect(input []byte) (Dimensions, error)
	decode(input []byte) (canvas, error)
	orient(c canvas, o Orientation) (canvas, error)
	resize(c canvas, to Dimensions) (canvas, error)
	encode(c canvas, format domain.OutputFormat, quality int) ([]byte, error)
}
