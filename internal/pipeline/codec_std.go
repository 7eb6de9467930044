//go:build !govips || !cgo

package pipeline

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/dunamismax/mediaproc/internal/domain"
	"github.com/gen2brain/avif"
	"github.com/gen2brain/webp"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type stdCanvas struct {
	img image.Image
}

func (c *stdCanvas) Size() Dimensions {
	b := c.img.Bounds()
	return Dimensions{Width: b.Dx(), Height: b.Dy()}
}

func (c *stdCanvas) Close() {
	c.img = nil
}

// stdCodec is the pure Go backend built on imaging and the gen2brain encoders.
type stdCodec struct{}

func (stdCodec) inspect(input []byte) (Dimensions, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(input))
	if err != nil {
		return Dimensions{}, err
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}

func (stdCodec) decode(input []byte) (canvas, error) {
	img, _, err := image.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, err
	}
	return &stdCanvas{img: img}, nil
}

func (stdCodec) orient(c canvas, o Orientation) (canvas, error) {
	sc, err := asStdCanvas(c)
	if err != nil {
		return nil, err
	}

	// imaging rotates counter-clockwise.
	switch o {
	case OrientationFlipHorizontal:
		sc.img = imaging.FlipH(sc.img)
	case OrientationRotate180:
		sc.img = imaging.Rotate180(sc.img)
	case OrientationFlipVertical:
		sc.img = imaging.FlipV(sc.img)
	case OrientationTranspose:
		sc.img = imaging.Transpose(sc.img)
	case OrientationRotate90:
		sc.img = imaging.Rotate270(sc.img)
	case OrientationTransverse:
		sc.img = imaging.Transverse(sc.img)
	case OrientationRotate270:
		sc.img = imaging.Rotate90(sc.img)
	}
	return sc, nil
}

func (stdCodec) resize(c canvas, to Dimensions) (canvas, error) {
	sc, err := asStdCanvas(c)
	if err != nil {
		return nil, err
	}
	sc.img = imaging.Resize(sc.img, to.Width, to.Height, imaging.Lanczos)
	return sc, nil
}

func (stdCodec) encode(c canvas, format domain.OutputFormat, quality int) ([]byte, error) {
	sc, err := asStdCanvas(c)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	switch format {
	case domain.FormatJPEG:
		err = imaging.Encode(&buf, sc.img, imaging.JPEG, imaging.JPEGQuality(quality))
	case domain.FormatPNG:
		err = imaging.Encode(&buf, sc.img, imaging.PNG, imaging.PNGCompressionLevel(png.DefaultCompression))
	case domain.FormatWebP:
		err = webp.Encode(&buf, sc.img, webp.Options{Quality: quality, Method: webpMethod})
	case domain.FormatAVIF:
		err = avif.Encode(&buf, sc.img, avif.Options{
			Quality:           quality,
			QualityAlpha:      quality,
			Speed:             avifSpeed,
			ChromaSubsampling: image.YCbCrSubsampleRatio420,
		})
	default:
		return nil, fmt.Errorf("no encoder for %q", format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func asStdCanvas(c canvas) (*stdCanvas, error) {
	sc, ok := c.(*stdCanvas)
	if !ok || sc.img == nil {
		return nil, fmt.Errorf("canvas %T is not a decoded image", c)
	}
	return sc, nil
}
