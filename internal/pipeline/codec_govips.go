//go:build govips && cgo

package pipeline

import (
	"fmt"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/dunamismax/mediaproc/internal/domain"
)

type vipsCanvas struct {
	ref *vips.ImageRef
}

func (c *vipsCanvas) Size() Dimensions {
	return Dimensions{Width: c.ref.Width(), Height: c.ref.Height()}
}

func (c *vipsCanvas) Close() {
	if c.ref != nil {
		c.ref.Close()
		c.ref = nil
	}
}

// vipsCodec runs every stage in libvips.
type vipsCodec struct{}

func (vipsCodec) inspect(input []byte) (Dimensions, error) {
	ref, err := vips.NewImageFromBuffer(input)
	if err != nil {
		return Dimensions{}, err
	}
	defer ref.Close()
	return Dimensions{Width: ref.Width(), Height: ref.Height()}, nil
}

func (vipsCodec) decode(input []byte) (canvas, error) {
	ref, err := vips.NewImageFromBuffer(input)
	if err != nil {
		return nil, err
	}
	return &vipsCanvas{ref: ref}, nil
}

func (vipsCodec) orient(c canvas, o Orientation) (canvas, error) {
	vc, err := asVipsCanvas(c)
	if err != nil {
		return nil, err
	}

	// libvips rotates clockwise.
	switch o {
	case OrientationFlipHorizontal:
		err = vc.ref.Flip(vips.DirectionHorizontal)
	case OrientationRotate180:
		err = vc.ref.Rotate(vips.Angle180)
	case OrientationFlipVertical:
		err = vc.ref.Flip(vips.DirectionVertical)
	case OrientationTranspose:
		if err = vc.ref.Rotate(vips.Angle90); err == nil {
			err = vc.ref.Flip(vips.DirectionHorizontal)
		}
	case OrientationRotate90:
		err = vc.ref.Rotate(vips.Angle90)
	case OrientationTransverse:
		if err = vc.ref.Rotate(vips.Angle270); err == nil {
			err = vc.ref.Flip(vips.DirectionHorizontal)
		}
	case OrientationRotate270:
		err = vc.ref.Rotate(vips.Angle270)
	}
	if err != nil {
		return nil, err
	}
	return vc, nil
}

func (vipsCodec) resize(c canvas, to Dimensions) (canvas, error) {
	vc, err := asVipsCanvas(c)
	if err != nil {
		return nil, err
	}

	from := vc.Size()
	hscale := float64(to.Width) / float64(from.Width)
	vscale := float64(to.Height) / float64(from.Height)
	if err := vc.ref.ResizeWithVScale(hscale, vscale, vips.KernelLanczos3); err != nil {
		return nil, err
	}
	return vc, nil
}

func (vipsCodec) encode(c canvas, format domain.OutputFormat, quality int) ([]byte, error) {
	vc, err := asVipsCanvas(c)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch format {
	case domain.FormatJPEG:
		params := vips.NewJpegExportParams()
		params.Quality = quality
		params.StripMetadata = true
		data, _, err = vc.ref.ExportJpeg(params)
	case domain.FormatPNG:
		params := vips.NewPngExportParams()
		params.StripMetadata = true
		data, _, err = vc.ref.ExportPng(params)
	case domain.FormatWebP:
		params := vips.NewWebpExportParams()
		params.Quality = quality
		params.Lossless = false
		params.StripMetadata = true
		data, _, err = vc.ref.ExportWebp(params)
	case domain.FormatAVIF:
		params := vips.NewAvifExportParams()
		params.Quality = quality
		params.Speed = avifSpeed
		params.StripMetadata = true
		data, _, err = vc.ref.ExportAvif(params)
	default:
		return nil, fmt.Errorf("no encoder for %q", format)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func asVipsCanvas(c canvas) (*vipsCanvas, error) {
	vc, ok := c.(*vipsCanvas)
	if !ok || vc.ref == nil {
		return nil, fmt.Errorf("canvas %T is not a decoded image", c)
	}
	return vc, nil
}
