//go:build !govips || !cgo

package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/dunamismax/mediaproc/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdOrientRotate90(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 10, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 10; x++ {
			src.SetNRGBA(x, y, color.NRGBA{B: 255, A: 255})
		}
	}
	red := color.NRGBA{R: 255, A: 255}
	src.SetNRGBA(0, 0, red)

	out, err := stdCodec{}.orient(&stdCanvas{img: src}, OrientationRotate90)
	require.NoError(t, err)
	assert.Equal(t, Dimensions{Width: 20, Height: 10}, out.Size())

	// Clockwise: the top-left pixel moves to the top-right corner.
	img := out.(*stdCanvas).img
	assert.Equal(t, red, color.NRGBAModel.Convert(img.At(19, 0)))
	assert.NotEqual(t, red, color.NRGBAModel.Convert(img.At(0, 0)))
}

func TestStdOrientAllVariants(t *testing.T) {
	// A 2x3 image with distinct pixels; where does the top-left pixel land?
	src := image.NewNRGBA(image.Rect(0, 0, 2, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 2; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: uint8(x*100 + y*10), A: 255})
		}
	}
	marker := src.NRGBAAt(0, 0)

	tests := []struct {
		o    Orientation
		size Dimensions
		at   image.Point
	}{
		{o: OrientationNormal, size: Dimensions{2, 3}, at: image.Pt(0, 0)},
		{o: OrientationFlipHorizontal, size: Dimensions{2, 3}, at: image.Pt(1, 0)},
		{o: OrientationRotate180, size: Dimensions{2, 3}, at: image.Pt(1, 2)},
		{o: OrientationFlipVertical, size: Dimensions{2, 3}, at: image.Pt(0, 2)},
		{o: OrientationTranspose, size: Dimensions{3, 2}, at: image.Pt(0, 0)},
		{o: OrientationRotate90, size: Dimensions{3, 2}, at: image.Pt(2, 0)},
		{o: OrientationTransverse, size: Dimensions{3, 2}, at: image.Pt(2, 1)},
		{o: OrientationRotate270, size: Dimensions{3, 2}, at: image.Pt(0, 1)},
	}

	for _, tc := range tests {
		t.Run(tc.o.String(), func(t *testing.T) {
			clone := image.NewNRGBA(src.Bounds())
			copy(clone.Pix, src.Pix)

			out, err := stdCodec{}.orient(&stdCanvas{img: clone}, tc.o)
			require.NoError(t, err)
			assert.Equal(t, tc.size, out.Size())
			got := color.NRGBAModel.Convert(out.(*stdCanvas).img.At(tc.at.X, tc.at.Y))
			assert.Equal(t, marker, got)
		})
	}
}

func TestStdTransformJPEGWithOrientation(t *testing.T) {
	input := withEXIF(encodeJPEG(t, gradientImage(10, 20)), 6)
	tr := NewTransformer(domain.DefaultLimits())

	res, err := tr.Transform(context.Background(), input, domain.NewTransformParams(nil, nil, domain.FormatJPEG, nil))
	require.NoError(t, err)
	assert.Equal(t, OrientationRotate90, res.Orientation)
	assert.Equal(t, 20, res.Width)
	assert.Equal(t, 10, res.Height)
	assert.Equal(t, []byte{0xFF, 0xD8}, res.Data[:2])

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Width)
	assert.Equal(t, 10, cfg.Height)
}

func TestStdTransformPNGWithOrientationChunk(t *testing.T) {
	input := withPNGEXIF(encodePNG(t, gradientImage(10, 20)), orientationTIFF(6))
	tr := NewTransformer(domain.DefaultLimits())

	res, err := tr.Transform(context.Background(), input, domain.NewTransformParams(nil, nil, "", nil))
	require.NoError(t, err)
	assert.Equal(t, domain.FormatPNG, res.Format)
	assert.Equal(t, OrientationRotate90, res.Orientation)
	assert.Equal(t, 20, res.Width)
	assert.Equal(t, 10, res.Height)

	cfg, err := png.DecodeConfig(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Width)
	assert.Equal(t, 10, cfg.Height)
	assert.False(t, bytes.Contains(res.Data, []byte("eXIf")))
}

func TestStdTransformStripsMetadata(t *testing.T) {
	input := withEXIF(encodeJPEG(t, gradientImage(16, 16)), 1)
	require.True(t, bytes.Contains(input, []byte("Exif\x00\x00")))

	tr := NewTransformer(domain.DefaultLimits())
	res, err := tr.Transform(context.Background(), input, domain.NewTransformParams(nil, nil, "", nil))
	require.NoError(t, err)
	assert.Equal(t, domain.FormatJPEG, res.Format)
	assert.False(t, bytes.Contains(res.Data, []byte("Exif\x00\x00")))
}

func TestStdTransformPNGIsLossless(t *testing.T) {
	src := gradientImage(24, 16)
	tr := NewTransformer(domain.DefaultLimits())

	res, err := tr.Transform(context.Background(), encodePNG(t, src), domain.NewTransformParams(nil, nil, domain.FormatPNG, domain.Int(10)))
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.ContentType)

	decoded, err := png.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	require.Equal(t, src.Bounds(), decoded.Bounds())
	for y := 0; y < 16; y++ {
		for x := 0; x < 24; x++ {
			if got := color.NRGBAModel.Convert(decoded.At(x, y)); got != src.NRGBAAt(x, y) {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, src.NRGBAAt(x, y))
			}
		}
	}
}

func TestStdTransformResizes(t *testing.T) {
	tr := NewTransformer(domain.DefaultLimits())

	res, err := tr.Transform(context.Background(), encodePNG(t, gradientImage(192, 108)), domain.NewTransformParams(domain.Int(80), domain.Int(60), domain.FormatPNG, nil))
	require.NoError(t, err)
	assert.True(t, res.Resized)

	cfg, err := png.DecodeConfig(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, 80, cfg.Width)
	assert.Equal(t, 45, cfg.Height)
}

func TestStdTransformNeverEnlarges(t *testing.T) {
	tr := NewTransformer(domain.DefaultLimits())

	res, err := tr.Transform(context.Background(), encodePNG(t, gradientImage(40, 20)), domain.NewTransformParams(domain.Int(400), nil, domain.FormatPNG, nil))
	require.NoError(t, err)
	assert.False(t, res.Resized)
	assert.Equal(t, 40, res.Width)
	assert.Equal(t, 20, res.Height)
}

func TestStdTransformEncodesEveryFormat(t *testing.T) {
	input := encodePNG(t, gradientImage(16, 16))
	tr := NewTransformer(domain.DefaultLimits())

	check := map[domain.OutputFormat]func(t *testing.T, data []byte){
		domain.FormatJPEG: func(t *testing.T, data []byte) {
			assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, data[:3])
		},
		domain.FormatPNG: func(t *testing.T, data []byte) {
			assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), data[:8])
		},
		domain.FormatWebP: func(t *testing.T, data []byte) {
			assert.Equal(t, "RIFF", string(data[:4]))
			assert.Equal(t, "WEBP", string(data[8:12]))
		},
		domain.FormatAVIF: func(t *testing.T, data []byte) {
			assert.Equal(t, "ftypavif", string(data[4:12]))
		},
	}

	for format, assertFn := range check {
		t.Run(string(format), func(t *testing.T) {
			res, err := tr.Transform(context.Background(), input, domain.NewTransformParams(nil, nil, format, nil))
			require.NoError(t, err)
			assert.Equal(t, format, res.Format)
			assert.Equal(t, format.ContentType(), res.ContentType)
			require.Greater(t, len(res.Data), 12)
			assertFn(t, res.Data)
		})
	}
}

func TestStdTransformJPEGQualityAffectsSize(t *testing.T) {
	input := encodePNG(t, gradientImage(64, 64))
	tr := NewTransformer(domain.DefaultLimits())

	low, err := tr.Transform(context.Background(), input, domain.NewTransformParams(nil, nil, domain.FormatJPEG, domain.Int(10)))
	require.NoError(t, err)
	high, err := tr.Transform(context.Background(), input, domain.NewTransformParams(nil, nil, domain.FormatJPEG, domain.Int(95)))
	require.NoError(t, err)
	assert.Less(t, len(low.Data), len(high.Data))
}

func TestStdTransformPreservesSourceFormat(t *testing.T) {
	tr := NewTransformer(domain.DefaultLimits())
	img := gradientImage(8, 8)

	res, err := tr.Transform(context.Background(), encodePNG(t, img), domain.NewTransformParams(nil, nil, "", nil))
	require.NoError(t, err)
	assert.Equal(t, domain.FormatPNG, res.Format)

	res, err = tr.Transform(context.Background(), encodeJPEG(t, img), domain.NewTransformParams(nil, nil, "", nil))
	require.NoError(t, err)
	assert.Equal(t, domain.FormatJPEG, res.Format)

	res, err = tr.Transform(context.Background(), encodeGIF(t, img), domain.NewTransformParams(nil, nil, "", nil))
	require.NoError(t, err)
	assert.Equal(t, "gif", res.SourceFormat)
	assert.Equal(t, domain.FormatJPEG, res.Format)
	assert.Equal(t, "image/jpeg", res.ContentType)
}

func TestStdTransformRejectsDecompressionBomb(t *testing.T) {
	input := withPNGSize(encodePNG(t, gradientImage(4, 4)), 50000, 50000)
	tr := NewTransformer(domain.DefaultLimits())

	_, err := tr.Transform(context.Background(), input, domain.NewTransformParams(domain.Int(100), nil, domain.FormatJPEG, nil))
	require.ErrorIs(t, err, domain.ErrResolutionTooLarge)

	var resErr *domain.ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, 50000, resErr.Width)
	assert.Equal(t, 50000, resErr.Height)
}

func TestStdTransformRejectsCorruptInput(t *testing.T) {
	valid := encodePNG(t, gradientImage(32, 32))
	tr := NewTransformer(domain.DefaultLimits())

	_, err := tr.Transform(context.Background(), valid[:len(valid)/2], domain.NewTransformParams(nil, nil, domain.FormatJPEG, nil))
	require.ErrorIs(t, err, domain.ErrProcessingFailed)

	_, err = tr.Transform(context.Background(), []byte{0x00, 0x01, 0x02}, domain.NewTransformParams(nil, nil, domain.FormatJPEG, nil))
	require.ErrorIs(t, err, domain.ErrProcessingFailed)
}

func TestStdBackendName(t *testing.T) {
	assert.Equal(t, "imaging", Backend())
	require.NoError(t, Startup())
	Shutdown()
}
