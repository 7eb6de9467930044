package pipeline

import (
	"context"

	"github.com/dunamismax/mediaproc/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "mediaproc/pipeline"

// Result is the encoded output of one transform.
type Result struct {
	Data         []byte
	ContentType  string
	Format       domain.OutputFormat
	SourceFormat string
	Width        int
	Height       int
	SourceWidth  int
	SourceHeight int
	Orientation  Orientation
	Resized      bool
}

// Transformer runs decode, orientation, planning, resize and encode over an
// owned input buffer. It holds no per-request state and is safe for
// concurrent use.
type Transformer struct {
	codec  codec
	limits domain.Limits
	tracer trace.Tracer
}

func NewTransformer(limits domain.Limits) *Transformer {
	return newTransformerWithCodec(newCodec(), limits)
}

func newTransformerWithCodec(c codec, limits domain.Limits) *Transformer {
	return &Transformer{
		codec:  c,
		limits: limits.Normalize(),
		tracer: otel.Tracer(tracerName),
	}
}

func (t *Transformer) Limits() domain.Limits {
	return t.limits
}

// Transform always decodes and re-encodes, even without a resize, so that
// EXIF and XMP never reach the output. Any stage failure aborts with that
// stage's error and no partial output.
func (t *Transformer) Transform(ctx context.Context, input []byte, params domain.TransformParams) (Result, error) {
	ctx, span := t.tracer.Start(ctx, "pipeline.transform")
	defer span.End()

	res, err := t.transform(ctx, span, input, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	span.SetAttributes(
		attribute.String("image.format", string(res.Format)),
		attribute.Int("image.width", res.Width),
		attribute.Int("image.height", res.Height),
		attribute.Int("image.bytes", len(res.Data)),
	)
	return res, nil
}

func (t *Transformer) transform(ctx context.Context, span trace.Span, input []byte, params domain.TransformParams) (Result, error) {
	if err := params.Validate(t.limits); err != nil {
		return Result{}, err
	}

	sourceFormat, err := sniffFormat(input)
	if err != nil {
		return Result{}, &domain.ProcessingError{Stage: "decode", Err: err}
	}

	natural, err := t.codec.inspect(input)
	if err != nil {
		return Result{}, &domain.ProcessingError{Stage: "decode", Err: err}
	}
	if err := t.limits.CheckSource(natural.Width, natural.Height); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	span.AddEvent("decode")
	img, err := t.codec.decode(input)
	if err != nil {
		return Result{}, &domain.ProcessingError{Stage: "decode", Err: err}
	}
	defer func() { img.Close() }()

	source := img.Size()
	if err := t.limits.CheckSource(source.Width, source.Height); err != nil {
		return Result{}, err
	}

	orientation, ok := ReadOrientation(input)
	if ok && orientation != OrientationNormal {
		span.AddEvent("orient", trace.WithAttributes(attribute.String("image.orientation", orientation.String())))
		oriented, err := t.codec.orient(img, orientation)
		if err != nil {
			return Result{}, &domain.ProcessingError{Stage: "orient", Err: err}
		}
		img = oriented
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	current := img.Size()
	target := current
	if params.Resizes() {
		target = ContainDimensions(current.Width, current.Height, params.Width, params.Height)
		if err := t.limits.CheckOutput(target.Width, target.Height); err != nil {
			return Result{}, err
		}
	}

	resized := false
	if target != current {
		if err := t.limits.CheckSource(target.Width, target.Height); err != nil {
			return Result{}, err
		}
		span.AddEvent("resize", trace.WithAttributes(attribute.String("image.target", target.String())))
		scaled, err := t.codec.resize(img, target)
		if err != nil {
			return Result{}, &domain.ProcessingError{Stage: "resize", Err: err}
		}
		img = scaled
		resized = true
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	format := selectFormat(params.Format, sourceFormat)
	quality := 0
	if format.HonorsQuality() {
		quality = params.Quality
	}

	span.AddEvent("encode", trace.WithAttributes(attribute.String("image.format", string(format))))
	data, err := t.codec.encode(img, format, quality)
	if err != nil {
		return Result{}, &domain.ProcessingError{Stage: "encode", Format: format, Err: err}
	}

	out := img.Size()
	return Result{
		Data:         data,
		ContentType:  format.ContentType(),
		Format:       format,
		SourceFormat: sourceFormat,
		Width:        out.Width,
		Height:       out.Height,
		SourceWidth:  source.Width,
		SourceHeight: source.Height,
		Orientation:  orientation,
		Resized:      resized,
	}, nil
}
