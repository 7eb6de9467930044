package domain

const (
	MaxDimension   = 4096
	MaxPixels      = int64(1_000_000_000)
	DefaultQuality = 80
	MinQuality     = 1
	MaxQuality     = 100
)

// Limits are the resource caps enforced by validation and the pipeline.
// They are built once at startup and never mutated afterwards.
type Limits struct {
	MaxDimension   int
	MaxPixels      int64
	DefaultQuality int
}

func DefaultLimits() Limits {
	return Limits{
		MaxDimension:   MaxDimension,
		MaxPixels:      MaxPixels,
		DefaultQuality: DefaultQuality,
	}
}

// Normalize fills unset fields from the defaults.
func (l Limits) Normalize() Limits {
	def := DefaultLimits()
	if l.MaxDimension <= 0 {
		l.MaxDimension = def.MaxDimension
	}
	if l.MaxPixels <= 0 {
		l.MaxPixels = def.MaxPixels
	}
	if l.DefaultQuality < MinQuality || l.DefaultQuality > MaxQuality {
		l.DefaultQuality = def.DefaultQuality
	}
	return l
}

// ValidateParams checks each present value independently, in the order
// quality, width, height, and reports the first violation.
func (l Limits) ValidateParams(width, height, quality *int) error {
	if quality != nil && (*quality < MinQuality || *quality > MaxQuality) {
		return &ParamError{Field: "quality", Value: *quality, Min: MinQuality, Max: MaxQuality}
	}
	if width != nil && (*width < 1 || *width > l.MaxDimension) {
		return &ParamError{Field: "width", Value: *width, Min: 1, Max: l.MaxDimension}
	}
	if height != nil && (*height < 1 || *height > l.MaxDimension) {
		return &ParamError{Field: "height", Value: *height, Min: 1, Max: l.MaxDimension}
	}
	return nil
}

// ValidateParams validates against the default limits.
func ValidateParams(width, height, quality *int) error {
	return DefaultLimits().ValidateParams(width, height, quality)
}

// ExceedsPixels reports whether width*height is over the pixel cap.
func (l Limits) ExceedsPixels(width, height int) bool {
	return int64(width)*int64(height) > l.MaxPixels
}

// CheckSource rejects decoded images whose pixel count is over the cap.
func (l Limits) CheckSource(width, height int) error {
	if l.ExceedsPixels(width, height) {
		return l.resolutionError(width, height)
	}
	return nil
}

// CheckOutput rejects planned output over either the per-axis or the pixel cap.
func (l Limits) CheckOutput(width, height int) error {
	if width > l.MaxDimension || height > l.MaxDimension || l.ExceedsPixels(width, height) {
		return l.resolutionError(width, height)
	}
	return nil
}

func (l Limits) resolutionError(width, height int) error {
	return &ResolutionError{
		Width:        width,
		Height:       height,
		MaxDimension: l.MaxDimension,
		MaxPixels:    l.MaxPixels,
	}
}

// TransformParams describes one transformation request. Width and Height are
// optional upper bounds; an empty Format keeps the source format.
type TransformParams struct {
	Width   *int
	Height  *int
	Format  OutputFormat
	Quality int
}

// NewTransformParams applies DefaultQuality when quality is absent.
func NewTransformParams(width, height *int, format OutputFormat, quality *int) TransformParams {
	q := DefaultQuality
	if quality != nil {
		q = *quality
	}
	return TransformParams{
		Width:   copyInt(width),
		Height:  copyInt(height),
		Format:  format,
		Quality: q,
	}
}

func (p TransformParams) Validate(l Limits) error {
	q := p.Quality
	return l.ValidateParams(p.Width, p.Height, &q)
}

// Resizes reports whether any dimension bound was requested.
func (p TransformParams) Resizes() bool {
	return p.Width != nil || p.Height != nil
}

// Int returns a pointer to v, for optional parameters.
func Int(v int) *int {
	return &v
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	return Int(*v)
}
