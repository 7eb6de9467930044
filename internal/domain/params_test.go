package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateParams(t *testing.T) {
	tests := []struct {
		name    string
		width   *int
		height  *int
		quality *int
		field   string
	}{
		{name: "all present", width: Int(800), height: Int(600), quality: Int(80)},
		{name: "all absent"},
		{name: "width and quality", width: Int(1920), quality: Int(90)},
		{name: "bounds", width: Int(1), height: Int(MaxDimension), quality: Int(100)},
		{name: "zero width", width: Int(0), field: "width"},
		{name: "wide", width: Int(5000), field: "width"},
		{name: "tall", height: Int(5000), field: "height"},
		{name: "negative height", height: Int(-1), field: "height"},
		{name: "zero quality", quality: Int(0), field: "quality"},
		{name: "quality over 100", quality: Int(101), field: "quality"},
		{name: "quality reported first", width: Int(0), height: Int(0), quality: Int(0), field: "quality"},
		{name: "width before height", width: Int(0), height: Int(0), field: "width"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateParams(tc.width, tc.height, tc.quality)
			if tc.field == "" {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var paramErr *ParamError
			require.True(t, errors.As(err, &paramErr))
			assert.Equal(t, tc.field, paramErr.Field)
		})
	}
}

func TestParamErrorCarriesValue(t *testing.T) {
	err := ValidateParams(Int(5000), nil, nil)

	var paramErr *ParamError
	require.True(t, errors.As(err, &paramErr))
	assert.Equal(t, 5000, paramErr.Value)
	assert.Equal(t, MaxDimension, paramErr.Max)
	assert.Equal(t, "width must be 1-4096, got 5000", err.Error())
}

func TestLimitsValidateParamsUsesConfiguredDimension(t *testing.T) {
	limits := Limits{MaxDimension: 100, MaxPixels: 10_000, DefaultQuality: 80}
	require.Error(t, limits.ValidateParams(Int(101), nil, nil))
	require.NoError(t, limits.ValidateParams(Int(100), nil, nil))
}

func TestLimitsNormalize(t *testing.T) {
	assert.Equal(t, DefaultLimits(), Limits{}.Normalize())

	custom := Limits{MaxDimension: 2048, MaxPixels: 50, DefaultQuality: 0}.Normalize()
	assert.Equal(t, 2048, custom.MaxDimension)
	assert.Equal(t, int64(50), custom.MaxPixels)
	assert.Equal(t, DefaultQuality, custom.DefaultQuality)
}

func TestLimitsExceedsPixels(t *testing.T) {
	limits := Limits{MaxDimension: MaxDimension, MaxPixels: 100}
	assert.False(t, limits.ExceedsPixels(10, 10))
	assert.True(t, limits.ExceedsPixels(10, 11))
}

func TestNewTransformParamsDefaultQuality(t *testing.T) {
	params := NewTransformParams(Int(800), Int(600), FormatJPEG, nil)
	assert.Equal(t, DefaultQuality, params.Quality)
	assert.True(t, params.Resizes())

	params = NewTransformParams(nil, nil, FormatPNG, Int(42))
	assert.Equal(t, 42, params.Quality)
	assert.False(t, params.Resizes())
}

func TestNewTransformParamsCopiesBounds(t *testing.T) {
	width := 300
	params := NewTransformParams(&width, nil, FormatJPEG, nil)
	width = 10
	require.NotNil(t, params.Width)
	assert.Equal(t, 300, *params.Width)
}

func TestTransformParamsValidate(t *testing.T) {
	params := NewTransformParams(nil, nil, FormatJPEG, Int(0))
	require.ErrorIs(t, params.Validate(DefaultLimits()), ErrValidation)
}

func TestLimitsCheckSourceAndOutput(t *testing.T) {
	limits := Limits{MaxDimension: 100, MaxPixels: 5_000, DefaultQuality: 80}

	require.NoError(t, limits.CheckSource(500, 10))
	err := limits.CheckSource(500, 11)
	require.ErrorIs(t, err, ErrResolutionTooLarge)

	var resErr *ResolutionError
	require.True(t, errors.As(err, &resErr))
	assert.Equal(t, 500, resErr.Width)
	assert.Equal(t, 11, resErr.Height)
	assert.Equal(t, 100, resErr.MaxDimension)

	require.NoError(t, limits.CheckOutput(100, 50))
	require.ErrorIs(t, limits.CheckOutput(101, 1), ErrResolutionTooLarge)
	require.ErrorIs(t, limits.CheckOutput(1, 101), ErrResolutionTooLarge)
	require.ErrorIs(t, limits.CheckOutput(100, 51), ErrResolutionTooLarge)
}
