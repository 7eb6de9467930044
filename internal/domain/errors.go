package domain

import (
	"errors"
	"fmt"
)

// Kind sentinels. Every structured error below matches exactly one of them via errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrResolutionTooLarge = errors.New("resolution too large")
	ErrProcessingFailed   = errors.New("processing failed")
)

type KeyReason string

const (
	KeyEmpty            KeyReason = "empty"
	KeyTooLong          KeyReason = "too_long"
	KeyBadEncoding      KeyReason = "bad_encoding"
	KeyTraversal        KeyReason = "path_traversal"
	KeyInvalidCharacter KeyReason = "invalid_character"
)

// KeyError rejects an object key. Key holds the raw key as received.
type KeyError struct {
	Key    string
	Reason KeyReason
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("invalid key: %s", e.Reason)
}

func (e *KeyError) Is(target error) bool {
	return target == ErrValidation
}

// ParamError names the first out-of-range transform parameter.
type ParamError struct {
	Field string
	Value int
	Min   int
	Max   int
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s must be %d-%d, got %d", e.Field, e.Min, e.Max, e.Value)
}

func (e *ParamError) Is(target error) bool {
	return target == ErrValidation
}

// ResolutionError carries the dimensions that broke the axis or pixel-count
// limits, along with the limits in force.
type ResolutionError struct {
	Width        int
	Height       int
	MaxDimension int
	MaxPixels    int64
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("image resolution %dx%d exceeds limits", e.Width, e.Height)
}

func (e *ResolutionError) Is(target error) bool {
	return target == ErrResolutionTooLarge
}

// ProcessingError wraps a codec failure in the named stage (decode, orient, resize, encode).
type ProcessingError struct {
	Stage  string
	Format OutputFormat
	Err    error
}

func (e *ProcessingError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("%s %s: %v", e.Stage, e.Format, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

func (e *ProcessingError) Is(target error) bool {
	return target == ErrProcessingFailed
}
