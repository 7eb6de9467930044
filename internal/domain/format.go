package domain

import (
	"fmt"
	"strings"
)

// OutputFormat is one of the encodable output codecs. The zero value means
// "not requested" and is never returned by ParseOutputFormat.
type OutputFormat string

const (
	FormatJPEG OutputFormat = "jpeg"
	FormatPNG  OutputFormat = "png"
	FormatWebP OutputFormat = "webp"
	FormatAVIF OutputFormat = "avif"
)

// SupportedFormatTokens is the list shown to callers when parsing fails.
const SupportedFormatTokens = "jpg, png, webp, avif"

// UnknownFormatError is returned for a format token outside the closed set.
type UnknownFormatError struct {
	Token string
}

func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("unsupported format '%s'. supported: %s", e.Token, SupportedFormatTokens)
}

func (e *UnknownFormatError) Is(target error) bool {
	return target == ErrValidation
}

func ParseOutputFormat(token string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	case "avif":
		return FormatAVIF, nil
	default:
		return "", &UnknownFormatError{Token: token}
	}
}

func (f OutputFormat) Valid() bool {
	switch f {
	case FormatJPEG, FormatPNG, FormatWebP, FormatAVIF:
		return true
	default:
		return false
	}
}

func (f OutputFormat) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	case FormatAVIF:
		return "image/avif"
	default:
		return ""
	}
}

// HonorsQuality reports whether the encoder for f takes the quality knob.
// PNG is lossless and ignores it.
func (f OutputFormat) HonorsQuality() bool {
	switch f {
	case FormatJPEG, FormatWebP, FormatAVIF:
		return true
	default:
		return false
	}
}

func (f OutputFormat) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

func (f OutputFormat) String() string {
	return string(f)
}
