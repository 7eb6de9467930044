package pipeline

import (
	"fmt"
	"math"
)

// Dimensions is a pixel size. Planned dimensions are always at least 1x1.
type Dimensions struct {
	Width  int
	Height int
}

func (d Dimensions) Pixels() int64 {
	return int64(d.Width) * int64(d.Height)
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// ContainDimensions fits (sw, sh) inside the optional target bounds while
// keeping the aspect ratio. The scale factor is capped at 1, so the result
// never exceeds the source on either axis. Scaled values are rounded half
// away from zero and floored at 1px.
func ContainDimensions(sw, sh int, tw, th *int) Dimensions {
	src := Dimensions{Width: sw, Height: sh}
	if sw <= 0 || sh <= 0 {
		return src
	}

	var scale float64
	switch {
	case tw != nil && th != nil:
		scale = math.Min(float64(*tw)/float64(sw), float64(*th)/float64(sh))
	case tw != nil:
		scale = float64(*tw) / float64(sw)
	case th != nil:
		scale = float64(*th) / float64(sh)
	default:
		return src
	}
	if scale >= 1 {
		return src
	}

	return Dimensions{
		Width:  scaleAxis(sw, scale),
		Height: scaleAxis(sh, scale),
	}
}

func scaleAxis(v int, scale float64) int {
	out := int(math.Round(float64(v) * scale))
	if out < 1 {
		return 1
	}
	return out
}
