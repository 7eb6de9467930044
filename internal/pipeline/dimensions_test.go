package pipeline

import (
	"math"
	"testing"

	"github.com/dunamismax/mediaproc/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestContainDimensions(t *testing.T) {
	tests := []struct {
		name   string
		sw, sh int
		tw, th *int
		want   Dimensions
	}{
		{name: "both bounds", sw: 1920, sh: 1080, tw: domain.Int(800), th: domain.Int(600), want: Dimensions{800, 450}},
		{name: "height only", sw: 1920, sh: 1080, th: domain.Int(600), want: Dimensions{1067, 600}},
		{name: "width only", sw: 1920, sh: 1080, tw: domain.Int(960), want: Dimensions{960, 540}},
		{name: "no bounds", sw: 1920, sh: 1080, want: Dimensions{1920, 1080}},
		{name: "never enlarges", sw: 100, sh: 50, tw: domain.Int(500), th: domain.Int(500), want: Dimensions{100, 50}},
		{name: "equal bound", sw: 100, sh: 50, tw: domain.Int(100), want: Dimensions{100, 50}},
		{name: "floors at one pixel", sw: 4000, sh: 10, tw: domain.Int(1), want: Dimensions{1, 1}},
		{name: "portrait", sw: 1080, sh: 1920, tw: domain.Int(800), th: domain.Int(600), want: Dimensions{338, 600}},
		{name: "rounds half up", sw: 3, sh: 5, tw: domain.Int(1), want: Dimensions{1, 2}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ContainDimensions(tc.sw, tc.sh, tc.tw, tc.th))
		})
	}
}

func TestContainDimensionsLaws(t *testing.T) {
	sizes := []int{1, 2, 3, 7, 64, 333, 1000, 1080, 1920, 4096}
	for _, sw := range sizes {
		for _, sh := range sizes {
			for _, tw := range sizes {
				for _, th := range sizes {
					got := ContainDimensions(sw, sh, domain.Int(tw), domain.Int(th))

					if got.Width > sw || got.Height > sh {
						t.Fatalf("(%d,%d) in (%d,%d) enlarged to %v", sw, sh, tw, th, got)
					}
					if got.Width < 1 || got.Height < 1 {
						t.Fatalf("(%d,%d) in (%d,%d) produced %v", sw, sh, tw, th, got)
					}
					// Each axis stays within one pixel of the exact aspect-preserving size.
					scale := math.Min(1, math.Min(float64(tw)/float64(sw), float64(th)/float64(sh)))
					if math.Abs(float64(got.Width)-float64(sw)*scale) > 1 ||
						math.Abs(float64(got.Height)-float64(sh)*scale) > 1 {
						t.Fatalf("(%d,%d) in (%d,%d) produced %v, aspect drifted", sw, sh, tw, th, got)
					}
				}
			}
		}
	}
}

func TestDimensions(t *testing.T) {
	d := Dimensions{Width: 50000, Height: 50000}
	assert.Equal(t, int64(2_500_000_000), d.Pixels())
	assert.Equal(t, "50000x50000", d.String())
}
