package acquisition

import (
	"math"

	"github.com/wil-imaging/golightsheet/stage"
)

// Sample is one fish/specimen position with its Z-stack geometry.  The list
// of samples is captured at run start alongside the Settings snapshot.
type Sample struct {
	Name string `json:"name" yaml:"name"`

	// X, Y locate the sample in microns.
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`

	// ZStart, ZEnd bound the stack; ZStart may be above or below ZEnd, the
	// scan direction follows their ordering.
	ZStart float64 `json:"zStart" yaml:"zStart"`
	ZEnd   float64 `json:"zEnd" yaml:"zEnd"`

	// ZStepUm is the slice spacing in microns.
	ZStepUm float64 `json:"zStepUm" yaml:"zStepUm"`

	// Skip excludes the sample from imaging while keeping its index stable.
	Skip bool `json:"skip,omitempty" yaml:"skip,omitempty"`
}

// Planes returns the number of Z planes in the sample's stack, 0 when the
// geometry is degenerate.
func (s Sample) Planes() int {
	if s.ZStepUm <= 0 {
		return 0
	}
	span := math.Abs(s.ZEnd - s.ZStart)
	return int(math.Floor(span/s.ZStepUm)) + 1
}

// ZAt returns the absolute Z position of plane i, walking from ZStart toward
// ZEnd.
func (s Sample) ZAt(i int) float64 {
	if s.ZStart <= s.ZEnd {
		return s.ZStart + s.ZStepUm*float64(i)
	}
	return s.ZStart - s.ZStepUm*float64(i)
}

// Start returns the stage position of the first plane.  Acquisition parks
// here between time points.
func (s Sample) Start() stage.Position {
	return stage.Position{X: s.X, Y: s.Y, Z: s.ZStart}
}
