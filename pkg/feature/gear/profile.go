package gear

import (
	"math"

	"github.com/chazu/featsynth/pkg/bound"
	"github.com/chazu/featsynth/pkg/geom"
	"github.com/chazu/featsynth/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r2"
)

// BaseSketch returns the gear blank: a circle of the addendum diameter
// centered on the bound, in the plane orthogonal to the bound normal.
func BaseSketch(b bound.Bound, p Params) (kernel.Outline, error) {
	f, err := b.Frame()
	if err != nil {
		return kernel.Outline{}, err
	}
	return kernel.CircleOutline(f, p.AddendumDiameter/2), nil
}

// SlotOutline returns the trapezoid cut for tooth gap i. Its radial edges
// lie on the rays at Angle±HalfAngle; its inner and outer edges are chords
// whose midpoints touch the dedendum and addendum circles.
func SlotOutline(b bound.Bound, p Params, i int) (kernel.Outline, error) {
	f, err := b.Frame()
	if err != nil {
		return kernel.Outline{}, err
	}
	return kernel.PolygonOutline(f, slotPoints(p.Slot(i))), nil
}

func slotPoints(s Slot) []r2.Vec {
	c := math.Cos(s.HalfAngle)
	inner, outer := s.Root/c, s.Tip/c
	lo, hi := s.Angle-s.HalfAngle, s.Angle+s.HalfAngle
	return []r2.Vec{
		geom.Polar(inner, lo),
		geom.Polar(outer, lo),
		geom.Polar(outer, hi),
		geom.Polar(inner, hi),
	}
}
