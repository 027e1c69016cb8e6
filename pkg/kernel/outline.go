package kernel

import (
	"fmt"
	"math"

	"github.com/chazu/featsynth/pkg/geom"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// OutlineKind distinguishes the closed 2-D profiles a kernel can extrude.
type OutlineKind int

const (
	OutlineCircle OutlineKind = iota
	OutlinePolygon
)

func (k OutlineKind) String() string {
	switch k {
	case OutlineCircle:
		return "circle"
	case OutlinePolygon:
		return "polygon"
	default:
		return fmt.Sprintf("OutlineKind(%d)", int(k))
	}
}

// Outline is a closed planar profile. Points and the circle center are in
// the local (u, v) coordinates of Frame; a circle is centered on the frame
// origin.
type Outline struct {
	Frame  geom.Frame
	Kind   OutlineKind
	Radius float64  // circle only
	Points []r2.Vec // polygon only, either winding
}

// CircleOutline returns a circle of the given radius centered on the frame
// origin.
func CircleOutline(f geom.Frame, radius float64) Outline {
	return Outline{Frame: f, Kind: OutlineCircle, Radius: radius}
}

// PolygonOutline returns a polygon with the given local vertices.
func PolygonOutline(f geom.Frame, pts []r2.Vec) Outline {
	return Outline{Frame: f, Kind: OutlinePolygon, Points: pts}
}

// Validate reports ErrDegenerate for outlines that enclose no area.
func (o Outline) Validate() error {
	switch o.Kind {
	case OutlineCircle:
		if !(o.Radius > 0) || math.IsInf(o.Radius, 0) {
			return fmt.Errorf("circle radius %v: %w", o.Radius, ErrDegenerate)
		}
	case OutlinePolygon:
		if len(o.Points) < 3 {
			return fmt.Errorf("polygon with %d points: %w", len(o.Points), ErrDegenerate)
		}
		if math.Abs(geom.SignedArea(o.Points)) < geom.Eps {
			return fmt.Errorf("polygon has zero area: %w", ErrDegenerate)
		}
	default:
		return fmt.Errorf("unknown outline kind %v: %w", o.Kind, ErrDegenerate)
	}
	return nil
}

// Contains reports whether the local point p lies strictly inside.
func (o Outline) Contains(p r2.Vec) bool {
	if o.Kind == OutlineCircle {
		return r2.Norm(p) < o.Radius
	}
	return geom.InPolygon(p, o.Points)
}

// Bounds returns the local 2-D bounds of the outline.
func (o Outline) Bounds() (min, max r2.Vec) {
	if o.Kind == OutlineCircle {
		return r2.Vec{X: -o.Radius, Y: -o.Radius}, r2.Vec{X: o.Radius, Y: o.Radius}
	}
	return geom.Bounds2(o.Points)
}

// World returns the outline vertices in world coordinates. Circles are
// approximated with the given number of segments.
func (o Outline) World(segments int) []r3.Vec {
	pts := o.Points
	if o.Kind == OutlineCircle {
		pts = make([]r2.Vec, segments)
		for i := range pts {
			pts[i] = geom.Polar(o.Radius, 2*math.Pi*float64(i)/float64(segments))
		}
	}
	out := make([]r3.Vec, len(pts))
	for i, p := range pts {
		out[i] = o.Frame.ToWorld(p.X, p.Y, 0)
	}
	return out
}
