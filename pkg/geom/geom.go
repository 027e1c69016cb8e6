// Package geom holds the small amount of plane geometry shared by the
// kernel, the bound finder and the feature builders: orthonormal frames
// attached to a placement plane and simple polygon predicates.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Eps is the tolerance used for degeneracy checks on unit vectors and areas.
const Eps = 1e-9

// Frame is a right-handed orthonormal frame. U and V span the sketch
// plane, N is the plane normal and the extrusion axis.
type Frame struct {
	Origin r3.Vec
	U, V   r3.Vec
	N      r3.Vec
}

// NewFrame builds a frame at origin whose N axis is the normalized normal.
// The in-plane axes are derived from whichever world axis is least aligned
// with the normal, so the result is deterministic for a given normal.
// It returns false when the normal has zero length.
func NewFrame(origin, normal r3.Vec) (Frame, bool) {
	length := r3.Norm(normal)
	if length < Eps {
		return Frame{}, false
	}
	n := r3.Scale(1/length, normal)

	helper := r3.Vec{Z: 1}
	if math.Abs(n.Z) >= 0.9 {
		helper = r3.Vec{X: 1}
	}
	u := r3.Unit(r3.Cross(n, helper))
	v := r3.Unit(r3.Cross(n, u))
	return Frame{Origin: origin, U: u, V: v, N: n}, true
}

// ToWorld maps local (u, v, w) coordinates to a world position.
func (f Frame) ToWorld(u, v, w float64) r3.Vec {
	p := f.Origin
	p = r3.Add(p, r3.Scale(u, f.U))
	p = r3.Add(p, r3.Scale(v, f.V))
	p = r3.Add(p, r3.Scale(w, f.N))
	return p
}

// ToLocal maps a world position to local (u, v, w) coordinates.
func (f Frame) ToLocal(p r3.Vec) (u, v, w float64) {
	d := r3.Sub(p, f.Origin)
	return r3.Dot(d, f.U), r3.Dot(d, f.V), r3.Dot(d, f.N)
}

// Direction maps an in-plane direction to a world vector.
func (f Frame) Direction(d r2.Vec) r3.Vec {
	return r3.Add(r3.Scale(d.X, f.U), r3.Scale(d.Y, f.V))
}

// Polar returns the in-plane point at the given radius and angle.
func Polar(radius, angle float64) r2.Vec {
	return r2.Vec{X: radius * math.Cos(angle), Y: radius * math.Sin(angle)}
}

// SignedArea returns the signed area of a closed polygon; positive for
// counter-clockwise winding.
func SignedArea(pts []r2.Vec) float64 {
	var sum float64
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += r2.Cross(pts[i], pts[j])
	}
	return sum / 2
}

// CounterClockwise returns pts in counter-clockwise order, copying only
// when the input winds the other way.
func CounterClockwise(pts []r2.Vec) []r2.Vec {
	if SignedArea(pts) >= 0 {
		return pts
	}
	out := make([]r2.Vec, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}

// InPolygon reports whether p lies strictly inside the polygon using the
// even-odd rule.
func InPolygon(p r2.Vec, pts []r2.Vec) bool {
	inside := false
	for i, j := 0, len(pts)-1; i < len(pts); j, i = i, i+1 {
		a, b := pts[i], pts[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// Bounds2 returns the axis-aligned bounds of a point set.
func Bounds2(pts []r2.Vec) (min, max r2.Vec) {
	if len(pts) == 0 {
		return r2.Vec{}, r2.Vec{}
	}
	min, max = pts[0], pts[0]
	for _, p := range pts[1:] {
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
	}
	return min, max
}

// ChordHalfAngle returns the half-angle subtended by a chord of the given
// length on a circle of the given radius.
func ChordHalfAngle(radius, chord float64) float64 {
	return math.Asin(chord / (2 * radius))
}
