// Package bound describes and discovers placement regions on a body: a
// planar patch with an outward normal, an inscribed diameter and the depth
// available along the normal.
package bound

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/chazu/featsynth/pkg/geom"
	"github.com/chazu/featsynth/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalid is returned by Bound.Validate.
var ErrInvalid = errors.New("bound: invalid")

// Bound is a placement region. Center lies on the body surface, Normal
// points out of the body.
type Bound struct {
	Center   r3.Vec  `json:"center"`
	Normal   r3.Vec  `json:"normal"`
	Diameter float64 `json:"diameter"`
	Depth    float64 `json:"depth"`
}

// Validate reports ErrInvalid for bounds no feature can use.
func (b Bound) Validate() error {
	if !(b.Diameter > 0) || !(b.Depth > 0) {
		return fmt.Errorf("%w: diameter %g depth %g", ErrInvalid, b.Diameter, b.Depth)
	}
	if r3.Norm(b.Normal) < geom.Eps {
		return fmt.Errorf("%w: zero normal", ErrInvalid)
	}
	return nil
}

// Frame returns the sketch frame at the bound center with N along the
// bound normal.
func (b Bound) Frame() (geom.Frame, error) {
	f, ok := geom.NewFrame(b.Center, b.Normal)
	if !ok {
		return geom.Frame{}, fmt.Errorf("%w: zero normal", ErrInvalid)
	}
	return f, nil
}

// Finder discovers the free placement regions of a body.
type Finder interface {
	FindBounds(body kernel.Solid) []Bound
}

// Pick chooses one bound uniformly. It returns false when there are none.
func Pick(r *rand.Rand, bounds []Bound) (Bound, bool) {
	if len(bounds) == 0 {
		return Bound{}, false
	}
	return bounds[r.IntN(len(bounds))], true
}

// DefaultNudge is the offset used to test whether a surface point is still
// free.
const DefaultNudge = 1e-3

// StockFinder offers the six faces of box stock with its min corner at the
// origin. A face is offered while the body surface at its center and on its
// inscribed circle is still free: outside just beyond, inside just behind.
type StockFinder struct {
	Kernel   kernel.Kernel
	Dims     r3.Vec
	MaxDepth float64 // caps Depth when positive
	Nudge    float64 // DefaultNudge when zero
}

var _ Finder = (*StockFinder)(nil)

// FindBounds returns the free stock faces in the order -X, +X, -Y, +Y,
// -Z, +Z.
func (s *StockFinder) FindBounds(body kernel.Solid) []Bound {
	if body == nil || body.Empty() {
		return nil
	}
	dims := [3]float64{s.Dims.X, s.Dims.Y, s.Dims.Z}
	var out []Bound
	for axis := 0; axis < 3; axis++ {
		for _, sign := range []float64{-1, 1} {
			b := stockFace(dims, axis, sign)
			if s.MaxDepth > 0 {
				b.Depth = math.Min(b.Depth, s.MaxDepth)
			}
			if b.Validate() != nil || !s.free(body, b) {
				continue
			}
			out = append(out, b)
		}
	}
	return out
}

func stockFace(dims [3]float64, axis int, sign float64) Bound {
	var center, normal [3]float64
	for i := range center {
		center[i] = dims[i] / 2
	}
	if sign > 0 {
		center[axis] = dims[axis]
	} else {
		center[axis] = 0
	}
	normal[axis] = sign

	diameter := math.Inf(1)
	for i := range dims {
		if i != axis {
			diameter = math.Min(diameter, dims[i])
		}
	}
	return Bound{
		Center:   r3.Vec{X: center[0], Y: center[1], Z: center[2]},
		Normal:   r3.Vec{X: normal[0], Y: normal[1], Z: normal[2]},
		Diameter: diameter,
		Depth:    dims[axis],
	}
}

// free tests the center and eight points on 90% of the inscribed circle.
func (s *StockFinder) free(body kernel.Solid, b Bound) bool {
	f, err := b.Frame()
	if err != nil {
		return false
	}
	nudge := s.Nudge
	if nudge <= 0 {
		nudge = DefaultNudge
	}
	r := 0.45 * b.Diameter
	points := []r3.Vec{b.Center}
	for i := 0; i < 8; i++ {
		p := geom.Polar(r, float64(i)*math.Pi/4)
		points = append(points, f.ToWorld(p.X, p.Y, 0))
	}
	d := r3.Scale(nudge, f.N)
	for _, p := range points {
		if s.Kernel.Inside(body, r3.Add(p, d)) || !s.Kernel.Inside(body, r3.Sub(p, d)) {
			return false
		}
	}
	return true
}
