package sdfx

import (
	"math"

	"github.com/chazu/featsynth/pkg/geom"
	"github.com/chazu/featsynth/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/spatial/r3"
)

// prism is an sdfx extrusion placed in an arbitrary frame. sdf.Extrude3D
// extrudes along +Z centered on the origin; prism maps world points into
// the outline's local (u, v, w) coordinates before evaluating it, so no
// rotation matrices are needed.
type prism struct {
	frame geom.Frame
	solid sdf.SDF3
	mid   float64
	bb    sdf.Box3
}

func newPrism(o kernel.Outline, profile sdf.SDF2, w0, w1 float64) *prism {
	p := &prism{
		frame: o.Frame,
		solid: sdf.Extrude3D(profile, w1-w0),
		mid:   (w0 + w1) / 2,
	}

	lo, hi := o.Bounds()
	min := r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	max := r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, u := range []float64{lo.X, hi.X} {
		for _, v := range []float64{lo.Y, hi.Y} {
			for _, w := range []float64{w0, w1} {
				c := o.Frame.ToWorld(u, v, w)
				min = r3.Vec{X: math.Min(min.X, c.X), Y: math.Min(min.Y, c.Y), Z: math.Min(min.Z, c.Z)}
				max = r3.Vec{X: math.Max(max.X, c.X), Y: math.Max(max.Y, c.Y), Z: math.Max(max.Z, c.Z)}
			}
		}
	}
	p.bb = sdf.Box3{Min: toV3(min), Max: toV3(max)}
	return p
}

// Evaluate returns the signed distance at a world point.
func (p *prism) Evaluate(v v3.Vec) float64 {
	u, vv, w := p.frame.ToLocal(fromV3(v))
	return p.solid.Evaluate(v3.Vec{X: u, Y: vv, Z: w - p.mid})
}

// BoundingBox returns the world-space bounding box.
func (p *prism) BoundingBox() sdf.Box3 {
	return p.bb
}
