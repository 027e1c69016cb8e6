package sdfx

import (
	"math"

	"github.com/chazu/featsynth/pkg/geom"
	"github.com/chazu/featsynth/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// nudge is the offset along a sample normal used to test whether a sample
// still sits on the boundary of a solid.
const nudge = 1e-4

// sample is a point on a face with the face's outward normal there.
type sample struct {
	p, n r3.Vec
}

// face is a tracked face. origin is assigned when a primitive creates the
// face and is carried unchanged through boolean operations.
type face struct {
	origin  uint64
	samples []sample
}

func (f face) filter(keep func(sample) bool) face {
	out := face{origin: f.origin}
	for _, s := range f.samples {
		if keep(s) {
			out.samples = append(out.samples, s)
		}
	}
	return out
}

func (f face) flipped() face {
	out := face{origin: f.origin, samples: make([]sample, len(f.samples))}
	for i, s := range f.samples {
		out.samples[i] = sample{p: s.p, n: r3.Scale(-1, s.n)}
	}
	return out
}

// onBoundary reports whether p lies on the boundary of s with outward
// normal n: outside just beyond, inside just behind.
func onBoundary(s sdf.SDF3, p, n r3.Vec) bool {
	d := r3.Scale(nudge, n)
	return s.Evaluate(toV3(r3.Add(p, d))) > 0 && s.Evaluate(toV3(r3.Sub(p, d))) < 0
}

// carry computes the faces of result = a (op) b. Samples of a far from b
// keep their status; every other sample is retested against result. A
// sample of b is also dropped where a already has the same boundary.
func carry(result sdf.SDF3, a, b *sdfxSolid, flipB bool) []face {
	near := padded(b.s.BoundingBox(), 2*nudge)

	var out []face
	for _, f := range a.faces {
		out = appendFace(out, f.filter(func(s sample) bool {
			if !inBox(near, s.p) {
				return true
			}
			return onBoundary(result, s.p, s.n)
		}))
	}
	for _, f := range b.faces {
		if flipB {
			f = f.flipped()
		}
		out = appendFace(out, f.filter(func(s sample) bool {
			return onBoundary(result, s.p, s.n) && !onBoundary(a.s, s.p, s.n)
		}))
	}
	return mergeByOrigin(out)
}

func appendFace(faces []face, f face) []face {
	if len(f.samples) == 0 {
		return faces
	}
	return append(faces, f)
}

// mergeByOrigin folds faces sharing an origin into one, keeping first-seen
// order.
func mergeByOrigin(faces []face) []face {
	index := make(map[uint64]int, len(faces))
	out := faces[:0:0]
	for _, f := range faces {
		if i, ok := index[f.origin]; ok {
			out[i].samples = append(out[i].samples, f.samples...)
			continue
		}
		index[f.origin] = len(out)
		out = append(out, face{origin: f.origin, samples: append([]sample(nil), f.samples...)})
	}
	return out
}

func inBox(bb sdf.Box3, p r3.Vec) bool {
	return p.X >= bb.Min.X && p.X <= bb.Max.X &&
		p.Y >= bb.Min.Y && p.Y <= bb.Max.Y &&
		p.Z >= bb.Min.Z && p.Z <= bb.Max.Z
}

func padded(bb sdf.Box3, pad float64) sdf.Box3 {
	bb.Min.X -= pad
	bb.Min.Y -= pad
	bb.Min.Z -= pad
	bb.Max.X += pad
	bb.Max.Y += pad
	bb.Max.Z += pad
	return bb
}

// ---------------------------------------------------------------------------
// Primitive face sampling
// ---------------------------------------------------------------------------

// rectFace samples the parallelogram corner + s*a + t*b, s,t in (0,1), at
// cell centers.
func (k *SdfxKernel) rectFace(corner, a, b, n r3.Vec, cells int) face {
	f := face{origin: k.nextOrigin(), samples: make([]sample, 0, cells*cells)}
	for i := 0; i < cells; i++ {
		s := (float64(i) + 0.5) / float64(cells)
		for j := 0; j < cells; j++ {
			t := (float64(j) + 0.5) / float64(cells)
			p := r3.Add(corner, r3.Add(r3.Scale(s, a), r3.Scale(t, b)))
			f.samples = append(f.samples, sample{p: p, n: n})
		}
	}
	return f
}

// boxFaces returns the six faces of the box [0,x]x[0,y]x[0,z] in the order
// -X, +X, -Y, +Y, -Z, +Z.
func (k *SdfxKernel) boxFaces(x, y, z float64) []face {
	c := k.opts.CapSamples
	ex, ey, ez := r3.Vec{X: x}, r3.Vec{Y: y}, r3.Vec{Z: z}
	return []face{
		k.rectFace(r3.Vec{}, ey, ez, r3.Vec{X: -1}, c),
		k.rectFace(ex, ey, ez, r3.Vec{X: 1}, c),
		k.rectFace(r3.Vec{}, ex, ez, r3.Vec{Y: -1}, c),
		k.rectFace(ey, ex, ez, r3.Vec{Y: 1}, c),
		k.rectFace(r3.Vec{}, ex, ey, r3.Vec{Z: -1}, c),
		k.rectFace(ez, ex, ey, r3.Vec{Z: 1}, c),
	}
}

// prismFaces returns the faces of an extruded outline spanning local
// w0..w1: bottom cap, top cap, then the side walls (one cylindrical wall
// for a circle, one planar wall per polygon edge).
func (k *SdfxKernel) prismFaces(o kernel.Outline, w0, w1 float64) []face {
	f := o.Frame
	faces := []face{
		k.capFace(o, w0, r3.Scale(-1, f.N)),
		k.capFace(o, w1, f.N),
	}

	side := k.opts.SideSamples
	ws := make([]float64, side)
	for j := range ws {
		ws[j] = w0 + (w1-w0)*(float64(j)+0.5)/float64(side)
	}

	if o.Kind == kernel.OutlineCircle {
		wall := face{origin: k.nextOrigin()}
		arc := k.opts.ArcSamples
		for i := 0; i < arc; i++ {
			theta := 2 * math.Pi * (float64(i) + 0.5) / float64(arc)
			dir := r2.Vec{X: math.Cos(theta), Y: math.Sin(theta)}
			n := f.Direction(dir)
			for _, w := range ws {
				p := f.ToWorld(o.Radius*dir.X, o.Radius*dir.Y, w)
				wall.samples = append(wall.samples, sample{p: p, n: n})
			}
		}
		return append(faces, wall)
	}

	pts := geom.CounterClockwise(o.Points)
	for i := range pts {
		a, b := pts[i], pts[(i+1)%len(pts)]
		d := r2.Sub(b, a)
		length := r2.Norm(d)
		if length < geom.Eps {
			continue
		}
		n := f.Direction(r2.Vec{X: d.Y / length, Y: -d.X / length})
		wall := face{origin: k.nextOrigin()}
		for s := 0; s < side; s++ {
			t := (float64(s) + 0.5) / float64(side)
			q := r2.Add(a, r2.Scale(t, d))
			for _, w := range ws {
				wall.samples = append(wall.samples, sample{p: f.ToWorld(q.X, q.Y, w), n: n})
			}
		}
		faces = append(faces, wall)
	}
	return faces
}

// capFace samples the outline interior on the plane w with normal n.
func (k *SdfxKernel) capFace(o kernel.Outline, w float64, n r3.Vec) face {
	cells := k.opts.CapSamples
	lo, hi := o.Bounds()
	du := (hi.X - lo.X) / float64(cells)
	dv := (hi.Y - lo.Y) / float64(cells)

	f := face{origin: k.nextOrigin()}
	for i := 0; i < cells; i++ {
		u := lo.X + (float64(i)+0.5)*du
		for j := 0; j < cells; j++ {
			v := lo.Y + (float64(j)+0.5)*dv
			if !o.Contains(r2.Vec{X: u, Y: v}) {
				continue
			}
			f.samples = append(f.samples, sample{p: o.Frame.ToWorld(u, v, w), n: n})
		}
	}
	if len(f.samples) == 0 {
		// Slivers narrower than a cell still get one sample at the centroid.
		var c r2.Vec
		for _, p := range o.Points {
			c = r2.Add(c, r2.Scale(1/float64(len(o.Points)), p))
		}
		f.samples = append(f.samples, sample{p: o.Frame.ToWorld(c.X, c.Y, w), n: n})
	}
	return f
}
