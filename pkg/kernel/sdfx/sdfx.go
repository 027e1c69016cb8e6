// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
//
// Signed distance fields carry no boundary representation, so the kernel
// tracks faces itself: every planar or cylindrical face created by a
// primitive keeps an origin tag and a set of surface samples. Boolean
// operations keep the samples that still lie on the boundary of the result,
// which gives both face survival and face correspondence across operations.
package sdfx

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/chazu/featsynth/pkg/geom"
	"github.com/chazu/featsynth/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Compile-time interface checks.
var (
	_ kernel.Kernel    = (*SdfxKernel)(nil)
	_ kernel.STLWriter = (*SdfxKernel)(nil)
)

// obliqueTol is how far the cosine between an extrusion direction and the
// sketch normal may drift from 1 before the direction counts as oblique.
const obliqueTol = 1e-6

// Options controls sampling density and grid resolution.
type Options struct {
	GridCells   int // occupancy cells along the longest axis for SolidCount
	CapSamples  int // samples per axis on planar caps
	SideSamples int // samples per axis on straight side walls
	ArcSamples  int // angular samples on cylindrical walls
	MeshCells   int // marching cubes resolution for ToMesh and WriteSTL
}

// DefaultOptions returns the resolution used when no options are given.
func DefaultOptions() Options {
	return Options{
		GridCells:   48,
		CapSamples:  24,
		SideSamples: 8,
		ArcSamples:  240,
		MeshCells:   200,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.GridCells <= 0 {
		o.GridCells = d.GridCells
	}
	if o.CapSamples <= 0 {
		o.CapSamples = d.CapSamples
	}
	if o.SideSamples <= 0 {
		o.SideSamples = d.SideSamples
	}
	if o.ArcSamples <= 0 {
		o.ArcSamples = d.ArcSamples
	}
	if o.MeshCells <= 0 {
		o.MeshCells = d.MeshCells
	}
	return o
}

// sdfxSolid wraps an sdf.SDF3 and its tracked faces to implement
// kernel.Solid. An empty solid has a nil field.
type sdfxSolid struct {
	serial uint64
	s      sdf.SDF3
	faces  []face
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	if s.s == nil {
		return min, max
	}
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

func (s *sdfxSolid) Serial() uint64 { return s.serial }

func (s *sdfxSolid) Empty() bool { return s.s == nil || len(s.faces) == 0 }

// SdfxKernel implements kernel.Kernel using sdfx. A kernel is safe for
// concurrent use; solids are immutable.
type SdfxKernel struct {
	opts    Options
	serials atomic.Uint64
	origins atomic.Uint64
}

// New returns a new SdfxKernel with default options.
func New() *SdfxKernel {
	return NewWithOptions(DefaultOptions())
}

// NewWithOptions returns a new SdfxKernel. Zero fields take defaults.
func NewWithOptions(opts Options) *SdfxKernel {
	return &SdfxKernel{opts: opts.withDefaults()}
}

// Options returns the effective options.
func (k *SdfxKernel) Options() Options { return k.opts }

// unwrap extracts the concrete solid from a kernel.Solid.
func unwrap(s kernel.Solid) (*sdfxSolid, error) {
	ss, ok := s.(*sdfxSolid)
	if !ok || ss == nil {
		return nil, kernel.ErrForeignSolid
	}
	return ss, nil
}

// wrap creates a kernel.Solid with a fresh serial. A solid with no faces is
// empty regardless of its field.
func (k *SdfxKernel) wrap(s sdf.SDF3, faces []face) *sdfxSolid {
	if len(faces) == 0 {
		s, faces = nil, nil
	}
	return &sdfxSolid{serial: k.serials.Add(1), s: s, faces: faces}
}

func (k *SdfxKernel) nextOrigin() uint64 {
	return k.origins.Add(1)
}

// Box creates a box with the given dimensions. The resulting solid has its
// minimum corner at the origin (0,0,0). sdf.Box3D centers the box at the
// origin, so we translate by half-dimensions.
func (k *SdfxKernel) Box(x, y, z float64) (kernel.Solid, error) {
	if !(x > 0 && y > 0 && z > 0) {
		return nil, fmt.Errorf("sdfx: box %gx%gx%g: %w", x, y, z, kernel.ErrDegenerate)
	}
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx: box: %w", err)
	}
	m := sdf.Translate3d(v3.Vec{X: x / 2, Y: y / 2, Z: z / 2})
	return k.wrap(sdf.Transform3D(s, m), k.boxFaces(x, y, z)), nil
}

// Extrude sweeps the outline along dir, which must be parallel or
// anti-parallel to the outline's plane normal, by distance.
func (k *SdfxKernel) Extrude(o kernel.Outline, dir r3.Vec, distance float64) (kernel.Solid, error) {
	if !(distance > 0) || math.IsInf(distance, 0) {
		return nil, fmt.Errorf("sdfx: extrude distance %g: %w", distance, kernel.ErrDegenerate)
	}
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("sdfx: extrude: %w", err)
	}
	length := r3.Norm(dir)
	if length < geom.Eps {
		return nil, fmt.Errorf("sdfx: extrude direction is zero: %w", kernel.ErrDegenerate)
	}
	c := r3.Dot(r3.Scale(1/length, dir), o.Frame.N)
	if math.Abs(c) < 1-obliqueTol {
		return nil, fmt.Errorf("sdfx: extrude: %w", kernel.ErrOblique)
	}
	w0, w1 := 0.0, distance
	if c < 0 {
		w0, w1 = -distance, 0
	}

	profile, err := profile2D(o)
	if err != nil {
		return nil, fmt.Errorf("sdfx: extrude profile: %w", err)
	}
	return k.wrap(newPrism(o, profile, w0, w1), k.prismFaces(o, w0, w1)), nil
}

// profile2D builds the sdfx 2-D profile for an outline in its local frame.
func profile2D(o kernel.Outline) (sdf.SDF2, error) {
	if o.Kind == kernel.OutlineCircle {
		return sdf.Circle2D(o.Radius)
	}
	pts := geom.CounterClockwise(o.Points)
	vs := make([]v2.Vec, len(pts))
	for i, p := range pts {
		vs[i] = v2.Vec{X: p.X, Y: p.Y}
	}
	return sdf.Polygon2D(vs)
}

// Union returns the union of two solids. Faces of a own any surface the two
// operands share.
func (k *SdfxKernel) Union(a, b kernel.Solid) (kernel.Solid, error) {
	sa, sb, err := unwrapPair(a, b)
	if err != nil {
		return nil, fmt.Errorf("sdfx: union: %w", err)
	}
	switch {
	case sa.Empty():
		return k.wrap(sb.s, sb.faces), nil
	case sb.Empty():
		return k.wrap(sa.s, sa.faces), nil
	}
	result := sdf.Union3D(sa.s, sb.s)
	return k.wrap(result, carry(result, sa, sb, false)), nil
}

// Subtract returns the difference a - b. Surviving faces of b become faces
// of the result with reversed orientation.
func (k *SdfxKernel) Subtract(a, b kernel.Solid) (kernel.Solid, error) {
	sa, sb, err := unwrapPair(a, b)
	if err != nil {
		return nil, fmt.Errorf("sdfx: subtract: %w", err)
	}
	switch {
	case sa.Empty():
		return k.wrap(nil, nil), nil
	case sb.Empty():
		return k.wrap(sa.s, sa.faces), nil
	}
	result := sdf.Difference3D(sa.s, sb.s)
	return k.wrap(result, carry(result, sa, sb, true)), nil
}

func unwrapPair(a, b kernel.Solid) (*sdfxSolid, *sdfxSolid, error) {
	sa, err := unwrap(a)
	if err != nil {
		return nil, nil, err
	}
	sb, err := unwrap(b)
	if err != nil {
		return nil, nil, err
	}
	return sa, sb, nil
}

// Inside reports whether p lies strictly inside the solid.
func (k *SdfxKernel) Inside(s kernel.Solid, p r3.Vec) bool {
	ss, err := unwrap(s)
	if err != nil || ss.Empty() {
		return false
	}
	return ss.s.Evaluate(toV3(p)) < 0
}

// ToMesh converts a solid to a triangle mesh using marching cubes.
func (k *SdfxKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	ss, err := unwrap(s)
	if err != nil {
		return nil, fmt.Errorf("sdfx: mesh: %w", err)
	}
	if ss.Empty() {
		return nil, fmt.Errorf("sdfx: mesh: %w", kernel.ErrEmpty)
	}

	renderer := render.NewMarchingCubesUniform(k.opts.MeshCells)
	triangles := render.ToTriangles(ss.s, renderer)

	numVerts := len(triangles) * 3
	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		n := tri.Normal()
		nx, ny, nz := float32(n.X), float32(n.Y), float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}

// WriteSTL renders the solid with marching cubes and writes it to path.
func (k *SdfxKernel) WriteSTL(s kernel.Solid, path string) error {
	ss, err := unwrap(s)
	if err != nil {
		return fmt.Errorf("sdfx: stl: %w", err)
	}
	if ss.Empty() {
		return fmt.Errorf("sdfx: stl %s: %w", path, kernel.ErrEmpty)
	}
	render.ToSTL(ss.s, path, render.NewMarchingCubesUniform(k.opts.MeshCells))
	return nil
}

func toV3(p r3.Vec) v3.Vec { return v3.Vec{X: p.X, Y: p.Y, Z: p.Z} }

func fromV3(p v3.Vec) r3.Vec { return r3.Vec{X: p.X, Y: p.Y, Z: p.Z} }
