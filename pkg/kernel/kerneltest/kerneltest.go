// Package kerneltest provides a lightweight in-memory kernel.Kernel for
// tests. Solids are axis-aligned boxes with a list of face origins; every
// operation can be made to fail through hooks.
package kerneltest

import (
	"errors"
	"math"
	"sync"

	"github.com/chazu/featsynth/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*Kernel)(nil)

// ErrInjected is the error returned by a FaultError hook result.
var ErrInjected = errors.New("kerneltest: injected failure")

// Fault selects how a boolean operation misbehaves.
type Fault int

const (
	FaultNone      Fault = iota
	FaultError           // return ErrInjected
	FaultEmpty           // return an empty solid
	FaultSplit           // return a solid with two components
	FaultMalformed       // return a solid that is not well formed
)

// Solid is the fake solid. Origins lists one tag per face.
type Solid struct {
	serial    uint64
	Min, Max  r3.Vec
	Origins   []uint64
	Pieces    int
	Malformed bool
}

func (s *Solid) BoundingBox() (min, max [3]float64) {
	return [3]float64{s.Min.X, s.Min.Y, s.Min.Z}, [3]float64{s.Max.X, s.Max.Y, s.Max.Z}
}

func (s *Solid) Serial() uint64 { return s.serial }

func (s *Solid) Empty() bool { return len(s.Origins) == 0 }

// Kernel is a fake kernel. Hooks receive the zero-based call number of the
// operation they guard; nil hooks never fail.
type Kernel struct {
	OnExtrude  func(call int, o kernel.Outline) error
	OnUnion    func(call int) Fault
	OnSubtract func(call int) Fault

	mu        sync.Mutex
	serial    uint64
	origin    uint64
	Extrudes  []kernel.Outline
	Distances []float64
	Unions    int
	Subtracts int
}

// New returns a fake kernel with no faults.
func New() *Kernel {
	return &Kernel{}
}

func (k *Kernel) solid(min, max r3.Vec, origins []uint64) *Solid {
	k.serial++
	return &Solid{serial: k.serial, Min: min, Max: max, Origins: origins, Pieces: 1}
}

func (k *Kernel) fresh(n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		k.origin++
		out[i] = k.origin
	}
	return out
}

func (k *Kernel) Box(x, y, z float64) (kernel.Solid, error) {
	if !(x > 0 && y > 0 && z > 0) {
		return nil, kernel.ErrDegenerate
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.solid(r3.Vec{}, r3.Vec{X: x, Y: y, Z: z}, k.fresh(6)), nil
}

func (k *Kernel) Extrude(o kernel.Outline, dir r3.Vec, distance float64) (kernel.Solid, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	call := len(k.Extrudes)
	k.Extrudes = append(k.Extrudes, o)
	k.Distances = append(k.Distances, distance)
	if k.OnExtrude != nil {
		if err := k.OnExtrude(call, o); err != nil {
			return nil, err
		}
	}
	if !(distance > 0) {
		return nil, kernel.ErrDegenerate
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}

	faces := 3
	if o.Kind == kernel.OutlinePolygon {
		faces = len(o.Points) + 2
	}
	min, max := r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}, r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	end := r3.Scale(distance, r3.Unit(dir))
	for _, p := range o.World(16) {
		for _, q := range []r3.Vec{p, r3.Add(p, end)} {
			min = r3.Vec{X: math.Min(min.X, q.X), Y: math.Min(min.Y, q.Y), Z: math.Min(min.Z, q.Z)}
			max = r3.Vec{X: math.Max(max.X, q.X), Y: math.Max(max.Y, q.Y), Z: math.Max(max.Z, q.Z)}
		}
	}
	return k.solid(min, max, k.fresh(faces)), nil
}

func (k *Kernel) apply(f Fault, s *Solid) (kernel.Solid, error) {
	switch f {
	case FaultError:
		return nil, ErrInjected
	case FaultEmpty:
		s.Origins = nil
	case FaultSplit:
		s.Pieces = 2
	case FaultMalformed:
		s.Malformed = true
	}
	return s, nil
}

// Union keeps every face of both operands except the first face of b,
// standing in for the cap that lands on a.
func (k *Kernel) Union(a, b kernel.Solid) (kernel.Solid, error) {
	sa, sb, err := pair(a, b)
	if err != nil {
		return nil, err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	call := k.Unions
	k.Unions++

	origins := append([]uint64(nil), sa.Origins...)
	if len(sb.Origins) > 1 {
		origins = append(origins, sb.Origins[1:]...)
	}
	s := k.solid(vmin(sa.Min, sb.Min), vmax(sa.Max, sb.Max), origins)
	s.Pieces = sa.Pieces
	s.Malformed = sa.Malformed || sb.Malformed

	f := FaultNone
	if k.OnUnion != nil {
		f = k.OnUnion(call)
	}
	return k.apply(f, s)
}

// Subtract keeps every face of a and adds the first face of b.
func (k *Kernel) Subtract(a, b kernel.Solid) (kernel.Solid, error) {
	sa, sb, err := pair(a, b)
	if err != nil {
		return nil, err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	call := k.Subtracts
	k.Subtracts++

	origins := append([]uint64(nil), sa.Origins...)
	if len(sb.Origins) > 0 {
		origins = append(origins, sb.Origins[0])
	}
	s := k.solid(sa.Min, sa.Max, origins)
	s.Pieces = sa.Pieces
	s.Malformed = sa.Malformed

	f := FaultNone
	if k.OnSubtract != nil {
		f = k.OnSubtract(call)
	}
	return k.apply(f, s)
}

func (k *Kernel) SolidCount(s kernel.Solid) int {
	ss, ok := s.(*Solid)
	if !ok || ss.Empty() {
		return 0
	}
	return ss.Pieces
}

func (k *Kernel) IsWellFormed(s kernel.Solid) bool {
	ss, ok := s.(*Solid)
	return ok && !ss.Empty() && !ss.Malformed
}

func (k *Kernel) Faces(s kernel.Solid) []kernel.FaceID {
	ss, ok := s.(*Solid)
	if !ok {
		return nil
	}
	ids := make([]kernel.FaceID, len(ss.Origins))
	for i := range ids {
		ids[i] = kernel.FaceID{Solid: ss.serial, Index: i}
	}
	return ids
}

func (k *Kernel) CorrespondingFace(old kernel.Solid, f kernel.FaceID, next kernel.Solid) (kernel.FaceID, bool) {
	so, sn, err := pair(old, next)
	if err != nil || f.Solid != so.serial || f.Index < 0 || f.Index >= len(so.Origins) {
		return kernel.FaceID{}, false
	}
	for i, o := range sn.Origins {
		if o == so.Origins[f.Index] {
			return kernel.FaceID{Solid: sn.serial, Index: i}, true
		}
	}
	return kernel.FaceID{}, false
}

// FacePoints returns the bounding box center for every face.
func (k *Kernel) FacePoints(s kernel.Solid, f kernel.FaceID) []r3.Vec {
	ss, ok := s.(*Solid)
	if !ok || f.Solid != ss.serial {
		return nil
	}
	return []r3.Vec{r3.Scale(0.5, r3.Add(ss.Min, ss.Max))}
}

// Inside tests against the bounding box.
func (k *Kernel) Inside(s kernel.Solid, p r3.Vec) bool {
	ss, ok := s.(*Solid)
	if !ok || ss.Empty() {
		return false
	}
	return p.X > ss.Min.X && p.X < ss.Max.X &&
		p.Y > ss.Min.Y && p.Y < ss.Max.Y &&
		p.Z > ss.Min.Z && p.Z < ss.Max.Z
}

func (k *Kernel) ToMesh(kernel.Solid) (*kernel.Mesh, error) {
	return &kernel.Mesh{}, nil
}

func pair(a, b kernel.Solid) (*Solid, *Solid, error) {
	sa, ok := a.(*Solid)
	if !ok {
		return nil, nil, kernel.ErrForeignSolid
	}
	sb, ok := b.(*Solid)
	if !ok {
		return nil, nil, kernel.ErrForeignSolid
	}
	return sa, sb, nil
}

func vmin(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
}

func vmax(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}
