package kernel

import (
	"errors"
	"testing"

	"github.com/chazu/featsynth/pkg/geom"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// --- Mesh helper method tests ---

func TestMeshVertexCount(t *testing.T) {
	tests := []struct {
		name     string
		vertices []float32
		want     int
	}{
		{"empty", nil, 0},
		{"one vertex", []float32{1, 2, 3}, 1},
		{"four vertices", []float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Vertices: tt.vertices}
			if got := m.VertexCount(); got != tt.want {
				t.Errorf("VertexCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeshTriangleCount(t *testing.T) {
	tests := []struct {
		name    string
		indices []uint32
		want    int
	}{
		{"empty", nil, 0},
		{"one triangle", []uint32{0, 1, 2}, 1},
		{"two triangles", []uint32{0, 1, 2, 2, 3, 0}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Indices: tt.indices}
			if got := m.TriangleCount(); got != tt.want {
				t.Errorf("TriangleCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeshAppendTriangle(t *testing.T) {
	src := &Mesh{
		Vertices: []float32{0, 0, 0, 3, 0, 0, 0, 3, 0, 0, 0, 3},
		Normals:  []float32{0, 0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1},
		Indices:  []uint32{0, 1, 2, 0, 2, 3},
	}
	var dst Mesh
	dst.AppendTriangle(src, 1)
	if dst.TriangleCount() != 1 || dst.VertexCount() != 3 {
		t.Fatalf("got %d triangles, %d vertices", dst.TriangleCount(), dst.VertexCount())
	}
	c := dst.Centroid(0)
	if c != [3]float64{0, 1, 1} {
		t.Errorf("Centroid = %v, want [0 1 1]", c)
	}
	if len(dst.Normals) != 9 {
		t.Errorf("normals len = %d, want 9", len(dst.Normals))
	}
}

// --- Outline tests ---

func TestOutlineValidate(t *testing.T) {
	f, _ := geom.NewFrame(r3.Vec{}, r3.Vec{Z: 1})
	tests := []struct {
		name    string
		o       Outline
		wantErr bool
	}{
		{"circle", CircleOutline(f, 2), false},
		{"zero radius", CircleOutline(f, 0), true},
		{"triangle", PolygonOutline(f, []r2.Vec{{X: 0}, {X: 1}, {Y: 1}}), false},
		{"two points", PolygonOutline(f, []r2.Vec{{X: 0}, {X: 1}}), true},
		{"collinear", PolygonOutline(f, []r2.Vec{{X: 0}, {X: 1}, {X: 2}}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.o.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrDegenerate) {
				t.Errorf("error %v does not wrap ErrDegenerate", err)
			}
		})
	}
}

func TestOutlineContains(t *testing.T) {
	f, _ := geom.NewFrame(r3.Vec{}, r3.Vec{Z: 1})
	c := CircleOutline(f, 1)
	if !c.Contains(r2.Vec{X: 0.5}) || c.Contains(r2.Vec{X: 1.5}) {
		t.Error("circle containment wrong")
	}
	sq := PolygonOutline(f, []r2.Vec{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1}})
	if !sq.Contains(r2.Vec{}) || sq.Contains(r2.Vec{X: 2}) {
		t.Error("square containment wrong")
	}
}

func TestOutlineWorld(t *testing.T) {
	f, _ := geom.NewFrame(r3.Vec{Z: 5}, r3.Vec{Z: 1})
	pts := CircleOutline(f, 2).World(8)
	if len(pts) != 8 {
		t.Fatalf("got %d points, want 8", len(pts))
	}
	for _, p := range pts {
		if d := r3.Norm(r3.Sub(p, f.Origin)); d < 2-1e-9 || d > 2+1e-9 {
			t.Errorf("point %v at distance %v from center", p, d)
		}
	}
}

// --- Compile-time interface check with a stub kernel ---

// stubSolid is a minimal Solid implementation for testing.
type stubSolid struct {
	minBB, maxBB [3]float64
}

func (s *stubSolid) BoundingBox() (min, max [3]float64) {
	return s.minBB, s.maxBB
}

func (s *stubSolid) Serial() uint64 { return 1 }
func (s *stubSolid) Empty() bool    { return s.maxBB == s.minBB }

// stubKernel is a minimal Kernel implementation that proves the interface
// is satisfiable. All methods return trivial results.
type stubKernel struct{}

func (k *stubKernel) Box(x, y, z float64) (Solid, error) {
	return &stubSolid{
		minBB: [3]float64{0, 0, 0},
		maxBB: [3]float64{x, y, z},
	}, nil
}

func (k *stubKernel) Extrude(o Outline, _ r3.Vec, distance float64) (Solid, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return &stubSolid{maxBB: [3]float64{1, 1, distance}}, nil
}

func (k *stubKernel) Union(a, _ Solid) (Solid, error)    { return a, nil }
func (k *stubKernel) Subtract(a, _ Solid) (Solid, error) { return a, nil }

func (k *stubKernel) SolidCount(Solid) int    { return 1 }
func (k *stubKernel) IsWellFormed(Solid) bool { return true }
func (k *stubKernel) Faces(Solid) []FaceID    { return nil }
func (k *stubKernel) CorrespondingFace(Solid, FaceID, Solid) (FaceID, bool) {
	return FaceID{}, false
}
func (k *stubKernel) FacePoints(Solid, FaceID) []r3.Vec { return nil }
func (k *stubKernel) Inside(Solid, r3.Vec) bool         { return false }

func (k *stubKernel) ToMesh(_ Solid) (*Mesh, error) {
	return &Mesh{}, nil
}

// Compile-time checks that the stubs implement the interfaces.
var _ Solid = (*stubSolid)(nil)
var _ Kernel = (*stubKernel)(nil)

func TestStubKernelBoxBoundingBox(t *testing.T) {
	var k Kernel = &stubKernel{}
	s, err := k.Box(10, 20, 30)
	if err != nil {
		t.Fatal(err)
	}
	min, max := s.BoundingBox()
	if min != [3]float64{0, 0, 0} {
		t.Errorf("Box min = %v, want [0 0 0]", min)
	}
	if max != [3]float64{10, 20, 30} {
		t.Errorf("Box max = %v, want [10 20 30]", max)
	}
}

func TestRequireSolid(t *testing.T) {
	if err := RequireSolid(nil); !errors.Is(err, ErrEmpty) {
		t.Errorf("RequireSolid(nil) = %v, want ErrEmpty", err)
	}
	if err := RequireSolid(&stubSolid{}); !errors.Is(err, ErrEmpty) {
		t.Errorf("RequireSolid(empty) = %v, want ErrEmpty", err)
	}
	if err := RequireSolid(&stubSolid{maxBB: [3]float64{1, 1, 1}}); err != nil {
		t.Errorf("RequireSolid(box) = %v, want nil", err)
	}
}
