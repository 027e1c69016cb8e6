// Package tessellate turns a labeled body into triangle meshes, one mesh
// per feature label. Each triangle takes the label of the tracked face
// sample nearest its centroid.
package tessellate

import (
	"errors"
	"fmt"
	"sort"

	"github.com/chazu/featsynth/pkg/kernel"
	"github.com/chazu/featsynth/pkg/label"
	"github.com/dhconnelly/rtreego"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNoSamples is returned when no labeled face has a surface sample.
var ErrNoSamples = errors.New("tessellate: no face samples")

// sampleTol is the extent of a sample's point rectangle in the tree.
const sampleTol = 1e-6

// sample is one labeled surface point stored in the R-tree.
type sample struct {
	rect  rtreego.Rect
	label int
}

func (s *sample) Bounds() rtreego.Rect { return s.rect }

// Index answers nearest-label queries over the face samples of a body.
type Index struct {
	tree *rtreego.Rtree
	size int
}

// NewIndex collects the samples of every labeled face of body.
func NewIndex(k kernel.Kernel, body kernel.Solid, labels label.Map) (*Index, error) {
	tree := rtreego.NewTree(3, 8, 32)
	size := 0
	for _, f := range k.Faces(body) {
		l, ok := labels[f]
		if !ok {
			return nil, fmt.Errorf("tessellate: face %v: %w", f, label.ErrUnlabeled)
		}
		for _, p := range k.FacePoints(body, f) {
			tree.Insert(&sample{rect: point(p).ToRect(sampleTol), label: l})
			size++
		}
	}
	if size == 0 {
		return nil, ErrNoSamples
	}
	return &Index{tree: tree, size: size}, nil
}

// Len returns the number of indexed samples.
func (ix *Index) Len() int { return ix.size }

// Label returns the label of the sample nearest p.
func (ix *Index) Label(p r3.Vec) (int, bool) {
	s, ok := ix.tree.NearestNeighbor(point(p)).(*sample)
	if !ok || s == nil {
		return 0, false
	}
	return s.label, true
}

func point(p r3.Vec) rtreego.Point {
	return rtreego.Point{p.X, p.Y, p.Z}
}

// Tessellate meshes body and splits the triangles by label. names maps a
// label index to the mesh PartName; unnamed labels get "label-<n>". Meshes
// are returned in ascending label order and empty labels are omitted.
func Tessellate(k kernel.Kernel, body kernel.Solid, labels label.Map, names []string) ([]*kernel.Mesh, error) {
	if err := kernel.RequireSolid(body); err != nil {
		return nil, fmt.Errorf("tessellate: %w", err)
	}
	ix, err := NewIndex(k, body, labels)
	if err != nil {
		return nil, err
	}
	whole, err := k.ToMesh(body)
	if err != nil {
		return nil, fmt.Errorf("tessellate: ToMesh failed: %w", err)
	}
	return Split(whole, ix, names), nil
}

// Split partitions the triangles of m by the label nearest each centroid.
func Split(m *kernel.Mesh, ix *Index, names []string) []*kernel.Mesh {
	parts := make(map[int]*kernel.Mesh)
	for i := 0; i < m.TriangleCount(); i++ {
		c := m.Centroid(i)
		l, ok := ix.Label(r3.Vec{X: c[0], Y: c[1], Z: c[2]})
		if !ok {
			continue
		}
		part, ok := parts[l]
		if !ok {
			part = &kernel.Mesh{PartName: partName(names, l)}
			parts[l] = part
		}
		part.AppendTriangle(m, i)
	}

	order := make([]int, 0, len(parts))
	for l := range parts {
		order = append(order, l)
	}
	sort.Ints(order)
	out := make([]*kernel.Mesh, len(order))
	for i, l := range order {
		out[i] = parts[l]
	}
	return out
}

func partName(names []string, l int) string {
	if l >= 0 && l < len(names) && names[l] != "" {
		return names[l]
	}
	return fmt.Sprintf("label-%d", l)
}

// TriangleCounts returns the number of triangles per part name.
func TriangleCounts(meshes []*kernel.Mesh) map[string]int {
	out := make(map[string]int, len(meshes))
	for _, m := range meshes {
		out[m.PartName] += m.TriangleCount()
	}
	return out
}
