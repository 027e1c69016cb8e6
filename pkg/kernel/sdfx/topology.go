package sdfx

import (
	"math"

	"github.com/chazu/featsynth/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/spatial/r3"
)

// wellFormedTol bounds how far a surviving face sample may sit from the
// zero set of its solid.
const wellFormedTol = 1e-6

// Faces returns the face identities of s in a stable order.
func (k *SdfxKernel) Faces(s kernel.Solid) []kernel.FaceID {
	ss, err := unwrap(s)
	if err != nil || ss.Empty() {
		return nil
	}
	ids := make([]kernel.FaceID, len(ss.faces))
	for i := range ss.faces {
		ids[i] = kernel.FaceID{Solid: ss.serial, Index: i}
	}
	return ids
}

// lookup returns the tracked face f of ss, or false when f was not read
// from ss.
func lookup(ss *sdfxSolid, f kernel.FaceID) (face, bool) {
	if f.Solid != ss.serial || f.Index < 0 || f.Index >= len(ss.faces) {
		return face{}, false
	}
	return ss.faces[f.Index], true
}

// CorrespondingFace maps a face of old to the face of next with the same
// origin.
func (k *SdfxKernel) CorrespondingFace(old kernel.Solid, f kernel.FaceID, next kernel.Solid) (kernel.FaceID, bool) {
	so, sn, err := unwrapPair(old, next)
	if err != nil {
		return kernel.FaceID{}, false
	}
	src, ok := lookup(so, f)
	if !ok {
		return kernel.FaceID{}, false
	}
	for i, g := range sn.faces {
		if g.origin == src.origin {
			return kernel.FaceID{Solid: sn.serial, Index: i}, true
		}
	}
	return kernel.FaceID{}, false
}

// FacePoints returns the surviving surface samples of a face.
func (k *SdfxKernel) FacePoints(s kernel.Solid, f kernel.FaceID) []r3.Vec {
	ss, err := unwrap(s)
	if err != nil {
		return nil
	}
	src, ok := lookup(ss, f)
	if !ok {
		return nil
	}
	pts := make([]r3.Vec, len(src.samples))
	for i, smp := range src.samples {
		pts[i] = smp.p
	}
	return pts
}

// IsWellFormed reports whether the solid is non-empty, has finite
// non-degenerate bounds, at least one face, and every face sample on the
// solid's zero set.
func (k *SdfxKernel) IsWellFormed(s kernel.Solid) bool {
	ss, err := unwrap(s)
	if err != nil || ss.Empty() {
		return false
	}
	bb := ss.s.BoundingBox()
	for _, c := range []float64{bb.Min.X, bb.Min.Y, bb.Min.Z, bb.Max.X, bb.Max.Y, bb.Max.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	if !(bb.Max.X > bb.Min.X && bb.Max.Y > bb.Min.Y && bb.Max.Z > bb.Min.Z) {
		return false
	}
	for _, f := range ss.faces {
		for _, smp := range f.samples {
			d := ss.s.Evaluate(toV3(smp.p))
			if math.IsNaN(d) || math.Abs(d) > wellFormedTol {
				return false
			}
		}
	}
	return true
}

// SolidCount counts 26-connected components of occupied cells over the
// bounding box. A cell is occupied when one of its corners or its center is
// strictly inside the solid. Only the sign of Evaluate is used; after a
// boolean its magnitude is a bound, not a distance. Walls at least a cell
// thick stay connected; gaps narrower than about a cell diagonal merge.
func (k *SdfxKernel) SolidCount(s kernel.Solid) int {
	ss, err := unwrap(s)
	if err != nil || ss.Empty() {
		return 0
	}
	bb := ss.s.BoundingBox()
	size := [3]float64{bb.Max.X - bb.Min.X, bb.Max.Y - bb.Min.Y, bb.Max.Z - bb.Min.Z}
	longest := math.Max(size[0], math.Max(size[1], size[2]))
	if !(longest > 0) {
		return 0
	}
	cell := longest / float64(k.opts.GridCells)

	var n [3]int
	for i := range n {
		n[i] = max(int(math.Ceil(size[i]/cell)), 1)
	}
	inside := func(x, y, z float64) bool {
		return ss.s.Evaluate(v3.Vec{
			X: bb.Min.X + x*cell,
			Y: bb.Min.Y + y*cell,
			Z: bb.Min.Z + z*cell,
		}) < 0
	}

	// corner lattice, one point more than cells per axis
	cn := [3]int{n[0] + 1, n[1] + 1, n[2] + 1}
	corner := make([]bool, cn[0]*cn[1]*cn[2])
	for z := 0; z < cn[2]; z++ {
		for y := 0; y < cn[1]; y++ {
			for x := 0; x < cn[0]; x++ {
				corner[(z*cn[1]+y)*cn[0]+x] = inside(float64(x), float64(y), float64(z))
			}
		}
	}

	at := func(x, y, z int) int { return (z*n[1]+y)*n[0] + x }
	occupied := make([]bool, n[0]*n[1]*n[2])
	for z := 0; z < n[2]; z++ {
		for y := 0; y < n[1]; y++ {
			for x := 0; x < n[0]; x++ {
				occ := false
				for dz := 0; dz <= 1; dz++ {
					for dy := 0; dy <= 1; dy++ {
						for dx := 0; dx <= 1; dx++ {
							occ = occ || corner[((z+dz)*cn[1]+y+dy)*cn[0]+x+dx]
						}
					}
				}
				if !occ {
					occ = inside(float64(x)+0.5, float64(y)+0.5, float64(z)+0.5)
				}
				occupied[at(x, y, z)] = occ
			}
		}
	}

	seen := make([]bool, len(occupied))
	var steps [][3]int
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx != 0 || dy != 0 || dz != 0 {
					steps = append(steps, [3]int{dx, dy, dz})
				}
			}
		}
	}
	count := 0
	for start := range occupied {
		if !occupied[start] || seen[start] {
			continue
		}
		count++
		seen[start] = true
		queue := []int{start}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			cx := cur % n[0]
			cy := (cur / n[0]) % n[1]
			cz := cur / (n[0] * n[1])
			for _, d := range steps {
				x, y, z := cx+d[0], cy+d[1], cz+d[2]
				if x < 0 || y < 0 || z < 0 || x >= n[0] || y >= n[1] || z >= n[2] {
					continue
				}
				i := at(x, y, z)
				if occupied[i] && !seen[i] {
					seen[i] = true
					queue = append(queue, i)
				}
			}
		}
	}
	return count
}
