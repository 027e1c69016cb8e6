// Package kernel defines the abstract geometry kernel interface.
// Implementations provide solid construction, boolean operations, topology
// queries and face identity tracking behind this interface so the feature
// pipeline never touches a concrete backend.
package kernel

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrDegenerate is returned when an input cannot describe a solid
	// (non-positive distance, zero radius, collapsed polygon).
	ErrDegenerate = errors.New("kernel: degenerate input")

	// ErrEmpty is returned by helpers that require a non-empty solid.
	ErrEmpty = errors.New("kernel: empty solid")

	// ErrOblique is returned when an extrusion direction is not parallel to
	// the outline's plane normal.
	ErrOblique = errors.New("kernel: extrusion direction not normal to sketch plane")

	// ErrForeignSolid is returned when a solid was produced by another
	// kernel implementation.
	ErrForeignSolid = errors.New("kernel: solid belongs to a different kernel")
)

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation. Solids are immutable;
// every operation returns a new handle.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)

	// Serial identifies this solid within its kernel. Face identities
	// carry it so a FaceID read from one solid is never mistaken for a
	// face of another.
	Serial() uint64

	// Empty reports whether the solid encloses no volume.
	Empty() bool
}

// FaceID is a structural face identity. It is only meaningful for the solid
// whose serial it carries.
type FaceID struct {
	Solid uint64 `json:"solid"`
	Index int    `json:"index"`
}

func (f FaceID) String() string {
	return fmt.Sprintf("%d/%d", f.Solid, f.Index)
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Primitives
	Box(x, y, z float64) (Solid, error) // min corner at the origin
	Extrude(o Outline, dir r3.Vec, distance float64) (Solid, error)

	// Boolean operations
	Union(a, b Solid) (Solid, error)
	Subtract(a, b Solid) (Solid, error)

	// Topology queries
	SolidCount(s Solid) int
	IsWellFormed(s Solid) bool
	Faces(s Solid) []FaceID

	// CorrespondingFace maps face f of old to the face of next that
	// descends from it, if one survived the operations between them.
	CorrespondingFace(old Solid, f FaceID, next Solid) (FaceID, bool)

	// Point queries
	FacePoints(s Solid, f FaceID) []r3.Vec
	Inside(s Solid, p r3.Vec) bool

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
}

// STLWriter is implemented by kernels that can export a solid directly to
// an STL file.
type STLWriter interface {
	WriteSTL(s Solid, path string) error
}

// RequireSolid returns ErrEmpty when s is nil or empty.
func RequireSolid(s Solid) error {
	if s == nil || s.Empty() {
		return ErrEmpty
	}
	return nil
}
