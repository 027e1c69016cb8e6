// Package label maintains per-face feature labels across solid edits.
//
// A label is an index into the feature catalog. After every feature the
// map is rebuilt for the new solid: faces that descend from a labeled face
// keep its label, every other face gets the label of the feature that
// produced the edit.
package label

import (
	"errors"
	"fmt"

	"github.com/chazu/featsynth/pkg/kernel"
)

var (
	// ErrUnlabeled is returned by Verify when a face has no entry.
	ErrUnlabeled = errors.New("label: face has no label")

	// ErrStale is returned by Verify when an entry names a face the body
	// does not have.
	ErrStale = errors.New("label: entry for a face not in the body")
)

// Map assigns a feature label to each face of one solid.
type Map map[kernel.FaceID]int

// Uniform labels every face of body with the same label.
func Uniform(k kernel.Kernel, body kernel.Solid, label int) Map {
	faces := k.Faces(body)
	m := make(Map, len(faces))
	for _, f := range faces {
		m[f] = label
	}
	return m
}

// Propagate builds the label map for next from the map of old. Faces of
// next that descend from a labeled face of old inherit its label; all other
// faces of next get featureIndex. The result has an entry for every face of
// next and no other entries.
func Propagate(k kernel.Kernel, old kernel.Solid, oldLabels Map, next kernel.Solid, featureIndex int) Map {
	faces := k.Faces(next)
	out := make(Map, len(faces))
	for f, l := range oldLabels {
		if g, ok := k.CorrespondingFace(old, f, next); ok {
			out[g] = l
		}
	}
	for _, f := range faces {
		if _, ok := out[f]; !ok {
			out[f] = featureIndex
		}
	}
	return out
}

// Verify checks that m labels exactly the faces of body.
func Verify(k kernel.Kernel, body kernel.Solid, m Map) error {
	faces := k.Faces(body)
	seen := make(map[kernel.FaceID]bool, len(faces))
	for _, f := range faces {
		seen[f] = true
		if _, ok := m[f]; !ok {
			return fmt.Errorf("%w: %v", ErrUnlabeled, f)
		}
	}
	for f := range m {
		if !seen[f] {
			return fmt.Errorf("%w: %v", ErrStale, f)
		}
	}
	return nil
}

// Sequence returns the labels in the body's face order.
func Sequence(k kernel.Kernel, body kernel.Solid, m Map) []int {
	faces := k.Faces(body)
	out := make([]int, len(faces))
	for i, f := range faces {
		out[i] = m[f]
	}
	return out
}

// Counts returns how many faces carry each label.
func (m Map) Counts() map[int]int {
	out := make(map[int]int)
	for _, l := range m {
		out[l]++
	}
	return out
}

// Clone returns a copy of m.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for f, l := range m {
		out[f] = l
	}
	return out
}
