package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/chazu/featsynth/pkg/kernel"
	"github.com/chazu/featsynth/pkg/label"
	"github.com/chazu/featsynth/pkg/tessellate"
)

// Record is the JSON label file written next to each STL.
type Record struct {
	Name      string            `json:"name"`
	Seed      uint64            `json:"seed"`
	Combo     []string          `json:"combo"`
	Stock     [3]float64        `json:"stock"`
	Seg       map[string]int    `json:"seg"`      // face position -> label index
	Sequence  []int             `json:"sequence"` // label index per face, in face order
	Faces     []kernel.FaceID   `json:"faces"`
	Labels    []string          `json:"labels"`
	Triangles map[string]int    `json:"triangles,omitempty"`
	Outcomes  []OutcomeRecord   `json:"outcomes"`
	Params    map[string]string `json:"params,omitempty"`
}

// OutcomeRecord is one feature outcome in a Record.
type OutcomeRecord struct {
	Feature string `json:"feature"`
	Applied bool   `json:"applied"`
	Reason  string `json:"reason"`
}

// Writer stores samples under Dir as <id>.stl and <id>.json.
type Writer struct {
	Dir    string
	Names  []string // label names in index order
	Meshes bool     // count triangles per label
}

// NewRecord builds the label record of s. Faces are listed in kernel order;
// Seg is keyed by position in that list and Sequence holds the same labels
// as a plain array.
func (w *Writer) NewRecord(s *Sample) (Record, error) {
	faces := s.Kernel.Faces(s.Body)
	rec := Record{
		Name:   s.ID,
		Seed:   s.Seed,
		Combo:  s.Combo,
		Stock:  [3]float64{s.Stock.X, s.Stock.Y, s.Stock.Z},
		Seg:    make(map[string]int, len(faces)),
		Faces:  faces,
		Labels: w.Names,
	}
	for _, f := range faces {
		if _, ok := s.Labels[f]; !ok {
			return Record{}, fmt.Errorf("dataset: face %v of %s has no label", f, s.ID)
		}
	}
	rec.Sequence = label.Sequence(s.Kernel, s.Body, s.Labels)
	for i, l := range rec.Sequence {
		rec.Seg[strconv.Itoa(i)] = l
	}
	for _, o := range s.Outcomes {
		rec.Outcomes = append(rec.Outcomes, OutcomeRecord{
			Feature: o.Feature,
			Applied: o.Applied,
			Reason:  Reason(o),
		})
	}
	if g, ok := s.Gear(); ok {
		rec.Params = map[string]string{"spur_gear": g.Params.String()}
	}
	if w.Meshes {
		meshes, err := tessellate.Tessellate(s.Kernel, s.Body, s.Labels, w.Names)
		if err != nil {
			return Record{}, fmt.Errorf("dataset: tessellate %s: %w", s.ID, err)
		}
		rec.Triangles = tessellate.TriangleCounts(meshes)
	}
	return rec, nil
}

// Write stores s and returns its record. The STL is only written when the
// sample's kernel can export one.
func (w *Writer) Write(s *Sample) (Record, error) {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return Record{}, fmt.Errorf("dataset: create output dir: %w", err)
	}
	rec, err := w.NewRecord(s)
	if err != nil {
		return Record{}, err
	}
	if sw, ok := s.Kernel.(kernel.STLWriter); ok {
		if err := sw.WriteSTL(s.Body, filepath.Join(w.Dir, s.ID+".stl")); err != nil {
			return Record{}, fmt.Errorf("dataset: %w", err)
		}
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return Record{}, fmt.Errorf("dataset: encode %s: %w", s.ID, err)
	}
	if err := os.WriteFile(filepath.Join(w.Dir, s.ID+".json"), data, 0644); err != nil {
		return Record{}, fmt.Errorf("dataset: write %s: %w", s.ID, err)
	}
	return rec, nil
}
