// Package gear synthesizes a spur gear on a placement bound: it draws gear
// parameters, builds the blank circle and the tooth-slot trapezoids,
// assembles the solid with a per-slot fault-tolerant fold, validates it and
// propagates face labels.
package gear

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/chazu/featsynth/pkg/bound"
	"github.com/chazu/featsynth/pkg/geom"
)

// Parameter ranges and tooth proportions.
const (
	MinTeeth    = 8
	MaxTeeth    = 30
	MinModule   = 0.5
	MaxModule   = 2.0
	MaxAttempts = 10

	AddendumFactor  = 2.0  // addendum diameter = pitch + 2m
	DedendumFactor  = 2.5  // dedendum diameter = pitch - 2.5m
	SlotDepthFactor = 1.25 // nominal slot depth = 1.25m
)

var (
	// ErrParameterSpaceExhausted is returned when every draw produced a
	// gear too large for the bound.
	ErrParameterSpaceExhausted = errors.New("gear: parameter space exhausted")

	// ErrInsufficientDepth is returned when the bound is shallower than the
	// minimum face width.
	ErrInsufficientDepth = errors.New("gear: bound depth below minimum face width")
)

// Params is an immutable set of gear parameters.
type Params struct {
	NumTeeth         int     `json:"num_teeth"`
	Module           float64 `json:"module"`
	PitchDiameter    float64 `json:"pitch_diameter"`
	AddendumDiameter float64 `json:"addendum_diameter"`
	DedendumDiameter float64 `json:"dedendum_diameter"`
	FaceWidth        float64 `json:"face_width"`
}

// NewParams derives the diameters from tooth count and module.
func NewParams(numTeeth int, module, faceWidth float64) Params {
	pitch := module * float64(numTeeth)
	return Params{
		NumTeeth:         numTeeth,
		Module:           module,
		PitchDiameter:    pitch,
		AddendumDiameter: pitch + AddendumFactor*module,
		DedendumDiameter: pitch - DedendumFactor*module,
		FaceWidth:        faceWidth,
	}
}

func (p Params) String() string {
	return fmt.Sprintf("z=%d m=%.3f da=%.3f b=%.3f", p.NumTeeth, p.Module, p.AddendumDiameter, p.FaceWidth)
}

// Slot is the derived geometry of one tooth gap.
type Slot struct {
	Index     int
	Depth     float64 // nominal, 1.25m
	Width     float64 // chord at the pitch circle
	Angle     float64 // center line, radians
	HalfAngle float64 // angular half-width about Angle
	Root      float64 // dedendum radius
	Tip       float64 // addendum radius
}

// Slot returns the geometry of tooth gap i.
func (p Params) Slot(i int) Slot {
	width := math.Pi * p.Module / 2
	return Slot{
		Index:     i,
		Depth:     SlotDepthFactor * p.Module,
		Width:     width,
		Angle:     2 * math.Pi * float64(i) / float64(p.NumTeeth),
		HalfAngle: geom.ChordHalfAngle(p.PitchDiameter/2, width),
		Root:      p.DedendumDiameter / 2,
		Tip:       p.AddendumDiameter / 2,
	}
}

// closedUnit returns a uniform value on [0, 1], both ends included. The
// grid is that of Float64, one step past it.
func closedUnit(r *rand.Rand) float64 {
	return float64(r.Uint64N(1<<53+1)) / (1 << 53)
}

// Generate draws gear parameters that fit the bound. It makes at most
// MaxAttempts full (teeth, module) draws and returns the number of draws
// used. Face width is drawn once, after a draw is accepted. Every range is
// closed.
func Generate(r *rand.Rand, b bound.Bound, minLen, clearance float64) (Params, int, error) {
	if b.Depth < minLen {
		return Params{}, 0, fmt.Errorf("%w: depth %g < %g", ErrInsufficientDepth, b.Depth, minLen)
	}
	limit := b.Diameter - clearance
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		teeth := MinTeeth + r.IntN(MaxTeeth-MinTeeth+1)
		module := MinModule + closedUnit(r)*(MaxModule-MinModule)
		p := NewParams(teeth, module, 0)
		if p.AddendumDiameter > limit {
			continue
		}
		p.FaceWidth = minLen + closedUnit(r)*(b.Depth-minLen)
		return p, attempt, nil
	}
	return Params{}, MaxAttempts, fmt.Errorf("%w after %d attempts (diameter %g, clearance %g)",
		ErrParameterSpaceExhausted, MaxAttempts, b.Diameter, clearance)
}
