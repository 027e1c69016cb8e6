package gear

import (
	"errors"
	"fmt"

	"github.com/chazu/featsynth/pkg/bound"
	"github.com/chazu/featsynth/pkg/kernel"
	"go.uber.org/zap"
)

// SlotOvercut extends each slot cutter past the face width so the cut
// clears the gear's far face.
const SlotOvercut = 1.1

var (
	// ErrDegenerateCylinder is returned when the gear blank cannot be
	// extruded.
	ErrDegenerateCylinder = errors.New("gear: degenerate cylinder")

	// ErrUnionFailed is returned when the blank cannot be joined to the
	// body.
	ErrUnionFailed = errors.New("gear: union failed")

	// ErrSlotSkipped wraps the reason a single slot was not cut. It never
	// escapes Assemble.
	ErrSlotSkipped = errors.New("gear: slot skipped")
)

// Assembly is the result of a successful assembly.
type Assembly struct {
	Solid   kernel.Solid
	Applied []int // tooth indices whose slot was cut
	Skipped []int // tooth indices whose slot was skipped
}

// Assembler builds the gear solid on a body.
type Assembler struct {
	Kernel kernel.Kernel

	// StrictSlots rejects a slot whose cut leaves more than one solid.
	StrictSlots bool

	Log *zap.Logger
}

func (a *Assembler) logger() *zap.Logger {
	if a.Log == nil {
		return zap.NewNop()
	}
	return a.Log
}

// Assemble extrudes the blank, joins it to body and cuts every tooth slot.
// Only a blank or union failure is fatal; a failed slot leaves the solid as
// it was before that slot and is recorded in Skipped.
func (a *Assembler) Assemble(body kernel.Solid, b bound.Bound, p Params) (Assembly, error) {
	base, err := BaseSketch(b, p)
	if err != nil {
		return Assembly{}, fmt.Errorf("%w: %w", ErrDegenerateCylinder, err)
	}
	cyl, err := a.Kernel.Extrude(base, b.Normal, p.FaceWidth)
	if err != nil {
		return Assembly{}, fmt.Errorf("%w: %w", ErrDegenerateCylinder, err)
	}
	if kernel.RequireSolid(cyl) != nil {
		return Assembly{}, fmt.Errorf("%w: empty extrusion", ErrDegenerateCylinder)
	}

	merged, err := a.Kernel.Union(body, cyl)
	if err != nil {
		return Assembly{}, fmt.Errorf("%w: %w", ErrUnionFailed, err)
	}
	if kernel.RequireSolid(merged) != nil {
		return Assembly{}, fmt.Errorf("%w: empty result", ErrUnionFailed)
	}

	asm := Assembly{Solid: merged}
	return a.cutSlots(asm, b, p), nil
}

// cutSlots folds over the tooth indices in ascending order.
func (a *Assembler) cutSlots(asm Assembly, b bound.Bound, p Params) Assembly {
	log := a.logger()
	for i := 0; i < p.NumTeeth; i++ {
		next, err := a.cutSlot(asm.Solid, b, p, i)
		if err != nil {
			asm.Skipped = append(asm.Skipped, i)
			log.Debug("slot skipped", zap.Int("slot", i), zap.Error(err))
			continue
		}
		asm.Solid = next
		asm.Applied = append(asm.Applied, i)
	}
	return asm
}

func (a *Assembler) cutSlot(acc kernel.Solid, b bound.Bound, p Params, i int) (kernel.Solid, error) {
	outline, err := SlotOutline(b, p, i)
	if err != nil {
		return nil, fmt.Errorf("%w: outline: %w", ErrSlotSkipped, err)
	}
	tool, err := a.Kernel.Extrude(outline, b.Normal, SlotOvercut*p.FaceWidth)
	if err != nil {
		return nil, fmt.Errorf("%w: extrude: %w", ErrSlotSkipped, err)
	}
	next, err := a.Kernel.Subtract(acc, tool)
	if err != nil {
		return nil, fmt.Errorf("%w: subtract: %w", ErrSlotSkipped, err)
	}
	if kernel.RequireSolid(next) != nil {
		return nil, fmt.Errorf("%w: empty result", ErrSlotSkipped)
	}
	if a.StrictSlots {
		if n := a.Kernel.SolidCount(next); n != 1 {
			return nil, fmt.Errorf("%w: cut left %d solids", ErrSlotSkipped, n)
		}
	}
	return next, nil
}
