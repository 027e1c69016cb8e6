// Package feature defines the contract shared by every feature variant and
// the catalog that maps feature names to label indices and constructors.
package feature

import (
	"math/rand/v2"

	"github.com/chazu/featsynth/pkg/bound"
	"github.com/chazu/featsynth/pkg/kernel"
	"github.com/chazu/featsynth/pkg/label"
	"github.com/chazu/featsynth/pkg/topology"
	"go.uber.org/zap"
)

// Feature adds one machining feature to a labeled body. Apply returns the
// input pair unchanged when the feature cannot be placed.
type Feature interface {
	Name() string
	Sketch(b bound.Bound) (kernel.Outline, error)
	Apply(body kernel.Solid, labels label.Map) (kernel.Solid, label.Map)
}

// Outcome reports what one Apply call did. Detail carries the variant's
// own result type.
type Outcome struct {
	Feature string
	Index   int
	Applied bool
	Err     error
	Detail  any
}

// Env is everything a feature needs from its caller. A feature owns none of
// it; one Env serves one sample.
type Env struct {
	Kernel    kernel.Kernel
	Bounds    bound.Finder
	Rand      *rand.Rand
	Log       *zap.Logger
	MinLen    float64
	Clearance float64
	Catalog   *Catalog

	// StrictSlots rejects a slot cut that splits the body.
	StrictSlots bool

	// Observe, when set, receives the outcome of every Apply.
	Observe func(Outcome)
}

// Logger returns env.Log or a no-op logger.
func (env Env) Logger() *zap.Logger {
	if env.Log == nil {
		return zap.NewNop()
	}
	return env.Log
}

// Report delivers an outcome to the observer, if any.
func (env Env) Report(o Outcome) {
	if env.Observe != nil {
		env.Observe(o)
	}
}

// Commit accepts next only if it passes topology validation, in which case
// it returns next with labels propagated from old. Otherwise it returns the
// old pair and the validation error.
func Commit(k kernel.Kernel, old kernel.Solid, oldLabels label.Map, next kernel.Solid, index int) (kernel.Solid, label.Map, error) {
	if err := topology.Validate(k, next); err != nil {
		return old, oldLabels, err
	}
	return next, label.Propagate(k, old, oldLabels, next, index), nil
}
