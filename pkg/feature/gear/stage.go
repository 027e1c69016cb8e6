package gear

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/chazu/featsynth/pkg/bound"
	"github.com/chazu/featsynth/pkg/feature"
	"github.com/chazu/featsynth/pkg/kernel"
	"github.com/chazu/featsynth/pkg/label"
	"github.com/chazu/featsynth/pkg/topology"
	"go.uber.org/zap"
)

// Name is the catalog name of the spur gear feature.
const Name = "spur_gear"

// ErrNoBound is returned when the body offers no usable placement bound.
var ErrNoBound = errors.New("gear: no placement bound")

var _ feature.Feature = (*Stage)(nil)

// Result reports one stage run. On failure Err is set and the stage
// returned its input unchanged.
type Result struct {
	Applied  bool
	Bound    bound.Bound
	Params   Params
	Attempts int
	Slots    []int // cut tooth indices
	Skipped  []int // skipped tooth indices
	Err      error
}

// Reason returns a short code for the outcome.
func (r Result) Reason() string {
	return Reason(r.Err)
}

// Reason maps a stage error to a short code. A nil error is "applied".
func Reason(err error) string {
	switch {
	case err == nil:
		return "applied"
	case errors.Is(err, ErrNoBound):
		return "no-bound"
	case errors.Is(err, ErrInsufficientDepth):
		return "insufficient-depth"
	case errors.Is(err, ErrParameterSpaceExhausted):
		return "parameter-space-exhausted"
	case errors.Is(err, ErrDegenerateCylinder):
		return "degenerate-cylinder"
	case errors.Is(err, ErrUnionFailed):
		return "union-failed"
	case errors.Is(err, topology.ErrInvalid):
		return "invalid-topology"
	default:
		return "error"
	}
}

// Stage applies a spur gear to a labeled body:
// Generate → BaseSketch/SlotOutline → Assemble → Validate → Propagate.
// Any failure returns the input pair unchanged.
type Stage struct {
	Kernel      kernel.Kernel
	Bounds      bound.Finder
	Rand        *rand.Rand
	Log         *zap.Logger
	MinLen      float64
	Clearance   float64
	Index       int // label for faces the gear creates
	StrictSlots bool

	env feature.Env // receives outcomes through Report
}

// New is the catalog constructor for the spur gear.
func New(env feature.Env) (feature.Feature, error) {
	return NewStage(env)
}

// NewStage builds a stage from env, resolving the gear's label index from
// the catalog once.
func NewStage(env feature.Env) (*Stage, error) {
	switch {
	case env.Kernel == nil:
		return nil, errors.New("gear: env has no kernel")
	case env.Bounds == nil:
		return nil, errors.New("gear: env has no bound finder")
	case env.Rand == nil:
		return nil, errors.New("gear: env has no random stream")
	case env.Catalog == nil:
		return nil, errors.New("gear: env has no feature catalog")
	}
	index, ok := env.Catalog.Index(Name)
	if !ok {
		return nil, fmt.Errorf("gear: %w: %q", feature.ErrUnknownFeature, Name)
	}
	return &Stage{
		Kernel:      env.Kernel,
		Bounds:      env.Bounds,
		Rand:        env.Rand,
		Log:         env.Logger(),
		MinLen:      env.MinLen,
		Clearance:   env.Clearance,
		Index:       index,
		StrictSlots: env.StrictSlots,
		env:         env,
	}, nil
}

func (s *Stage) Name() string { return Name }

// Sketch draws parameters for b and returns the gear blank outline.
func (s *Stage) Sketch(b bound.Bound) (kernel.Outline, error) {
	p, _, err := Generate(s.Rand, b, s.MinLen, s.Clearance)
	if err != nil {
		return kernel.Outline{}, err
	}
	return BaseSketch(b, p)
}

// Apply implements feature.Feature.
func (s *Stage) Apply(body kernel.Solid, labels label.Map) (kernel.Solid, label.Map) {
	next, m, res := s.Run(body, labels)
	s.env.Report(feature.Outcome{
		Feature: Name,
		Index:   s.Index,
		Applied: res.Applied,
		Err:     res.Err,
		Detail:  res,
	})
	return next, m
}

// Run applies the gear and reports what happened. The returned pair is
// either the validated gear body with propagated labels or the input pair.
func (s *Stage) Run(body kernel.Solid, labels label.Map) (out kernel.Solid, outLabels label.Map, res Result) {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	defer func() {
		if r := recover(); r != nil {
			out, outLabels = body, labels
			res.Applied = false
			res.Err = fmt.Errorf("gear: recovered from panic: %v", r)
			log.Error("gear stage panicked", zap.Any("panic", r))
		}
	}()

	fail := func(err error) (kernel.Solid, label.Map, Result) {
		res.Err = err
		log.Info("gear not applied", zap.String("reason", Reason(err)), zap.Error(err))
		return body, labels, res
	}

	b, ok := bound.Pick(s.Rand, s.Bounds.FindBounds(body))
	if !ok {
		return fail(ErrNoBound)
	}
	if err := b.Validate(); err != nil {
		return fail(fmt.Errorf("%w: %w", ErrNoBound, err))
	}
	res.Bound = b

	p, attempts, err := Generate(s.Rand, b, s.MinLen, s.Clearance)
	res.Attempts = attempts
	if err != nil {
		return fail(err)
	}
	res.Params = p

	asm, err := (&Assembler{Kernel: s.Kernel, StrictSlots: s.StrictSlots, Log: log}).Assemble(body, b, p)
	if err != nil {
		return fail(err)
	}
	res.Slots, res.Skipped = asm.Applied, asm.Skipped

	next, m, err := feature.Commit(s.Kernel, body, labels, asm.Solid, s.Index)
	if err != nil {
		return fail(err)
	}
	res.Applied = true
	log.Debug("gear applied",
		zap.Stringer("params", p),
		zap.Int("attempts", attempts),
		zap.Int("slots", len(asm.Applied)),
		zap.Int("skipped", len(asm.Skipped)),
	)
	return next, m, res
}

// ApplyGearFeature is the functional form of Stage.Apply: it builds a stage
// from env and applies it once. A stage that cannot be built leaves the
// input unchanged.
func ApplyGearFeature(env feature.Env, body kernel.Solid, labels label.Map) (kernel.Solid, label.Map) {
	s, err := NewStage(env)
	if err != nil {
		env.Logger().Warn("gear stage unavailable", zap.Error(err))
		return body, labels
	}
	return s.Apply(body, labels)
}
