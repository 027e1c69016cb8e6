// Package boss adds a cylindrical boss standing on a placement bound.
package boss

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/chazu/featsynth/pkg/bound"
	"github.com/chazu/featsynth/pkg/feature"
	"github.com/chazu/featsynth/pkg/kernel"
	"github.com/chazu/featsynth/pkg/label"
	"go.uber.org/zap"
)

// Name is the catalog name of the boss feature.
const Name = "boss"

var (
	ErrNoBound           = errors.New("boss: no placement bound")
	ErrInsufficientDepth = errors.New("boss: bound depth below minimum height")
)

var _ feature.Feature = (*Boss)(nil)

// Params are the drawn boss dimensions.
type Params struct {
	Radius float64 `json:"radius"`
	Height float64 `json:"height"`
}

// Result reports one Apply call.
type Result struct {
	Applied bool
	Bound   bound.Bound
	Params  Params
	Err     error
}

// Boss extrudes a circle of random radius along the bound normal and joins
// it to the body.
type Boss struct {
	Kernel    kernel.Kernel
	Bounds    bound.Finder
	Rand      *rand.Rand
	Log       *zap.Logger
	MinLen    float64
	Clearance float64
	Index     int

	env feature.Env // receives outcomes through Report
}

// New is the catalog constructor for the boss.
func New(env feature.Env) (feature.Feature, error) {
	if env.Kernel == nil || env.Bounds == nil || env.Rand == nil || env.Catalog == nil {
		return nil, errors.New("boss: incomplete env")
	}
	index, ok := env.Catalog.Index(Name)
	if !ok {
		return nil, fmt.Errorf("boss: %w: %q", feature.ErrUnknownFeature, Name)
	}
	return &Boss{
		Kernel:    env.Kernel,
		Bounds:    env.Bounds,
		Rand:      env.Rand,
		Log:       env.Logger(),
		MinLen:    env.MinLen,
		Clearance: env.Clearance,
		Index:     index,
		env:       env,
	}, nil
}

func (f *Boss) Name() string { return Name }

// Draw picks a radius in [minLen/2, Diameter/2-clearance], or minLen/2 when
// that range is empty, and a height in [minLen, Depth].
func Draw(r *rand.Rand, b bound.Bound, minLen, clearance float64) (Params, error) {
	if b.Depth < minLen {
		return Params{}, fmt.Errorf("%w: depth %g < %g", ErrInsufficientDepth, b.Depth, minLen)
	}
	lo, hi := minLen/2, b.Diameter/2-clearance
	radius := lo
	if hi > lo {
		radius = lo + r.Float64()*(hi-lo)
	}
	return Params{
		Radius: radius,
		Height: minLen + r.Float64()*(b.Depth-minLen),
	}, nil
}

// Sketch draws a radius for b and returns the boss circle.
func (f *Boss) Sketch(b bound.Bound) (kernel.Outline, error) {
	p, err := Draw(f.Rand, b, f.MinLen, f.Clearance)
	if err != nil {
		return kernel.Outline{}, err
	}
	return sketch(b, p)
}

func sketch(b bound.Bound, p Params) (kernel.Outline, error) {
	fr, err := b.Frame()
	if err != nil {
		return kernel.Outline{}, err
	}
	return kernel.CircleOutline(fr, p.Radius), nil
}

// Apply implements feature.Feature.
func (f *Boss) Apply(body kernel.Solid, labels label.Map) (kernel.Solid, label.Map) {
	next, m, res := f.Run(body, labels)
	f.env.Report(feature.Outcome{
		Feature: Name,
		Index:   f.Index,
		Applied: res.Applied,
		Err:     res.Err,
		Detail:  res,
	})
	return next, m
}

// Run adds the boss or returns the input pair with the reason.
func (f *Boss) Run(body kernel.Solid, labels label.Map) (kernel.Solid, label.Map, Result) {
	log := f.Log
	if log == nil {
		log = zap.NewNop()
	}
	var res Result
	fail := func(err error) (kernel.Solid, label.Map, Result) {
		res.Err = err
		log.Info("boss not applied", zap.Error(err))
		return body, labels, res
	}

	b, ok := bound.Pick(f.Rand, f.Bounds.FindBounds(body))
	if !ok {
		return fail(ErrNoBound)
	}
	if err := b.Validate(); err != nil {
		return fail(fmt.Errorf("%w: %w", ErrNoBound, err))
	}
	res.Bound = b

	p, err := Draw(f.Rand, b, f.MinLen, f.Clearance)
	if err != nil {
		return fail(err)
	}
	res.Params = p

	o, err := sketch(b, p)
	if err != nil {
		return fail(err)
	}
	cyl, err := f.Kernel.Extrude(o, b.Normal, p.Height)
	if err != nil {
		return fail(fmt.Errorf("boss: extrude: %w", err))
	}
	merged, err := f.Kernel.Union(body, cyl)
	if err != nil {
		return fail(fmt.Errorf("boss: union: %w", err))
	}
	if err := kernel.RequireSolid(merged); err != nil {
		return fail(fmt.Errorf("boss: union: %w", err))
	}

	next, m, err := feature.Commit(f.Kernel, body, labels, merged, f.Index)
	if err != nil {
		return fail(err)
	}
	res.Applied = true
	log.Debug("boss applied", zap.Float64("radius", p.Radius), zap.Float64("height", p.Height))
	return next, m, res
}
