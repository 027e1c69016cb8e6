// Package dataset synthesizes labeled samples: a random box stock, a
// sequence of features applied through the catalog, and the resulting face
// labels.
package dataset

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/chazu/featsynth/pkg/bound"
	"github.com/chazu/featsynth/pkg/config"
	"github.com/chazu/featsynth/pkg/feature"
	"github.com/chazu/featsynth/pkg/feature/boss"
	"github.com/chazu/featsynth/pkg/feature/gear"
	"github.com/chazu/featsynth/pkg/kernel"
	"github.com/chazu/featsynth/pkg/kernel/sdfx"
	"github.com/chazu/featsynth/pkg/label"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// streamSalt is the second PCG word; the sample seed is the first.
const streamSalt = 0x9e3779b97f4a7c15

// sampleSpace is the name-based UUID namespace of sample ids.
var sampleSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("featsynth:sample"))

// SampleID derives the id of a sample from everything that determines it,
// so regenerating a seed reproduces its file names.
func SampleID(seed uint64, combo []string, stock r3.Vec) string {
	name := fmt.Sprintf("%d|%s|%g,%g,%g", seed, strings.Join(combo, ","), stock.X, stock.Y, stock.Z)
	return uuid.NewSHA1(sampleSpace, []byte(name)).String()
}

// ErrEmptyCombo is returned when a sample has no feature to apply.
var ErrEmptyCombo = errors.New("dataset: empty feature combination")

// Sample is one generated body with its labels.
type Sample struct {
	ID       string
	Seed     uint64
	Combo    []string
	Stock    r3.Vec
	Body     kernel.Solid
	Labels   label.Map
	Outcomes []feature.Outcome
	Kernel   kernel.Kernel // the kernel that owns Body
}

// KernelFactory returns a fresh kernel for one sample.
type KernelFactory func() kernel.Kernel

// SdfxFactory returns a factory for sdfx kernels sized by cfg.
func SdfxFactory(cfg config.Kernel) KernelFactory {
	opts := sdfx.Options{
		GridCells:   cfg.GridCells,
		CapSamples:  cfg.CapSamples,
		SideSamples: cfg.SideSamples,
		ArcSamples:  cfg.ArcSamples,
		MeshCells:   cfg.MeshCells,
	}
	return func() kernel.Kernel { return sdfx.NewWithOptions(opts) }
}

// NewCatalog builds the catalog over names and registers every feature
// this module can build whose name is listed.
func NewCatalog(names []string) (*feature.Catalog, error) {
	c, err := feature.NewCatalog(names)
	if err != nil {
		return nil, err
	}
	ctors := map[string]feature.Constructor{
		gear.Name: gear.New,
		boss.Name: boss.New,
	}
	for name, ctor := range ctors {
		if _, ok := c.Index(name); !ok {
			continue
		}
		if err := c.Register(name, ctor); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Generator builds samples. It is safe for concurrent use: every sample
// gets its own kernel and random stream.
type Generator struct {
	Config    *config.Config
	Catalog   *feature.Catalog
	NewKernel KernelFactory
	Log       *zap.Logger
}

// New returns a generator for cfg backed by the sdfx kernel.
func New(cfg *config.Config, log *zap.Logger) (*Generator, error) {
	if cfg == nil {
		return nil, errors.New("dataset: nil config")
	}
	c, err := NewCatalog(cfg.Feature.Names)
	if err != nil {
		return nil, fmt.Errorf("dataset: catalog: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{
		Config:    cfg,
		Catalog:   c,
		NewKernel: SdfxFactory(cfg.Kernel),
		Log:       log,
	}, nil
}

// StockLabel is the label of untouched stock faces: the last catalog name.
func (g *Generator) StockLabel() int {
	return len(g.Catalog.Names()) - 1
}

// Rand returns the random stream of a sample seed.
func Rand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, streamSalt))
}

// DrawStock draws box dimensions uniformly in [min, max] per axis.
func DrawStock(r *rand.Rand, s config.Stock) r3.Vec {
	draw := func() float64 { return s.Min + r.Float64()*(s.Max-s.Min) }
	x := draw()
	y := draw()
	z := draw()
	return r3.Vec{X: x, Y: y, Z: z}
}

// DrawCombo picks up to size distinct buildable features in random order.
func DrawCombo(r *rand.Rand, buildable []string, size int) []string {
	if size > len(buildable) {
		size = len(buildable)
	}
	out := make([]string, 0, size)
	for _, i := range r.Perm(len(buildable))[:size] {
		out = append(out, buildable[i])
	}
	return out
}

// Generate builds one sample. A nil stock is drawn from the configured
// range; an empty combo is drawn from the buildable features. Features that
// cannot be placed leave the body unchanged and show up in Outcomes; only
// stock construction, unknown features and label corruption are errors.
func (g *Generator) Generate(seed uint64, combo []string, stock *r3.Vec) (*Sample, error) {
	r := Rand(seed)
	k := g.NewKernel()
	log := g.Log
	if log == nil {
		log = zap.NewNop()
	}

	dims := DrawStock(r, g.Config.Stock)
	if stock != nil {
		dims = *stock
	}
	if len(combo) == 0 {
		combo = DrawCombo(r, g.Catalog.Buildable(), g.Config.Dataset.ComboSize)
	}
	if len(combo) == 0 {
		return nil, ErrEmptyCombo
	}

	s := &Sample{
		ID:     SampleID(seed, combo, dims),
		Seed:   seed,
		Combo:  append([]string(nil), combo...),
		Stock:  dims,
		Kernel: k,
	}
	log = log.With(zap.String("sample", s.ID), zap.Uint64("seed", seed))

	body, err := k.Box(dims.X, dims.Y, dims.Z)
	if err != nil {
		return nil, fmt.Errorf("dataset: stock %v: %w", dims, err)
	}
	labels := label.Uniform(k, body, g.StockLabel())

	env := feature.Env{
		Kernel: k,
		Bounds: &bound.StockFinder{
			Kernel:   k,
			Dims:     dims,
			MaxDepth: g.Config.Feature.MaxDepth,
		},
		Rand:        r,
		Log:         log,
		MinLen:      g.Config.Feature.MinLen,
		Clearance:   g.Config.Feature.Clearance,
		Catalog:     g.Catalog,
		StrictSlots: g.Config.Gear.StrictSlots,
		Observe:     func(o feature.Outcome) { s.Outcomes = append(s.Outcomes, o) },
	}
	for _, name := range combo {
		f, err := g.Catalog.New(name, env)
		if err != nil {
			return nil, fmt.Errorf("dataset: %w", err)
		}
		body, labels = f.Apply(body, labels)
	}
	if err := label.Verify(k, body, labels); err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}

	s.Body, s.Labels = body, labels
	log.Debug("sample generated",
		zap.Strings("combo", s.Combo),
		zap.Int("faces", len(labels)),
		zap.String("outcome", s.Outcome()),
	)
	return s, nil
}

// Outcome summarizes a sample: "applied" when every feature was applied,
// otherwise the reason of the first feature that was not.
func (s *Sample) Outcome() string {
	for _, o := range s.Outcomes {
		if !o.Applied {
			return Reason(o)
		}
	}
	return "applied"
}

// Gear returns the result of the first gear applied to the sample.
func (s *Sample) Gear() (gear.Result, bool) {
	for _, o := range s.Outcomes {
		if r, ok := o.Detail.(gear.Result); ok && o.Applied {
			return r, true
		}
	}
	return gear.Result{}, false
}

// Reason maps a feature outcome to a short code.
func Reason(o feature.Outcome) string {
	if r, ok := o.Detail.(gear.Result); ok {
		return r.Reason()
	}
	switch {
	case o.Applied:
		return "applied"
	case o.Err == nil:
		return "not-applied"
	case errors.Is(o.Err, boss.ErrNoBound):
		return "no-bound"
	case errors.Is(o.Err, boss.ErrInsufficientDepth):
		return "insufficient-depth"
	default:
		return gear.Reason(o.Err)
	}
}
