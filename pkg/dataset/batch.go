package dataset

import (
	"context"
	"strconv"
	"sync"

	"github.com/chazu/featsynth/pkg/directive"
	"github.com/chazu/featsynth/pkg/manifest"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// Batch describes one generation run. Sample i uses seed Seed+i and combo
// Combos[i % len(Combos)]; with no combos every sample draws its own.
type Batch struct {
	Samples int
	Seed    uint64
	Workers int
	Combos  [][]string
	Stock   *r3.Vec
}

// BatchFromConfig returns the batch the configuration describes.
func (g *Generator) BatchFromConfig() Batch {
	d := g.Config.Dataset
	return Batch{
		Samples: d.Samples,
		Seed:    d.Seed,
		Workers: d.Workers,
		Combos:  d.Combos,
	}
}

// WithPlan overrides b with whatever the recipe sets. A recipe with combos
// but no explicit sample count generates one sample per combo.
func (b Batch) WithPlan(p *directive.Plan) Batch {
	if p == nil {
		return b
	}
	if p.Stock != nil {
		b.Stock = &r3.Vec{X: p.Stock.X, Y: p.Stock.Y, Z: p.Stock.Z}
	}
	if p.Seed != nil {
		b.Seed = *p.Seed
	}
	if len(p.Combos) > 0 {
		b.Combos = p.Combos
		b.Samples = len(p.Combos)
	}
	return b
}

// Summary counts the samples of a run by how they ended.
type Summary struct {
	Samples int            `json:"samples" yaml:"samples"`
	Written int            `json:"written" yaml:"written"`
	Failed  int            `json:"failed" yaml:"failed"`
	Reasons map[string]int `json:"reasons" yaml:"reasons"`
}

// Runner drives a batch through a generator, a writer and an optional
// manifest.
type Runner struct {
	Generator *Generator
	Writer    *Writer
	Manifest  *manifest.Store // may be nil
}

// Run generates b. A failed sample is logged and counted, never fatal;
// Run only returns an error when ctx is canceled.
func (r *Runner) Run(ctx context.Context, b Batch) (Summary, error) {
	log := r.Generator.Log
	if log == nil {
		log = zap.NewNop()
	}
	workers := b.Workers
	if workers < 1 {
		workers = 1
	}

	var (
		mu  sync.Mutex
		sum = Summary{Reasons: make(map[string]int)}
	)
	count := func(reason string, written bool) {
		mu.Lock()
		defer mu.Unlock()
		sum.Samples++
		sum.Reasons[reason]++
		if written {
			sum.Written++
		} else {
			sum.Failed++
		}
	}

	// gctx is canceled when Wait returns; only ctx reports the caller.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < b.Samples; i++ {
		if gctx.Err() != nil {
			break
		}
		seed := b.Seed + uint64(i)
		var combo []string
		if len(b.Combos) > 0 {
			combo = b.Combos[i%len(b.Combos)]
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reason, written := r.one(gctx, log, seed, combo, b.Stock)
			count(reason, written)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}
	if err := ctx.Err(); err != nil {
		return sum, err
	}
	log.Info("batch complete",
		zap.Int("samples", sum.Samples),
		zap.Int("written", sum.Written),
		zap.Int("failed", sum.Failed),
	)
	return sum, nil
}

// one generates, writes and records a single sample.
func (r *Runner) one(ctx context.Context, log *zap.Logger, seed uint64, combo []string, stock *r3.Vec) (string, bool) {
	s, err := r.Generator.Generate(seed, combo, stock)
	if err != nil {
		log.Warn("sample failed", zap.Uint64("seed", seed), zap.Error(err))
		r.record(ctx, log, manifest.Entry{ID: failedID(seed), Seed: seed, Combo: combo, Outcome: "error"})
		return "error", false
	}

	entry := manifest.Entry{
		ID:      s.ID,
		Seed:    s.Seed,
		Combo:   s.Combo,
		Outcome: s.Outcome(),
	}
	if g, ok := s.Gear(); ok {
		entry.GearTeeth = g.Params.NumTeeth
		entry.GearModule = g.Params.Module
		entry.AppliedSlots = len(g.Slots)
	}

	rec, err := r.Writer.Write(s)
	if err != nil {
		log.Warn("sample not written", zap.String("sample", s.ID), zap.Error(err))
		entry.Outcome = "error"
		r.record(ctx, log, entry)
		return "error", false
	}
	entry.Faces = len(rec.Faces)
	entry.Labels = rec.Seg
	r.record(ctx, log, entry)
	return entry.Outcome, true
}

func (r *Runner) record(ctx context.Context, log *zap.Logger, e manifest.Entry) {
	if r.Manifest == nil {
		return
	}
	if err := r.Manifest.Record(ctx, e); err != nil {
		log.Warn("manifest record failed", zap.String("sample", e.ID), zap.Error(err))
	}
}

// failedID names the manifest row of a sample that never got an id.
func failedID(seed uint64) string {
	return "failed-" + strconv.FormatUint(seed, 10)
}
