package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/featsynth/pkg/config"
	"github.com/chazu/featsynth/pkg/directive"
	"github.com/chazu/featsynth/pkg/feature"
	"github.com/chazu/featsynth/pkg/feature/boss"
	"github.com/chazu/featsynth/pkg/feature/gear"
	"github.com/chazu/featsynth/pkg/kernel"
	"github.com/chazu/featsynth/pkg/kernel/kerneltest"
	"github.com/chazu/featsynth/pkg/label"
	"github.com/chazu/featsynth/pkg/manifest"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"go.uber.org/goleak"
	"gonum.org/v1/gonum/spatial/r3"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

var cube = &r3.Vec{X: 40, Y: 40, Z: 40}

func testGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := New(config.DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	g.NewKernel = func() kernel.Kernel { return kerneltest.New() }
	return g
}

func readRecord(t *testing.T, path string) Record {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatal(err)
	}
	return rec
}

// ---------------------------------------------------------------------------
// Catalog and draws
// ---------------------------------------------------------------------------

func TestNewCatalog(t *testing.T) {
	c, err := NewCatalog(config.DefaultFeatureNames)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{boss.Name, gear.Name}, c.Buildable()); diff != "" {
		t.Errorf("Buildable mismatch (-want +got):\n%s", diff)
	}

	c, err = NewCatalog([]string{"spur-gear", "stock"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{gear.Name}, c.Buildable()); diff != "" {
		t.Errorf("Buildable mismatch (-want +got):\n%s", diff)
	}

	if _, err := NewCatalog([]string{"stock", "stock"}); err == nil {
		t.Error("duplicate names should fail")
	}
}

func TestDrawStock(t *testing.T) {
	r := Rand(3)
	s := config.Stock{Min: 10, Max: 50}
	for i := 0; i < 200; i++ {
		d := DrawStock(r, s)
		for _, v := range []float64{d.X, d.Y, d.Z} {
			if v < s.Min || v > s.Max {
				t.Fatalf("draw %d: %v outside [%g, %g]", i, d, s.Min, s.Max)
			}
		}
	}
	if got := DrawStock(r, config.Stock{Min: 7, Max: 7}); got != (r3.Vec{X: 7, Y: 7, Z: 7}) {
		t.Errorf("fixed range drew %v", got)
	}
}

func TestDrawCombo(t *testing.T) {
	buildable := []string{"a", "b", "c"}
	tests := []struct {
		size int
		want int
	}{
		{1, 1},
		{2, 2},
		{3, 3},
		{5, 3},
	}
	for _, tt := range tests {
		got := DrawCombo(Rand(uint64(tt.size)), buildable, tt.size)
		if len(got) != tt.want {
			t.Errorf("size %d: got %v", tt.size, got)
		}
		seen := make(map[string]bool)
		for _, n := range got {
			if seen[n] {
				t.Errorf("size %d: repeated %q in %v", tt.size, n, got)
			}
			seen[n] = true
		}
	}
	if got := DrawCombo(Rand(1), nil, 2); len(got) != 0 {
		t.Errorf("empty buildable drew %v", got)
	}
}

// ---------------------------------------------------------------------------
// Generate
// ---------------------------------------------------------------------------

func TestGenerate(t *testing.T) {
	g := testGenerator(t)
	gearIndex, _ := g.Catalog.Index(gear.Name)

	s, err := g.Generate(11, []string{"spur-gear"}, cube)
	if err != nil {
		t.Fatal(err)
	}
	if s.ID == "" || s.Seed != 11 || s.Stock != *cube {
		t.Errorf("sample header = %q %d %v", s.ID, s.Seed, s.Stock)
	}
	if len(s.Outcomes) != 1 || s.Outcomes[0].Feature != gear.Name {
		t.Fatalf("Outcomes = %+v, want one gear outcome", s.Outcomes)
	}
	if err := label.Verify(s.Kernel, s.Body, s.Labels); err != nil {
		t.Fatal(err)
	}

	counts := s.Labels.Counts()
	if counts[g.StockLabel()] != 6 {
		t.Errorf("stock faces = %d, want 6", counts[g.StockLabel()])
	}
	applied := s.Outcomes[0].Applied
	if applied != (counts[gearIndex] > 0) {
		t.Errorf("applied = %v but gear faces = %d", applied, counts[gearIndex])
	}
	if _, ok := s.Gear(); ok != applied {
		t.Errorf("Gear() ok = %v, applied = %v", ok, applied)
	}
	if applied && s.Outcome() != "applied" {
		t.Errorf("Outcome = %q", s.Outcome())
	}
}

func TestGenerateDeterministic(t *testing.T) {
	g := testGenerator(t)
	a, err := g.Generate(5, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := g.Generate(5, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != b.ID {
		t.Errorf("same seed produced ids %s and %s", a.ID, b.ID)
	}
	if a.Stock != b.Stock {
		t.Errorf("stock differs: %v vs %v", a.Stock, b.Stock)
	}
	if diff := cmp.Diff(a.Combo, b.Combo); diff != "" {
		t.Errorf("combo differs (-a +b):\n%s", diff)
	}
	if diff := cmp.Diff(a.Labels.Counts(), b.Labels.Counts()); diff != "" {
		t.Errorf("label counts differ (-a +b):\n%s", diff)
	}
}

func TestSampleID(t *testing.T) {
	base := SampleID(5, []string{"spur_gear"}, *cube)
	if _, err := uuid.Parse(base); err != nil {
		t.Fatalf("id %q is not a UUID: %v", base, err)
	}
	tests := []struct {
		name  string
		seed  uint64
		combo []string
		stock r3.Vec
		same  bool
	}{
		{"identical", 5, []string{"spur_gear"}, *cube, true},
		{"seed", 6, []string{"spur_gear"}, *cube, false},
		{"combo", 5, []string{"boss"}, *cube, false},
		{"combo order", 5, []string{"boss", "spur_gear"}, *cube, false},
		{"stock", 5, []string{"spur_gear"}, r3.Vec{X: 40, Y: 40, Z: 20}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SampleID(tt.seed, tt.combo, tt.stock); (got == base) != tt.same {
				t.Errorf("SampleID = %s, base %s, want same=%v", got, base, tt.same)
			}
		})
	}
}

func TestGenerateIDsDifferAcrossSeeds(t *testing.T) {
	g := testGenerator(t)
	seen := map[string]uint64{}
	for seed := uint64(0); seed < 20; seed++ {
		s, err := g.Generate(seed, []string{"boss"}, cube)
		if err != nil {
			t.Fatal(err)
		}
		if prev, ok := seen[s.ID]; ok {
			t.Fatalf("seeds %d and %d share id %s", prev, seed, s.ID)
		}
		seen[s.ID] = seed
		if s.ID != SampleID(seed, []string{"boss"}, *cube) {
			t.Errorf("seed %d: id %s does not match SampleID", seed, s.ID)
		}
	}
}

func TestGenerateDrawsCombo(t *testing.T) {
	g := testGenerator(t)
	g.Config.Dataset.ComboSize = 2
	s, err := g.Generate(2, nil, cube)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Combo) != 2 || len(s.Outcomes) != 2 {
		t.Errorf("Combo = %v, Outcomes = %d", s.Combo, len(s.Outcomes))
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		combo []string
		stock *r3.Vec
		want  error
	}{
		{"unknown feature", nil, []string{"nope"}, cube, feature.ErrUnknownFeature},
		{"no constructor", nil, []string{"rib"}, cube, feature.ErrNoConstructor},
		{"nothing buildable", []string{"rib", "stock"}, nil, cube, ErrEmptyCombo},
		{"degenerate stock", nil, []string{"boss"}, &r3.Vec{X: 0, Y: 10, Z: 10}, kernel.ErrDegenerate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := testGenerator(t)
			if tt.names != nil {
				c, err := NewCatalog(tt.names)
				if err != nil {
					t.Fatal(err)
				}
				g.Catalog = c
			}
			_, err := g.Generate(1, tt.combo, tt.stock)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		name string
		o    feature.Outcome
		want string
	}{
		{"boss applied", feature.Outcome{Feature: boss.Name, Applied: true}, "applied"},
		{"boss no bound", feature.Outcome{Feature: boss.Name, Err: boss.ErrNoBound}, "no-bound"},
		{"boss shallow", feature.Outcome{Feature: boss.Name, Err: boss.ErrInsufficientDepth}, "insufficient-depth"},
		{"silent failure", feature.Outcome{Feature: boss.Name}, "not-applied"},
		{"gear detail", feature.Outcome{Feature: gear.Name, Detail: gear.Result{Err: gear.ErrParameterSpaceExhausted}}, "parameter-space-exhausted"},
		{"other error", feature.Outcome{Feature: boss.Name, Err: errors.New("x")}, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reason(tt.o); got != tt.want {
				t.Errorf("Reason = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSampleOutcome(t *testing.T) {
	s := &Sample{Outcomes: []feature.Outcome{
		{Feature: boss.Name, Applied: true},
		{Feature: gear.Name, Detail: gear.Result{Err: gear.ErrNoBound}},
		{Feature: boss.Name, Err: boss.ErrNoBound},
	}}
	if got := s.Outcome(); got != "no-bound" {
		t.Errorf("Outcome = %q", got)
	}
	if got := (&Sample{}).Outcome(); got != "applied" {
		t.Errorf("empty Outcome = %q", got)
	}
}

// ---------------------------------------------------------------------------
// Writer
// ---------------------------------------------------------------------------

func TestWriterWrite(t *testing.T) {
	g := testGenerator(t)
	s, err := g.Generate(4, []string{"boss"}, cube)
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(t.TempDir(), "out")
	w := &Writer{Dir: dir, Names: g.Catalog.Names(), Meshes: true}
	rec, err := w.Write(s)
	if err != nil {
		t.Fatal(err)
	}

	got := readRecord(t, filepath.Join(dir, s.ID+".json"))
	if got.Name != s.ID || got.Seed != 4 {
		t.Errorf("record header = %q %d", got.Name, got.Seed)
	}
	if len(got.Seg) != len(s.Labels) || len(got.Faces) != len(s.Labels) {
		t.Errorf("seg %d faces %d, want %d", len(got.Seg), len(got.Faces), len(s.Labels))
	}
	if len(got.Sequence) != len(got.Faces) {
		t.Fatalf("sequence has %d entries, want %d", len(got.Sequence), len(got.Faces))
	}
	for i, f := range got.Faces {
		if want := s.Labels[f]; got.Seg[fmt.Sprint(i)] != want || got.Sequence[i] != want {
			t.Errorf("face %d: seg %d sequence %d, want %d", i, got.Seg[fmt.Sprint(i)], got.Sequence[i], want)
		}
	}
	if len(got.Outcomes) != 1 || got.Outcomes[0].Feature != boss.Name {
		t.Errorf("Outcomes = %+v", got.Outcomes)
	}
	if diff := cmp.Diff(rec.Seg, got.Seg); diff != "" {
		t.Errorf("returned record differs from file (-returned +file):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(dir, s.ID+".stl")); !os.IsNotExist(err) {
		t.Errorf("stl written for a kernel without export: %v", err)
	}
}

func TestWriterRejectsUnlabeledFace(t *testing.T) {
	g := testGenerator(t)
	s, err := g.Generate(4, []string{"boss"}, cube)
	if err != nil {
		t.Fatal(err)
	}
	s.Labels = label.Map{}
	if _, err := (&Writer{Dir: t.TempDir()}).Write(s); err == nil {
		t.Error("expected error for unlabeled faces")
	}
}

// ---------------------------------------------------------------------------
// Batch
// ---------------------------------------------------------------------------

func TestWithPlan(t *testing.T) {
	seed := uint64(70)
	base := Batch{Samples: 10, Seed: 1, Workers: 2, Combos: [][]string{{"boss"}}}
	got := base.WithPlan(&directive.Plan{
		Stock:  &directive.Dims{X: 1, Y: 2, Z: 3},
		Seed:   &seed,
		Combos: [][]string{{"spur_gear"}, {"boss", "spur_gear"}},
	})
	want := Batch{
		Samples: 2,
		Seed:    70,
		Workers: 2,
		Combos:  [][]string{{"spur_gear"}, {"boss", "spur_gear"}},
		Stock:   &r3.Vec{X: 1, Y: 2, Z: 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("WithPlan mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(base, base.WithPlan(nil)); diff != "" {
		t.Errorf("nil plan changed the batch:\n%s", diff)
	}
	if got := base.WithPlan(&directive.Plan{}); got.Samples != 10 {
		t.Errorf("plan without combos changed Samples to %d", got.Samples)
	}
}

func TestRunnerRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	g := testGenerator(t)
	dir := t.TempDir()
	r := &Runner{Generator: g, Writer: &Writer{Dir: dir, Names: g.Catalog.Names()}}
	sum, err := r.Run(context.Background(), Batch{
		Samples: 7,
		Seed:    100,
		Workers: 3,
		Combos:  [][]string{{"spur_gear"}, {"boss"}},
		Stock:   cube,
	})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Samples != 7 || sum.Written != 7 || sum.Failed != 0 {
		t.Errorf("Summary = %+v", sum)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 7 {
		t.Errorf("wrote %d records, want 7", len(files))
	}
}

func TestRunnerRecordsFailures(t *testing.T) {
	g := testGenerator(t)
	store, err := manifest.Open(filepath.Join(t.TempDir(), "manifest.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	r := &Runner{Generator: g, Writer: &Writer{Dir: t.TempDir()}, Manifest: store}
	sum, err := r.Run(context.Background(), Batch{
		Samples: 4,
		Seed:    10,
		Workers: 2,
		Combos:  [][]string{{"boss"}, {"nope"}},
		Stock:   cube,
	})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Samples != 4 || sum.Written != 2 || sum.Failed != 2 || sum.Reasons["error"] != 2 {
		t.Errorf("Summary = %+v", sum)
	}

	for _, seed := range []string{"11", "13"} {
		e, err := store.Get(context.Background(), "failed-"+seed)
		if err != nil {
			t.Fatalf("failed sample %s not recorded: %v", seed, err)
		}
		if e.Outcome != "error" {
			t.Errorf("outcome = %q", e.Outcome)
		}
	}
	st, err := store.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Samples != 4 {
		t.Errorf("manifest holds %d samples, want 4", st.Samples)
	}
}

func TestRunnerCanceled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := testGenerator(t)
	r := &Runner{Generator: g, Writer: &Writer{Dir: t.TempDir()}}
	sum, err := r.Run(ctx, Batch{Samples: 5, Workers: 2, Stock: cube})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if sum.Samples != 0 {
		t.Errorf("canceled run generated %d samples", sum.Samples)
	}
}

// ---------------------------------------------------------------------------
// sdfx end to end
// ---------------------------------------------------------------------------

func TestRunnerSdfx(t *testing.T) {
	if testing.Short() {
		t.Skip("sdfx sampling is slow")
	}
	cfg := config.DefaultConfig()
	cfg.Kernel = config.Kernel{GridCells: 24, CapSamples: 8, SideSamples: 3, ArcSamples: 96, MeshCells: 40}
	g, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	r := &Runner{Generator: g, Writer: &Writer{Dir: dir, Names: g.Catalog.Names(), Meshes: true}}
	sum, err := r.Run(context.Background(), Batch{
		Samples: 1,
		Seed:    3,
		Workers: 1,
		Combos:  [][]string{{"spur_gear"}},
		Stock:   &r3.Vec{X: 30, Y: 30, Z: 8},
	})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Written != 1 {
		t.Fatalf("Summary = %+v", sum)
	}
	stls, _ := filepath.Glob(filepath.Join(dir, "*.stl"))
	if len(stls) != 1 {
		t.Errorf("wrote %d stl files, want 1", len(stls))
	}
}
