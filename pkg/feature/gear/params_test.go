package gear

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/chazu/featsynth/pkg/bound"
	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/spatial/r3"
)

const tol = 1e-9

func testBound(diameter, depth float64) bound.Bound {
	return bound.Bound{
		Center:   r3.Vec{X: 20, Y: 20, Z: 20},
		Normal:   r3.Vec{Z: 1},
		Diameter: diameter,
		Depth:    depth,
	}
}

func TestNewParams(t *testing.T) {
	tests := []struct {
		teeth              int
		module, pitch      float64
		addendum, dedendum float64
	}{
		{20, 1, 20, 22, 17.5},
		{8, 0.5, 4, 5, 2.75},
		{30, 2, 60, 64, 55},
	}
	for _, tt := range tests {
		p := NewParams(tt.teeth, tt.module, 3)
		if math.Abs(p.PitchDiameter-tt.pitch) > tol ||
			math.Abs(p.AddendumDiameter-tt.addendum) > tol ||
			math.Abs(p.DedendumDiameter-tt.dedendum) > tol {
			t.Errorf("NewParams(%d, %g) = %+v", tt.teeth, tt.module, p)
		}
		if p.FaceWidth != 3 || p.NumTeeth != tt.teeth {
			t.Errorf("NewParams(%d, %g) lost inputs: %+v", tt.teeth, tt.module, p)
		}
	}
}

func TestSlotGeometry(t *testing.T) {
	p := NewParams(12, 1.5, 4)
	for i := 0; i < p.NumTeeth; i++ {
		s := p.Slot(i)
		if s.Index != i {
			t.Errorf("slot %d: Index = %d", i, s.Index)
		}
		if math.Abs(s.Width-math.Pi*p.Module/2) > tol {
			t.Errorf("slot %d: Width = %g", i, s.Width)
		}
		if math.Abs(s.Depth-1.25*p.Module) > tol {
			t.Errorf("slot %d: Depth = %g", i, s.Depth)
		}
		// The chord subtended at the pitch circle equals the slot width.
		if chord := p.PitchDiameter * math.Sin(s.HalfAngle); math.Abs(chord-s.Width) > 1e-9 {
			t.Errorf("slot %d: pitch chord %g != width %g", i, chord, s.Width)
		}
		if want := 2 * math.Pi * float64(i) / 12; math.Abs(s.Angle-want) > tol {
			t.Errorf("slot %d: Angle = %g, want %g", i, s.Angle, want)
		}
		if s.Root != p.DedendumDiameter/2 || s.Tip != p.AddendumDiameter/2 {
			t.Errorf("slot %d: radii %g..%g", i, s.Root, s.Tip)
		}
	}
}

func TestGenerateInvariants(t *testing.T) {
	const minLen, clearance = 2.0, 1.0
	b := testBound(40, 20)
	accepted := 0
	for seed := uint64(0); seed < 300; seed++ {
		r := rand.New(rand.NewPCG(seed, 1))
		p, attempts, err := Generate(r, b, minLen, clearance)
		if err != nil {
			if !errors.Is(err, ErrParameterSpaceExhausted) || attempts != MaxAttempts {
				t.Fatalf("seed %d: err = %v, attempts = %d", seed, err, attempts)
			}
			continue
		}
		accepted++
		if attempts < 1 || attempts > MaxAttempts {
			t.Errorf("seed %d: attempts = %d", seed, attempts)
		}
		if p.NumTeeth < MinTeeth || p.NumTeeth > MaxTeeth {
			t.Errorf("seed %d: teeth = %d", seed, p.NumTeeth)
		}
		if p.Module < MinModule || p.Module > MaxModule {
			t.Errorf("seed %d: module = %g", seed, p.Module)
		}
		if p.AddendumDiameter > b.Diameter-clearance {
			t.Errorf("seed %d: addendum %g exceeds %g", seed, p.AddendumDiameter, b.Diameter-clearance)
		}
		if p.FaceWidth < minLen || p.FaceWidth > b.Depth {
			t.Errorf("seed %d: face width %g outside [%g, %g]", seed, p.FaceWidth, minLen, b.Depth)
		}
		if want := NewParams(p.NumTeeth, p.Module, p.FaceWidth); p != want {
			t.Errorf("seed %d: derived diameters inconsistent: %+v", seed, p)
		}
	}
	if accepted == 0 {
		t.Fatal("no seed produced a gear on a 40mm bound")
	}
}

// topSource makes every draw land on the top of its range.
type topSource struct{}

func (topSource) Uint64() uint64 { return math.MaxUint64 }

func TestGenerateReachesUpperBounds(t *testing.T) {
	b := testBound(100, 20)
	p, attempts, err := Generate(rand.New(topSource{}), b, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if p.NumTeeth != MaxTeeth || p.Module != MaxModule {
		t.Errorf("draw = z%d m%g, want z%d m%g", p.NumTeeth, p.Module, MaxTeeth, MaxModule)
	}
	if p.FaceWidth != b.Depth {
		t.Errorf("face width = %g, want %g", p.FaceWidth, b.Depth)
	}
}

func TestClosedUnit(t *testing.T) {
	if got := closedUnit(rand.New(topSource{})); got != 1 {
		t.Errorf("closedUnit at the top = %v, want 1", got)
	}
	r := rand.New(rand.NewPCG(5, 5))
	for i := 0; i < 1000; i++ {
		if u := closedUnit(r); u < 0 || u > 1 {
			t.Fatalf("closedUnit = %v", u)
		}
	}
}

func TestGenerateExhausted(t *testing.T) {
	// The smallest possible gear has an addendum diameter of 5.
	r := rand.New(rand.NewPCG(3, 3))
	_, attempts, err := Generate(r, testBound(4, 10), 2, 1)
	if !errors.Is(err, ErrParameterSpaceExhausted) {
		t.Fatalf("err = %v, want ErrParameterSpaceExhausted", err)
	}
	if attempts != MaxAttempts {
		t.Errorf("attempts = %d, want %d", attempts, MaxAttempts)
	}
}

func TestGenerateInsufficientDepth(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 1))
	_, attempts, err := Generate(r, testBound(40, 1.5), 2, 1)
	if !errors.Is(err, ErrInsufficientDepth) {
		t.Fatalf("err = %v, want ErrInsufficientDepth", err)
	}
	if attempts != 0 {
		t.Errorf("attempts = %d, want 0", attempts)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	b := testBound(40, 20)
	draw := func() (Params, int, error) {
		return Generate(rand.New(rand.NewPCG(42, 7)), b, 2, 1)
	}
	p1, n1, err1 := draw()
	p2, n2, err2 := draw()
	if diff := cmp.Diff(p1, p2); diff != "" || n1 != n2 || (err1 == nil) != (err2 == nil) {
		t.Errorf("same seed produced different draws (-first +second):\n%s", diff)
	}
}

func TestParamsString(t *testing.T) {
	got := NewParams(20, 1, 5).String()
	if want := "z=20 m=1.000 da=22.000 b=5.000"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
