package photon

import (
	"math"
	"math/rand"
	"testing"

	"github.com/alan-christopher/bb84sim/bb84/entropy"
)

func TestEncodeBijection(t *testing.T) {
	tcs := []struct {
		bit   bool
		basis Basis
		eout  State
	}{
		{false, Rectilinear, Zero},
		{true, Rectilinear, One},
		{false, Diagonal, Minus},
		{true, Diagonal, Plus},
	}

	seen := map[State]bool{}
	for _, tc := range tcs {
		out := Encode(tc.bit, tc.basis)
		if out != tc.eout {
			t.Errorf("Encode(%v, %v) == %v, want %v", tc.bit, tc.basis, out, tc.eout)
		}
		if seen[out] {
			t.Errorf("state %v reachable from two (bit, basis) pairs", out)
		}
		seen[out] = true
		if out.Bit() != tc.bit || out.Basis() != tc.basis {
			t.Errorf("%v decodes to (%v, %v), want (%v, %v)", out, out.Bit(), out.Basis(), tc.bit, tc.basis)
		}
	}
}

func TestMeasureRoundTrip(t *testing.T) {
	r := entropy.FromInt64(1).Rand()
	for _, basis := range []Basis{Rectilinear, Diagonal} {
		for _, bit := range []bool{false, true} {
			for i := 0; i < 100; i++ {
				if got := Measure(Encode(bit, basis), basis, r); got != bit {
					t.Fatalf("Measure(Encode(%v, %v), %v) == %v", bit, basis, basis, got)
				}
			}
		}
	}
}

func TestMeasureMismatchIsFair(t *testing.T) {
	const trials = 20000
	r := entropy.FromInt64(2).Rand()
	for _, s := range []State{Zero, One, Minus, Plus} {
		other := BasisOf(!s.Basis().Bit())
		ones := 0
		for i := 0; i < trials; i++ {
			if Measure(s, other, r) {
				ones++
			}
		}
		frac := float64(ones) / trials
		if math.Abs(frac-0.5) > 0.05 {
			t.Errorf("measuring %v in %v gave 1 with frequency %.3f, want ~0.5", s, other, frac)
		}
	}
}

func TestUnknownStatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("measuring an out-of-range state did not panic")
		}
	}()
	Measure(State(7), Rectilinear, rand.New(rand.NewSource(1)))
}

func TestRandomBasisIsBalanced(t *testing.T) {
	r := entropy.FromInt64(3).Rand()
	diag := 0
	for i := 0; i < 10000; i++ {
		if RandomBasis(r) == Diagonal {
			diag++
		}
	}
	if diag < 4500 || diag > 5500 {
		t.Errorf("drew %d diagonal bases out of 10000", diag)
	}
}
