// Package photon models qubits encoded as linearly-polarized photons: the four
// BB84 states, measurement in one of two bases, and a simulated quantum channel
// that an eavesdropper may tap.
package photon

import (
	"fmt"
	"math/rand"
)

// A Basis is one of the two conjugate measurement bases.
type Basis uint8

const (
	// Rectilinear is the horizontal/vertical basis.
	Rectilinear Basis = iota
	// Diagonal is the ±45° basis.
	Diagonal
)

// BasisOf maps the bit representation used in basis bitmaps onto a Basis: set
// bits denote Diagonal.
func BasisOf(bit bool) Basis {
	if bit {
		return Diagonal
	}
	return Rectilinear
}

// RandomBasis draws a basis uniformly at random.
func RandomBasis(r *rand.Rand) Basis {
	return BasisOf(r.Intn(2) == 1)
}

// Bit returns the bitmap representation of b.
func (b Basis) Bit() bool {
	return b == Diagonal
}

func (b Basis) String() string {
	switch b {
	case Rectilinear:
		return "rectilinear"
	case Diagonal:
		return "diagonal"
	}
	return fmt.Sprintf("Basis(%d)", uint8(b))
}

// A State is one of the four BB84 polarization states.
type State uint8

const (
	// Zero encodes 0 in the rectilinear basis.
	Zero State = iota
	// One encodes 1 in the rectilinear basis.
	One
	// Minus encodes 0 in the diagonal basis.
	Minus
	// Plus encodes 1 in the diagonal basis.
	Plus
)

// Encode returns the unique state carrying bit in basis b.
func Encode(bit bool, b Basis) State {
	switch {
	case b == Rectilinear && !bit:
		return Zero
	case b == Rectilinear && bit:
		return One
	case b == Diagonal && !bit:
		return Minus
	case b == Diagonal && bit:
		return Plus
	}
	panic(fmt.Sprintf("photon: encoding in unknown basis %v", b))
}

// Basis returns the basis s was prepared in.
func (s State) Basis() Basis {
	switch s {
	case Zero, One:
		return Rectilinear
	case Minus, Plus:
		return Diagonal
	}
	panic(fmt.Sprintf("photon: unknown state %d", uint8(s)))
}

// Bit returns the bit s was prepared to carry.
func (s State) Bit() bool {
	switch s {
	case Zero, Minus:
		return false
	case One, Plus:
		return true
	}
	panic(fmt.Sprintf("photon: unknown state %d", uint8(s)))
}

func (s State) String() string {
	switch s {
	case Zero:
		return "|0>"
	case One:
		return "|1>"
	case Minus:
		return "|->"
	case Plus:
		return "|+>"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Measure measures s in basis b. Measuring in the preparation basis recovers
// the prepared bit; measuring in the conjugate basis collapses s to either
// outcome with equal probability, drawn from r.
func Measure(s State, b Basis, r *rand.Rand) bool {
	if s.Basis() == b {
		return s.Bit()
	}
	return r.Intn(2) == 1
}
