package photon

import (
	"fmt"
	"math/rand"
)

// An Interceptor sits on the quantum channel and may replace each state in
// transit.
type Interceptor interface {
	Intercept(s State) State
}

// An Eavesdropper mounts an intercept-resend attack: it measures a state in a
// basis of its choosing and forwards a freshly prepared state encoding what it
// saw. Whenever its basis differs from the sender's, the forwarded state no
// longer faithfully carries the sender's bit, which is what makes the attack
// visible in the error rate.
type Eavesdropper struct {
	// Fraction is the probability that any given state is attacked. A Fraction
	// of 1 attacks every state.
	Fraction float64

	rand *rand.Rand
}

// NewEavesdropper returns an Eavesdropper drawing its basis choices from r.
func NewEavesdropper(fraction float64, r *rand.Rand) (*Eavesdropper, error) {
	if fraction < 0 || fraction > 1 {
		return nil, fmt.Errorf("intercept fraction must lie in [0, 1], got %v", fraction)
	}
	if r == nil {
		return nil, fmt.Errorf("must provide rand")
	}
	return &Eavesdropper{Fraction: fraction, rand: r}, nil
}

// Intercept implements the Interceptor interface.
func (e *Eavesdropper) Intercept(s State) State {
	if e.Fraction < 1 && e.rand.Float64() >= e.Fraction {
		return s
	}
	b := RandomBasis(e.rand)
	return Encode(Measure(s, b, e.rand), b)
}
