package bb84

import (
	"fmt"
	"math/rand"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"github.com/alan-christopher/bb84sim/bb84/photon"
)

type sender interface {
	Send(states []photon.State) error
}

type receiver interface {
	Receive(bases bitmap.Dense) (bitmap.Dense, error)
}

// An alice represents the first BB84 participant. Her bits and bases are drawn
// once, at construction, and never change.
type alice struct {
	n     int
	bits  bitmap.Dense
	bases bitmap.Dense
}

// A bob represents the second BB84 participant. He commits to his bases before
// anything arrives and records one measurement per qubit, in arrival order.
type bob struct {
	bases        bitmap.Dense
	measurements bitmap.Dense
}

func newAlice(n int, r *rand.Rand) (*alice, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: qubit count must be positive, got %d", ErrInvalidConfiguration, n)
	}
	return &alice{
		n:     n,
		bits:  randomBits(n, r),
		bases: randomBits(n, r),
	}, nil
}

func newBob(n int, r *rand.Rand) *bob {
	return &bob{bases: randomBits(n, r)}
}

// states prepares one qubit per position, in transmission order.
func (a *alice) states() []photon.State {
	r := make([]photon.State, a.n)
	for i := range r {
		r[i] = photon.Encode(a.bits.Get(i), photon.BasisOf(a.bases.Get(i)))
	}
	return r
}

func (a *alice) sendQBits(s sender) error {
	if err := s.Send(a.states()); err != nil {
		return fmt.Errorf("sending qubits: %w", err)
	}
	return nil
}

func (b *bob) receiveQBits(rcv receiver) error {
	bits, err := rcv.Receive(b.bases)
	if err != nil {
		return fmt.Errorf("receiving qubits: %w", err)
	}
	for i := 0; i < bits.Size(); i++ {
		b.record(bits.Get(i))
	}
	if b.measurements.Size() != b.bases.Size() {
		return fmt.Errorf("recorded %d measurements for %d qubits", b.measurements.Size(), b.bases.Size())
	}
	return nil
}

func (b *bob) record(bit bool) {
	b.measurements.AppendBit(bit)
}

// randomBits draws n uniform bits from r. Bits past n in the final byte are
// cleared so that byte-wise operations over the result stay exact.
func randomBits(n int, r *rand.Rand) bitmap.Dense {
	buf := make([]byte, bitmap.BytesFor(n))
	r.Read(buf)
	if tail := n % 8; tail != 0 {
		buf[len(buf)-1] &= 1<<tail - 1
	}
	return bitmap.NewDense(buf, n)
}
