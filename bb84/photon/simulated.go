package photon

import (
	"fmt"
	"math/rand"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
)

// NewSimulatedChannel creates a pair of (Sender, Receiver) structs simulating a
// quantum channel. It is expected that each call to Send() will be mirrored by
// a call to Receive(). Expect errors if that is not the case, and for calls to
// Send() to hang if more than bufSize of them are made before Receive().
//
// All randomness consumed by the channel, i.e. measurement collapse and noise,
// is drawn from r.
func NewSimulatedChannel(bufSize int, r *rand.Rand) (*SimulatedSender, *SimulatedReceiver) {
	states := make(chan []State, bufSize)
	ss := &SimulatedSender{states: states}
	sr := &SimulatedReceiver{states: states, rand: r}
	return ss, sr
}

type SimulatedSender struct {
	// Interceptor, if non-nil, is applied to every state before it reaches the
	// receiver.
	Interceptor Interceptor

	states chan<- []State
}

type SimulatedReceiver struct {
	// Noise is the probability that any measured bit is flipped by the channel,
	// independently of eavesdropping. Zero models a noiseless channel.
	Noise float64

	states <-chan []State
	rand   *rand.Rand
}

// Send transmits a batch of states.
func (ss *SimulatedSender) Send(states []State) error {
	batch := make([]State, len(states))
	for i, s := range states {
		if ss.Interceptor != nil {
			s = ss.Interceptor.Intercept(s)
		}
		batch[i] = s
	}
	ss.states <- batch
	return nil
}

// Receive measures the next batch of states, the i-th in basis bases[i], and
// returns the observed bits in transmission order.
func (sr *SimulatedReceiver) Receive(bases bitmap.Dense) (bitmap.Dense, error) {
	batch, ok := <-sr.states
	if !ok {
		return bitmap.Empty(), fmt.Errorf("channel closed")
	}
	if len(batch) != bases.Size() {
		return bitmap.Empty(), fmt.Errorf("send length must match receive basis length: %d != %d", len(batch), bases.Size())
	}
	bits := make([]bool, len(batch))
	for i, s := range batch {
		bits[i] = Measure(s, BasisOf(bases.Get(i)), sr.rand)
		if sr.Noise > 0 && sr.rand.Float64() < sr.Noise {
			bits[i] = !bits[i]
		}
	}
	return bitmap.FromBools(bits), nil
}
