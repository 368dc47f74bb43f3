// Package bb84 simulates key negotiation via the BB84 protocol: Alice prepares
// qubits in random bases, Bob measures them in bases of his own, and the two
// sift, estimate the error rate, reconcile and privacy-amplify what remains
// into a shared key. An intercept-resend eavesdropper may be placed on the
// quantum channel to study how the error rate exposes her.
package bb84

import (
	"fmt"
	"io"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"github.com/alan-christopher/bb84sim/bb84/entropy"
	"github.com/sirupsen/logrus"
)

var (
	DefaultThreshold         = 20.0
	DefaultCompressionRatio  = 0.5
	DefaultEavesdropFraction = 1.0
	DefaultEpsilon           = 1e-12
	DefaultWinnowIters       = []int{3, 3, 3, 4, 6, 7, 7, 7}
)

// Stats packages together a collection of potentially interesting metrics
// pertaining to the classical side of a BB84 session.
type Stats struct {
	MessagesSent     int
	MessagesReceived int
	BytesRead        int
	BytesSent        int

	// BitsDiscarded counts sifted bits dropped during reconciliation because
	// their values were exposed by public parity announcements.
	BitsDiscarded int
	// BitsLeaked counts bits of information about the reconciled key disclosed
	// publicly, e.g. a verification hash. They are subtracted from the privacy
	// amplification output.
	BitsLeaked int
}

// A Reconciliation is the result of information reconciliation: Alice's and
// Bob's corrected keys, which agree whenever reconciliation succeeded.
type Reconciliation struct {
	Alice bitmap.Dense
	Bob   bitmap.Dense
	Stats Stats
}

// A Reconciler performs "error correction" on a pair of sifted keys. Keys may
// shrink, e.g. when bits exposed by parity checks are discarded. Reconcilers
// that cannot bring the keys into agreement return an error wrapping
// ErrUncorrectable.
type Reconciler interface {
	Reconcile(alice, bob bitmap.Dense) (Reconciliation, error)
}

// A SessionOpts packages together the arguments of a single simulated session.
// Qubits and Threshold have no reasonable defaults and must be set.
type SessionOpts struct {
	// Qubits is the number of qubits Alice transmits. Must be positive.
	Qubits int

	// Eavesdropper places an intercept-resend attacker on the quantum
	// channel.
	Eavesdropper bool

	// EavesdropFraction is the probability that the eavesdropper attacks any
	// given qubit. Defaults to DefaultEavesdropFraction, i.e. every qubit.
	EavesdropFraction float64

	// Noise is the probability the channel flips any measured bit on its own.
	// Zero is a noiseless channel.
	Noise float64

	// Threshold is the error rate, in percent, above which the session
	// concludes an eavesdropper is present and discards the key. Must lie in
	// (0, 100]. DefaultThreshold is the conventional choice, but the right
	// value depends on the reconciler's capability and the security target.
	Threshold float64

	// CompressionRatio is the ratio of final key length to reconciled key
	// length used when sizing the privacy amplification hash. Must lie in
	// (0, 1]. Defaults to DefaultCompressionRatio.
	CompressionRatio float64

	// Reconciler performs error correction. Defaults to Winnow, keyed from the
	// session's entropy.
	Reconciler Reconciler

	// Entropy is the single source of randomness for the session. It may be
	// seeded for experiments and tests; leave nil to seed from the operating
	// system. Concurrent sessions must not share a Stream.
	Entropy *entropy.Stream

	// Logger receives progress logs. Defaults to a logger that discards
	// everything.
	Logger *logrus.Logger
}

func (o SessionOpts) withDefaults() (SessionOpts, error) {
	if o.Qubits <= 0 {
		return o, fmt.Errorf("%w: qubit count must be positive, got %d", ErrInvalidConfiguration, o.Qubits)
	}
	if o.Threshold <= 0 || o.Threshold > 100 {
		return o, fmt.Errorf("%w: threshold must lie in (0, 100], got %v", ErrInvalidConfiguration, o.Threshold)
	}
	if o.Noise < 0 || o.Noise > 1 {
		return o, fmt.Errorf("%w: noise must lie in [0, 1], got %v", ErrInvalidConfiguration, o.Noise)
	}
	if o.EavesdropFraction == 0 {
		o.EavesdropFraction = DefaultEavesdropFraction
	}
	if o.EavesdropFraction < 0 || o.EavesdropFraction > 1 {
		return o, fmt.Errorf("%w: eavesdrop fraction must lie in (0, 1], got %v", ErrInvalidConfiguration, o.EavesdropFraction)
	}
	if o.CompressionRatio == 0 {
		o.CompressionRatio = DefaultCompressionRatio
	}
	if o.CompressionRatio < 0 || o.CompressionRatio > 1 {
		return o, fmt.Errorf("%w: compression ratio must lie in (0, 1], got %v", ErrInvalidConfiguration, o.CompressionRatio)
	}
	if o.Logger == nil {
		o.Logger = logrus.New()
		o.Logger.SetOutput(io.Discard)
	}
	return o, nil
}
