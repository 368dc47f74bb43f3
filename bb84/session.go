package bb84

import (
	"errors"
	"fmt"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"github.com/alan-christopher/bb84sim/bb84/entropy"
	"github.com/alan-christopher/bb84sim/bb84/photon"
	"github.com/sirupsen/logrus"
)

// A Result describes the outcome of one session. Key is non-empty only when
// Outcome is SecureProceed; every other outcome discards all key material.
type Result struct {
	Qubits    int
	Matched   int
	Unmatched int
	Errors    int
	QBER      QBER
	Outcome   Outcome
	Key       bitmap.Dense
	Stats     Stats
}

// Err returns the sentinel error for r's outcome, or nil if a key was
// distilled.
func (r Result) Err() error {
	return r.Outcome.Err()
}

// RunSession runs one BB84 session end to end: Alice prepares and sends
// opts.Qubits qubits, an eavesdropper optionally intercepts them, Bob measures,
// the pair sift and estimate the error rate, and, if the rate is acceptable,
// reconcile and privacy-amplify what remains into a key.
//
// Detecting an eavesdropper, sifting nothing, or failing to reconcile are
// reported through Result.Outcome. The returned error is reserved for invalid
// options and failures of the randomness source.
func RunSession(opts SessionOpts) (Result, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return Result{}, err
	}
	stream := opts.Entropy
	if stream == nil {
		if stream, err = entropy.NewRandom(); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrEntropy, err)
		}
	}
	r := stream.Rand()

	a, err := newAlice(opts.Qubits, r)
	if err != nil {
		return Result{}, err
	}
	b := newBob(opts.Qubits, r)
	return runSession(opts, stream, a, b)
}

func runSession(opts SessionOpts, stream *entropy.Stream, a *alice, b *bob) (Result, error) {
	log := opts.Logger.WithFields(logrus.Fields{
		"qubits":       a.n,
		"eavesdropper": opts.Eavesdropper,
	})
	r := stream.Rand()

	sender, receiver := photon.NewSimulatedChannel(1, r)
	receiver.Noise = opts.Noise
	if opts.Eavesdropper {
		eve, err := photon.NewEavesdropper(opts.EavesdropFraction, r)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
		}
		sender.Interceptor = eve
	}
	if err := a.sendQBits(sender); err != nil {
		return Result{}, err
	}
	if err := b.receiveQBits(receiver); err != nil {
		return Result{}, err
	}

	sifted := sift(a, b)
	res := Result{
		Qubits:    a.n,
		Matched:   sifted.matched,
		Unmatched: sifted.unmatched,
		Errors:    sifted.errors,
		QBER:      QBER{matched: sifted.matched, errors: sifted.errors},
	}
	res.Outcome = decide(res.QBER, opts.Threshold)
	log = log.WithFields(logrus.Fields{
		"matched": res.Matched,
		"errors":  res.Errors,
		"qber":    res.QBER.String(),
	})
	switch res.Outcome {
	case Inconclusive:
		log.Warn("No bases matched, discarding key")
		return res, nil
	case HeavyEavesdroppingDetected:
		log.WithField("threshold", opts.Threshold).Warn("Error rate above threshold, discarding key")
		return res, nil
	}
	log.Debug("Sifting complete")

	reconciler := opts.Reconciler
	if reconciler == nil {
		var err error
		if reconciler, err = defaultReconciler(stream); err != nil {
			return Result{}, err
		}
	}
	rec, err := reconciler.Reconcile(sifted.alice.Clone(), sifted.bob.Clone())
	if errors.Is(err, ErrUncorrectable) || (err == nil && !bitmap.Equal(rec.Alice, rec.Bob)) {
		log.WithError(err).Warn("Reconciliation failed, discarding key")
		res.Outcome = Uncorrectable
		res.Stats = rec.Stats
		return res, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("reconciling: %w", err)
	}
	res.Stats = rec.Stats
	log.WithFields(logrus.Fields{
		"reconciled": rec.Alice.Size(),
		"discarded":  rec.Stats.BitsDiscarded,
	}).Debug("Reconciliation complete")

	m := amplifiedSize(rec.Alice.Size(), rec.Stats.BitsLeaked, opts.CompressionRatio)
	if m == 0 {
		log.WithFields(logrus.Fields{
			"reconciled": rec.Alice.Size(),
			"leaked":     rec.Stats.BitsLeaked,
		}).Warn("Reconciled key too short to cover leaked bits, no key distilled")
	}
	key, err := amplify(rec.Alice, m, stream)
	if err != nil {
		return Result{}, fmt.Errorf("amplifying privacy: %w", err)
	}
	res.Key = key
	log.WithField("keyBits", key.Size()).Info("Key distilled")
	return res, nil
}

// defaultReconciler keys a Winnow reconciler from a child of the session
// stream.
func defaultReconciler(stream *entropy.Stream) (Reconciler, error) {
	child, err := stream.Derive("winnow")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropy, err)
	}
	secret := make([]byte, entropy.SeedSize)
	if _, err := child.Read(secret); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropy, err)
	}
	return NewWinnowReconciler(WinnowOpts{
		SyncSeed: child.Int63(),
		Secret:   secret,
	})
}
