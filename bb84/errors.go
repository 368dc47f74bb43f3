package bb84

import "errors"

var (
	// ErrInvalidConfiguration is returned before any randomness is drawn when
	// SessionOpts are nonsensical, e.g. zero qubits or a non-positive threshold.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInconclusive reports that sifting kept no positions, so the error rate
	// is undefined rather than zero.
	ErrInconclusive = errors.New("inconclusive: no matched bases")

	// ErrUncorrectable reports that reconciliation could not bring Alice's and
	// Bob's keys into agreement.
	ErrUncorrectable = errors.New("keys could not be reconciled")

	// ErrEavesdropperDetected reports an error rate above the security
	// threshold. The key is discarded; this is the protocol working as
	// intended.
	ErrEavesdropperDetected = errors.New("eavesdropper detected")

	// ErrEntropy reports a failure of the randomness source. Sessions cannot
	// continue without it.
	ErrEntropy = errors.New("entropy source failure")
)
