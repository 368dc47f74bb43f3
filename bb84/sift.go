package bb84

import (
	"fmt"
	"math"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"gonum.org/v1/gonum/stat/distuv"
)

// A siftResult holds the positions Alice and Bob keep after comparing bases.
type siftResult struct {
	// mask has bit i set iff Alice and Bob used the same basis for qubit i.
	mask      bitmap.Dense
	alice     bitmap.Dense
	bob       bitmap.Dense
	matched   int
	unmatched int
	errors    int
}

func sift(a *alice, b *bob) siftResult {
	mask := bitmap.XNor(a.bases, b.bases)
	r := siftResult{
		mask:  mask,
		alice: siftBits(a.bits, a.bases, b.bases),
		bob:   siftBits(b.measurements, a.bases, b.bases),
	}
	r.matched = r.alice.Size()
	r.unmatched = a.n - r.matched
	r.errors = bitmap.CountOnes(bitmap.XOr(r.alice, r.bob))
	return r
}

func siftBits(bits, sendBasis, receiveBasis bitmap.Dense) bitmap.Dense {
	return bitmap.Select(bits, bitmap.XNor(sendBasis, receiveBasis))
}

// A QBER is the quantum bit error rate observed over the sifted positions of a
// session. It is undefined when no positions survived sifting, which is
// distinct from a rate of zero.
type QBER struct {
	matched int
	errors  int
}

// Inconclusive reports whether no positions survived sifting.
func (q QBER) Inconclusive() bool {
	return q.matched == 0
}

// Percent returns the error rate in percent, or false if q is inconclusive.
func (q QBER) Percent() (float64, bool) {
	if q.Inconclusive() {
		return 0, false
	}
	return 100 * float64(q.errors) / float64(q.matched), true
}

// Interval returns a Wilson score interval, in percent, around the observed
// error rate at the given two-sided confidence level, e.g. 0.95.
func (q QBER) Interval(confidence float64) (lo, hi float64, ok bool) {
	if q.Inconclusive() || confidence <= 0 || confidence >= 1 {
		return 0, 0, false
	}
	z := distuv.UnitNormal.Quantile(1 - (1-confidence)/2)
	n := float64(q.matched)
	p := float64(q.errors) / n
	denom := 1 + z*z/n
	center := (p + z*z/(2*n)) / denom
	half := z * math.Sqrt(p*(1-p)/n+z*z/(4*n*n)) / denom
	return 100 * math.Max(0, center-half), 100 * math.Min(1, center+half), true
}

func (q QBER) String() string {
	p, ok := q.Percent()
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", p)
}

// An Outcome is the verdict of a session.
type Outcome int

const (
	// SecureProceed means the error rate was acceptable and a key was
	// distilled.
	SecureProceed Outcome = iota
	// HeavyEavesdroppingDetected means the error rate exceeded the threshold.
	HeavyEavesdroppingDetected
	// Inconclusive means no bases matched.
	Inconclusive
	// Uncorrectable means reconciliation failed.
	Uncorrectable
)

func (o Outcome) String() string {
	switch o {
	case SecureProceed:
		return "SecureProceed"
	case HeavyEavesdroppingDetected:
		return "HeavyEavesdroppingDetected"
	case Inconclusive:
		return "Inconclusive"
	case Uncorrectable:
		return "Uncorrectable"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Err returns the sentinel error matching o, or nil for SecureProceed.
func (o Outcome) Err() error {
	switch o {
	case HeavyEavesdroppingDetected:
		return ErrEavesdropperDetected
	case Inconclusive:
		return ErrInconclusive
	case Uncorrectable:
		return ErrUncorrectable
	}
	return nil
}

// Conclusion returns a human readable verdict.
func (o Outcome) Conclusion() string {
	switch o {
	case SecureProceed:
		return "Secure Channel. Proceeding to Privacy Amplification."
	case HeavyEavesdroppingDetected:
		return "Heavy Eavesdropping Detected. Key discarded."
	case Inconclusive:
		return "Inconclusive. No bases matched, key discarded."
	case Uncorrectable:
		return "Error Correction Failed. Key discarded."
	}
	return o.String()
}

// decide applies the security threshold, in percent, to q.
func decide(q QBER, threshold float64) Outcome {
	p, ok := q.Percent()
	if !ok {
		return Inconclusive
	}
	if p > threshold {
		return HeavyEavesdroppingDetected
	}
	return SecureProceed
}
