package bb84

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"
	"math/rand"
	"net"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"github.com/alan-christopher/bb84sim/bb84/entropy"
)

// verifyBits is the length of the hash Alice announces once winnowing is done,
// so that Bob can confirm both keys agree.
const verifyBits = 64

// A WinnowOpts packages together the parameters necessary for the Winnow error
// correction scheme (see https://arxiv.org/abs/quant-ph/0203096).
type WinnowOpts struct {
	// Iters specifies the sequence of hamming bit counts to use during
	// winnowing. E.g.  a sequence {3,3,4} performs two rounds of winnowing with
	// 8-bit code blocks, followed by one with 16-bit code blocks. Each entry
	// must be at least 3. Defaults to DefaultWinnowIters.
	Iters []int

	// SyncSeed seeds the *synchronized* randomness shared by Alice and Bob. It
	// is only used to de-correlate error positions and pick the verification
	// hash, and may be public.
	SyncSeed int64

	// Secret seeds the bootstrap secret Alice and Bob share for authenticating
	// classical messages. Must be non-empty.
	Secret []byte

	// EpsilonAuth specifies the probability that we are willing to accept that
	// Eve can forge a message. Each classical message exchanged spends
	// log_2(1/EpsilonAuth) bits of Secret, rounded up to the nearest byte.
	//
	// Defaults to DefaultEpsilon.
	EpsilonAuth float64
}

// NewWinnowReconciler returns a Reconciler running Winnow between two
// in-process halves that talk only through an authenticated classical channel.
func NewWinnowReconciler(opts WinnowOpts) (Reconciler, error) {
	if len(opts.Secret) == 0 {
		return nil, fmt.Errorf("%w: must provide Secret", ErrInvalidConfiguration)
	}
	if opts.Iters == nil {
		opts.Iters = DefaultWinnowIters
	}
	for _, h := range opts.Iters {
		if h < 3 || h > 16 {
			return nil, fmt.Errorf("%w: winnow iteration of %d hamming bits, want [3, 16]", ErrInvalidConfiguration, h)
		}
	}
	if opts.EpsilonAuth == 0 {
		opts.EpsilonAuth = DefaultEpsilon
	}
	if opts.EpsilonAuth < 0 || opts.EpsilonAuth >= 1 {
		return nil, fmt.Errorf("%w: EpsilonAuth must lie in (0, 1), got %v", ErrInvalidConfiguration, opts.EpsilonAuth)
	}
	return &winnowReconciler{opts: opts}, nil
}

type winnowReconciler struct {
	opts WinnowOpts
}

type winnowResult struct {
	key   bitmap.Dense
	stats Stats
	err   error
}

// Reconcile implements the Reconciler interface. Alice's and Bob's halves run
// concurrently over an in-memory pipe; whichever fails first closes its end so
// that the other does not block.
func (wr *winnowReconciler) Reconcile(aKey, bKey bitmap.Dense) (Reconciliation, error) {
	if aKey.Size() != bKey.Size() {
		return Reconciliation{}, fmt.Errorf("%w: reconciling keys of different lengths: %d != %d",
			ErrUncorrectable, aKey.Size(), bKey.Size())
	}
	l, r := net.Pipe()
	aw, err := wr.newWinnower(l, aKey.Size(), true)
	if err != nil {
		return Reconciliation{}, err
	}
	bw, err := wr.newWinnower(r, bKey.Size(), false)
	if err != nil {
		return Reconciliation{}, err
	}

	aResCh := make(chan winnowResult, 1)
	bResCh := make(chan winnowResult, 1)
	run := func(w winnower, x bitmap.Dense, conn net.Conn, ch chan<- winnowResult) {
		var res winnowResult
		res.key, res.err = w.Reconcile(x.Clone(), &res.stats)
		conn.Close()
		ch <- res
	}
	go run(aw, aKey, l, aResCh)
	go run(bw, bKey, r, bResCh)
	aRes, bRes := <-aResCh, <-bResCh

	switch {
	case errors.Is(aRes.err, ErrUncorrectable):
		return Reconciliation{}, aRes.err
	case errors.Is(bRes.err, ErrUncorrectable):
		return Reconciliation{}, bRes.err
	case aRes.err != nil:
		return Reconciliation{}, fmt.Errorf("alice: %w", aRes.err)
	case bRes.err != nil:
		return Reconciliation{}, fmt.Errorf("bob: %w", bRes.err)
	}
	stats := aRes.stats
	stats.BitsDiscarded = aKey.Size() - aRes.key.Size()
	stats.BitsLeaked = verifyBits
	return Reconciliation{Alice: aRes.key, Bob: bRes.key, Stats: stats}, nil
}

func (wr *winnowReconciler) newWinnower(conn io.ReadWriter, keyBits int, isAlice bool) (winnower, error) {
	secret, err := entropy.New(wr.opts.Secret)
	if err != nil {
		return winnower{}, fmt.Errorf("%w: %v", ErrEntropy, err)
	}
	macBits := 8 * bitmap.BytesFor(int(math.Ceil(math.Log2(1/wr.opts.EpsilonAuth))))
	// Every frame is hashed by a macBits x (8*frameBytes) toeplitz matrix. No
	// winnow frame exceeds keyBits bytes.
	diags := make([]byte, 8*bitmap.BytesFor(keyBits)+macBits/8+64)
	if _, err := io.ReadFull(secret, diags); err != nil {
		return winnower{}, fmt.Errorf("%w: %v", ErrEntropy, err)
	}
	return winnower{
		channel: &protoFramer{
			rw:     conn,
			secret: secret,
			t:      toeplitz{diags: bitmap.NewDense(diags, -1), m: macBits},
		},
		rand:    rand.New(rand.NewSource(wr.opts.SyncSeed)),
		iters:   wr.opts.Iters,
		isAlice: isAlice,
	}, nil
}

// A winnower is one half of the Winnow algorithm, as described in
// https://arxiv.org/abs/quant-ph/0203096.
type winnower struct {
	channel *protoFramer
	rand    *rand.Rand

	// TODO: infer the proper sequence of winnows according to an Epsilon
	//   parameter and the initial error rate estimate.
	iters   []int
	isAlice bool
}

// Reconcile winnows x once per configured iteration, then verifies agreement
// with the other half.
func (w winnower) Reconcile(x bitmap.Dense, s *Stats) (bitmap.Dense, error) {
	var (
		xHat bitmap.Dense = x
		err  error
	)
	for _, hBits := range w.iters {
		xHat, err = w.winnow(xHat, hBits, s)
		if err != nil {
			return bitmap.Empty(), err
		}
	}
	if err := w.verify(xHat, s); err != nil {
		return bitmap.Empty(), err
	}
	return xHat, nil
}

func (w winnower) winnow(x bitmap.Dense, hBits int, s *Stats) (bitmap.Dense, error) {
	x.Shuffle(w.rand)
	syndromes, err := w.getSyndromes(x, hBits)
	if err != nil {
		return bitmap.Empty(), err
	}
	todo, err := w.exchangeTotalParity(syndromes, hBits, s)
	if err != nil {
		return bitmap.Empty(), err
	}
	synSums, err := w.exchangeFullSyndromes(syndromes, todo, hBits, s)
	if err != nil {
		return bitmap.Empty(), err
	}
	if err := w.applySyndromes(&x, synSums, todo, hBits); err != nil {
		return bitmap.Empty(), err
	}
	x = w.maintainPrivacy(x, todo, hBits)

	return x, nil
}

// verify has Alice announce a random toeplitz hash of her key, which Bob
// compares against his own, then reports the verdict back.
func (w winnower) verify(x bitmap.Dense, s *Stats) error {
	var hash bitmap.Dense
	if x.Size() > 0 {
		t, err := newToeplitz(verifyBits, x.Size(), w.rand)
		if err != nil {
			return err
		}
		if hash, err = t.Mul(x); err != nil {
			return err
		}
	}
	verdict := &verdictAnnouncement{}
	if w.isAlice {
		if err := w.channel.Write(&hashAnnouncement{hash: hash}, s); err != nil {
			return fmt.Errorf("announcing verification hash: %w", err)
		}
		if err := w.channel.Read(verdict, s); err != nil {
			return fmt.Errorf("receiving verdict: %w", err)
		}
	} else {
		ha := &hashAnnouncement{}
		if err := w.channel.Read(ha, s); err != nil {
			return fmt.Errorf("receiving verification hash: %w", err)
		}
		verdict.agreed = bitmap.Equal(ha.hash, hash)
		if err := w.channel.Write(verdict, s); err != nil {
			return fmt.Errorf("announcing verdict: %w", err)
		}
	}
	if !verdict.agreed {
		return fmt.Errorf("%w: verification hash mismatch after %d winnow rounds", ErrUncorrectable, len(w.iters))
	}
	return nil
}

func (w winnower) exchangeTotalParity(syndromes []bitmap.Dense, hBits int, s *Stats) (bitmap.Dense, error) {
	tp := bitmap.Empty()
	for _, syn := range syndromes {
		tp.AppendBit(syn.Get(hBits))
	}
	other := &parityAnnouncement{}
	// TODO: alice should be able to provide her total parity information in her
	//   full syndromes announcement, which reduces the number of messages she
	//   needs to send considerably.
	if w.isAlice {
		if err := w.channel.Write(&parityAnnouncement{parities: tp}, s); err != nil {
			return bitmap.Empty(), fmt.Errorf("announcing parities: %w", err)
		}
		if err := w.channel.Read(other, s); err != nil {
			return bitmap.Empty(), fmt.Errorf("receiving parities: %w", err)
		}
	} else {
		if err := w.channel.Read(other, s); err != nil {
			return bitmap.Empty(), fmt.Errorf("receiving parities: %w", err)
		}
		if err := w.channel.Write(&parityAnnouncement{parities: tp}, s); err != nil {
			return bitmap.Empty(), fmt.Errorf("announcing parities: %w", err)
		}
	}
	otherTP := other.parities
	if tp.Size() != otherTP.Size() {
		return bitmap.Empty(), fmt.Errorf(
			"reconciling bitstrings of different block counts: %d != %d", tp.Size(), otherTP.Size())
	}

	return bitmap.XOr(tp, otherTP), nil
}

func (w winnower) exchangeFullSyndromes(
	syndromes []bitmap.Dense, todo bitmap.Dense, hBits int, s *Stats) ([]bitmap.Dense, error) {
	var filteredSyn []bitmap.Dense
	for i, syn := range syndromes {
		if todo.Get(i) {
			filteredSyn = append(filteredSyn, syn)
		}
	}
	// Alice announces, Bob fixes.
	if w.isAlice {
		return nil, w.channel.Write(&syndromeAnnouncement{syndromes: filteredSyn}, s)
	}
	sa := &syndromeAnnouncement{}
	if err := w.channel.Read(sa, s); err != nil {
		return nil, err
	}
	if len(sa.syndromes) != len(filteredSyn) {
		return nil, fmt.Errorf(
			"reconciling syndromes of different block counts: %d != %d", len(filteredSyn), len(sa.syndromes))
	}
	var r []bitmap.Dense
	for i, syn := range filteredSyn {
		r = append(r, bitmap.XOr(syn, sa.syndromes[i]))
	}

	return r, nil
}

func (w winnower) applySyndromes(x *bitmap.Dense, synSums []bitmap.Dense, todo bitmap.Dense, hBits int) error {
	if w.isAlice {
		// Alice announces, Bob fixes.
		return nil
	}
	n := 1 << hBits
	for i, k := 0, -1; i < todo.Size(); i++ {
		if !todo.Get(i) {
			continue
		}
		k++
		if k >= len(synSums) {
			return fmt.Errorf("%d blocks to fix but only %d syndromes", k+1, len(synSums))
		}
		syn := synSums[k]
		pos := 0
		for j := 0; j < hBits; j++ {
			if syn.Get(j) {
				pos |= 1 << j
			}
		}
		pos-- // cardinal/ordinal correction
		if pos < 0 {
			pos = n - 1 // total parity flip
		}
		// Positions in the zero padding of a trailing partial block carry no
		// data.
		if idx := i*n + pos; idx < x.Size() {
			x.Flip(idx)
		}
	}
	return nil
}

// maintainPrivacy discards one bit per announced parity: the total parity
// position of every block, plus each hamming parity position of the blocks
// that exchanged full syndromes. A trailing partial block still announced
// parities over its zero padding, so every discard that would land in the
// padding takes a real bit from the end of that block instead.
func (w winnower) maintainPrivacy(x bitmap.Dense, todo bitmap.Dense, hBits int) bitmap.Dense {
	keep := bitmap.Empty()
	n := 1 << hBits
	for i := 0; i < todo.Size(); i++ {
		size := min(n, x.Size()-i*n)
		if size <= 0 {
			break
		}
		block := make([]bool, size)
		for j := range block {
			block[j] = true
		}
		owed := 0
		for j := 0; j < n; j++ {
			exposed := j == n-1
			if todo.Get(i) {
				exposed = bits.OnesCount(uint(j+1)) == 1
			}
			switch {
			case !exposed:
			case j < size:
				block[j] = false
			default:
				owed++
			}
		}
		for j := size - 1; j >= 0 && owed > 0; j-- {
			if block[j] {
				block[j] = false
				owed--
			}
		}
		keep.Append(bitmap.FromBools(block))
	}
	return bitmap.Select(x, keep)
}

func (w winnower) getSyndromes(x bitmap.Dense, hBits int) ([]bitmap.Dense, error) {
	var r []bitmap.Dense
	bSize := 1 << hBits
	for i := 0; i < x.Size(); i += bSize {
		block, err := bitmap.Slice(x, i, min(i+bSize, x.Size()))
		if err != nil {
			return nil, err
		}
		if i+bSize > x.Size() {
			padded := bitmap.Empty()
			for j := 0; j < bSize; j++ {
				padded.AppendBit(j < block.Size() && block.Get(j))
			}
			block = padded
		}
		syndrome, err := w.secded(block, hBits)
		if err != nil {
			return nil, err
		}
		r = append(r, syndrome)
	}
	return r, nil
}

func (w winnower) secded(block bitmap.Dense, hBits int) (bitmap.Dense, error) {
	if block.Size() != 1<<hBits {
		return bitmap.Empty(), fmt.Errorf(
			"hamming SECDED with %d parity bits needs block of %d, got %d", hBits, 1<<hBits, block.Size())
	}
	r := bitmap.Empty()

	// The p-th hamming parity bit checks the parity of bits in strides of 2^p. E.g.
	// the 0th bit checks positions {0, 2, 4, ...}, the 1st checks
	// {1,2, 5,6, ...}, the 2nd {3,4,5,6, 11,12,13,14, ...}.
	for p := 0; p < hBits; p++ {
		stride := 1 << p
		parity := false
		for i := stride - 1; i < block.Size(); i += 2 * stride {
			for j := i; j < i+stride && j < block.Size(); j++ {
				parity = (block.Get(j) != parity)
			}
		}
		r.AppendBit(parity)
	}

	// Finish by inserting a total parity bit.
	r.AppendBit(bitmap.Parity(block))

	return r, nil
}
