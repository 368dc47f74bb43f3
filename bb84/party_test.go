package bb84

import (
	"testing"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"github.com/alan-christopher/bb84sim/bb84/entropy"
	"github.com/alan-christopher/bb84sim/bb84/photon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAlice(t *testing.T) {
	tcs := []struct {
		name string
		n    int
		eErr bool
	}{
		{"zero", 0, true},
		{"negative", -3, true},
		{"one", 1, false},
		{"unaligned", 13, false},
		{"many", 4096, false},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			a, err := newAlice(tc.n, entropy.FromInt64(1).Rand())
			if tc.eErr {
				assert.ErrorIs(t, err, ErrInvalidConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.n, a.bits.Size())
			assert.Equal(t, tc.n, a.bases.Size())
			assert.Len(t, a.states(), tc.n)
		})
	}
}

func TestAliceIsBalanced(t *testing.T) {
	const n = 20000
	a, err := newAlice(n, entropy.FromInt64(2).Rand())
	require.NoError(t, err)
	assert.InDelta(t, 0.5, float64(bitmap.CountOnes(a.bits))/n, 0.02)
	assert.InDelta(t, 0.5, float64(bitmap.CountOnes(a.bases))/n, 0.02)
	// Bits and bases are drawn independently.
	both := bitmap.CountOnes(bitmap.And(a.bits, a.bases))
	assert.InDelta(t, 0.25, float64(both)/n, 0.02)
}

func TestAliceStatesEncodeBitsAndBases(t *testing.T) {
	a, err := newAlice(64, entropy.FromInt64(3).Rand())
	require.NoError(t, err)
	for i, s := range a.states() {
		assert.Equal(t, a.bits.Get(i), s.Bit(), "bit %d", i)
		assert.Equal(t, photon.BasisOf(a.bases.Get(i)), s.Basis(), "basis %d", i)
	}
}

func TestBobRecordsEveryQubitInOrder(t *testing.T) {
	r := entropy.FromInt64(4).Rand()
	a, err := newAlice(100, r)
	require.NoError(t, err)
	b := newBob(100, r)
	// Bob measures in Alice's bases, so every measurement must reproduce her
	// bits at the same position.
	b.bases = a.bases.Clone()

	sender, receiver := photon.NewSimulatedChannel(1, r)
	require.NoError(t, a.sendQBits(sender))
	require.NoError(t, b.receiveQBits(receiver))
	assert.Equal(t, 100, b.measurements.Size())
	assert.True(t, bitmap.Equal(a.bits, b.measurements))
}

type shortReceiver struct{}

func (shortReceiver) Receive(bases bitmap.Dense) (bitmap.Dense, error) {
	return bitmap.FromBools([]bool{true}), nil
}

func TestBobRejectsMissingMeasurements(t *testing.T) {
	b := newBob(8, entropy.FromInt64(5).Rand())
	assert.Error(t, b.receiveQBits(shortReceiver{}))
}

func TestRandomBitsClearsTail(t *testing.T) {
	r := entropy.FromInt64(6).Rand()
	for n := 1; n < 40; n++ {
		d := randomBits(n, r)
		require.Equal(t, n, d.Size())
		data := d.Data()
		if tail := n % 8; tail != 0 {
			assert.Zero(t, data[len(data)-1]>>tail, "n=%d leaves bits past the end set", n)
		}
	}
}
