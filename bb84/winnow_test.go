package bb84

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"github.com/alan-christopher/bb84sim/bb84/entropy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSECDED(t *testing.T) {
	var w winnower
	tcs := []struct {
		name     string
		vec      bitmap.Dense
		hBits    int
		syndrome bitmap.Dense
	}{{
		name:     "[8,4] null syndrome",
		vec:      bitmap.NewDense([]byte{0b00101101}, 8),
		hBits:    3,
		syndrome: bitmap.NewDense([]byte{0b0000}, 4),
	}, {
		name:     "[8,4] total parity flip",
		vec:      bitmap.NewDense([]byte{0b10101101}, 8),
		hBits:    3,
		syndrome: bitmap.NewDense([]byte{0b1000}, 4),
	}, {
		name:     "[8,4] p1 flip",
		vec:      bitmap.NewDense([]byte{0b00101100}, 8),
		hBits:    3,
		syndrome: bitmap.NewDense([]byte{0b1001}, 4),
	}, {
		name:     "[8,4] p2 flip",
		vec:      bitmap.NewDense([]byte{0b00101111}, 8),
		hBits:    3,
		syndrome: bitmap.NewDense([]byte{0b1010}, 4),
	}, {
		name:     "[8,4] p3 flip",
		vec:      bitmap.NewDense([]byte{0b00100101}, 8),
		hBits:    3,
		syndrome: bitmap.NewDense([]byte{0b1100}, 4),
	}, {
		name:     "[8,4] single data flip",
		vec:      bitmap.NewDense([]byte{0b00101001}, 8),
		hBits:    3,
		syndrome: bitmap.NewDense([]byte{0b1011}, 4),
	}, {
		name:     "[8,4] double flip",
		vec:      bitmap.NewDense([]byte{0b00001100}, 8),
		hBits:    3,
		syndrome: bitmap.NewDense([]byte{0b0111}, 4),
	}, {
		name: "[16,5] null syndrome",
		// little-endian (data, hamming-ed): (01101011100, 00001100 10111000)
		vec:      bitmap.NewDense([]byte{0b00110000, 0b00011101}, 16),
		hBits:    4,
		syndrome: bitmap.NewDense([]byte{0b00000}, 5),
	},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			syn, err := w.secded(tc.vec, tc.hBits)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if syn.Size() != tc.syndrome.Size() {
				t.Errorf("got bitmap of len %d, want %d", syn.Size(), tc.syndrome.Size())
			}
			arr := syn.Data()
			eArr := tc.syndrome.Data()
			if !bytes.Equal(arr, eArr) {
				t.Errorf("hamming(%08b) == %08b, want %08b", tc.vec.Data(), arr, eArr)
			}
		})
	}
}

func TestApplySyndromes(t *testing.T) {
	w := winnower{isAlice: false}
	const hBits = 3

	tcs := []struct {
		name     string
		x        bitmap.Dense
		expected bitmap.Dense
		synSums  []bitmap.Dense
		todo     bitmap.Dense
	}{{
		name:     "skip all",
		x:        bitmap.NewDense(nil, 3*8),
		expected: bitmap.NewDense(nil, 3*8),
		synSums:  []bitmap.Dense{},
		todo:     bitmap.NewDense([]byte{0b000}, 3),
	}, {
		name: "fix all",
		x:    bitmap.NewDense(nil, 3*8),
		expected: bitmap.NewDense([]byte{
			1,
			1 << (0b110 - 1),
			1 << 7}, 24),
		synSums: []bitmap.Dense{
			bitmap.NewDense([]byte{0b1001}, hBits+1),
			bitmap.NewDense([]byte{0b1110}, hBits+1),
			bitmap.NewDense([]byte{0b1000}, hBits+1),
		},
		todo: bitmap.NewDense([]byte{0b111}, 3),
	},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			err := w.applySyndromes(&tc.x, tc.synSums, tc.todo, hBits)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			arr, eArr := tc.x.Data(), tc.expected.Data()
			if !bytes.Equal(arr, eArr) {
				t.Errorf("x == %08b after correction, want %08b", arr, eArr)
			}
		})
	}
}

func TestPrivacyMaintenance(t *testing.T) {
	var w winnower
	tcs := []struct {
		hBits    int
		x        bitmap.Dense
		xTrimmed bitmap.Dense
		todo     bitmap.Dense
	}{{
		hBits:    2,
		x:        bitmap.NewDense([]byte{0b01111011}, 8),
		xTrimmed: bitmap.NewDense([]byte{0b1110}, 4),
		todo:     bitmap.NewDense([]byte{0b01}, 2),
	}, {
		hBits:    3,
		x:        bitmap.NewDense([]byte{0b10001011, 0b01111111}, 16),
		xTrimmed: bitmap.NewDense([]byte{0b11110000, 0b111}, 11),
		todo:     bitmap.NewDense([]byte{0b01}, 2),
	}, {
		hBits: 4,
		x: bitmap.NewDense([]byte{
			0b10001011, 0b10000000,
			0b11111111, 0b01111111,
		}, 32),
		xTrimmed: bitmap.NewDense([]byte{
			0b00000000, 0b11111000,
			0b11111111, 0b11}, 26),
		todo: bitmap.NewDense([]byte{0b01}, 2),
	},
	}

	for _, tc := range tcs {
		t.Run(fmt.Sprintf("m=%d", tc.hBits), func(t *testing.T) {
			x := w.maintainPrivacy(tc.x, tc.todo, tc.hBits)
			if x.Size() != tc.xTrimmed.Size() {
				t.Errorf("got bitmap of len %d, want %d", x.Size(), tc.xTrimmed.Size())
			}
			arr, eArr := x.Data(), tc.xTrimmed.Data()
			if !bytes.Equal(arr, eArr) {
				t.Errorf("x == %08b after privacy maintenance, want %08b", arr, eArr)
			}
		})
	}
}

func TestPrivacyMaintenancePartialBlock(t *testing.T) {
	var w winnower
	tcs := []struct {
		name     string
		x        bitmap.Dense
		xTrimmed bitmap.Dense
		todo     bitmap.Dense
	}{{
		// The second block's total parity position lies in the padding, so
		// its last real bit goes instead.
		name:     "parity only",
		x:        bitmap.NewDense([]byte{0b10110101, 0b10}, 10),
		xTrimmed: bitmap.NewDense([]byte{0b00110101}, 8),
		todo:     bitmap.NewDense([]byte{0b00}, 2),
	}, {
		// Positions 0, 1 and 3 of the second block are real; position 7 is
		// padding and costs position 5.
		name:     "full syndrome",
		x:        bitmap.NewDense([]byte{0b10110101, 0b00110110}, 14),
		xTrimmed: bitmap.NewDense([]byte{0b10110101, 0b1}, 9),
		todo:     bitmap.NewDense([]byte{0b10}, 2),
	}, {
		name:     "more announced than real",
		x:        bitmap.NewDense([]byte{0b10110101, 0b101}, 11),
		xTrimmed: bitmap.NewDense([]byte{0b00110101}, 7),
		todo:     bitmap.NewDense([]byte{0b10}, 2),
	}}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			x := w.maintainPrivacy(tc.x, tc.todo, 3)
			if x.Size() != tc.xTrimmed.Size() {
				t.Errorf("got bitmap of len %d, want %d", x.Size(), tc.xTrimmed.Size())
			}
			arr, eArr := x.Data(), tc.xTrimmed.Data()
			if !bytes.Equal(arr, eArr) {
				t.Errorf("x == %08b after privacy maintenance, want %08b", arr, eArr)
			}
		})
	}
}

// A key shorter than one code block still pays one discarded bit per parity
// it announces.
func TestWinnowDiscardsParitiesOfShortKey(t *testing.T) {
	rec, err := NewWinnowReconciler(WinnowOpts{
		Iters:    []int{7},
		SyncSeed: 17,
		Secret:   []byte("bootstrap secret"),
	})
	require.NoError(t, err)
	alice := randomBits(50, entropy.FromInt64(34).Rand())

	res, err := rec.Reconcile(alice, alice.Clone())
	require.NoError(t, err)
	assert.Equal(t, 49, res.Alice.Size(), "total parity announced")
	assert.Equal(t, 1, res.Stats.BitsDiscarded)

	bob := alice.Clone()
	bob.Flip(20)
	res, err = rec.Reconcile(alice, bob)
	require.NoError(t, err)
	assert.True(t, bitmap.Equal(res.Alice, res.Bob))
	assert.Equal(t, 42, res.Alice.Size(), "7 syndrome bits and a total parity announced")
	assert.Equal(t, 8, res.Stats.BitsDiscarded)
}

func testWinnow(t *testing.T) Reconciler {
	rec, err := NewWinnowReconciler(WinnowOpts{
		SyncSeed: 17,
		Secret:   []byte("bootstrap secret"),
	})
	require.NoError(t, err)
	return rec
}

func TestWinnowReconcileFixesSparseErrors(t *testing.T) {
	s := entropy.FromInt64(31)
	alice := randomBits(2048, s.Rand())
	bob := alice.Clone()
	errRand := s.Rand()
	for i := 0; i < 20; i++ {
		bob.Flip(errRand.Intn(bob.Size()))
	}
	require.False(t, bitmap.Equal(alice, bob))

	res, err := testWinnow(t).Reconcile(alice, bob)
	require.NoError(t, err)
	assert.True(t, bitmap.Equal(res.Alice, res.Bob), "reconciled keys disagree")
	assert.Greater(t, res.Alice.Size(), 0)
	assert.Less(t, res.Alice.Size(), alice.Size())
	assert.Equal(t, alice.Size()-res.Alice.Size(), res.Stats.BitsDiscarded)
	assert.Equal(t, verifyBits, res.Stats.BitsLeaked)
	assert.Greater(t, res.Stats.MessagesSent, 0)
	assert.Greater(t, res.Stats.BytesSent, 0)
}

func TestWinnowReconcileLeavesInputsUntouched(t *testing.T) {
	s := entropy.FromInt64(32)
	alice := randomBits(512, s.Rand())
	bob := alice.Clone()
	bob.Flip(3)
	aBefore, bBefore := alice.Clone(), bob.Clone()

	_, err := testWinnow(t).Reconcile(alice, bob)
	require.NoError(t, err)
	assert.True(t, bitmap.Equal(alice, aBefore))
	assert.True(t, bitmap.Equal(bob, bBefore))
}

func TestWinnowReconcileRejectsHeavyNoise(t *testing.T) {
	s := entropy.FromInt64(33)
	r := s.Rand()
	alice := randomBits(2048, r)
	// Independent keys disagree in about half their positions; nothing can
	// reconcile that.
	bob := randomBits(2048, r)

	_, err := testWinnow(t).Reconcile(alice, bob)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUncorrectable)
}

func TestWinnowReconcileLengthMismatch(t *testing.T) {
	_, err := testWinnow(t).Reconcile(bitmap.NewDense(nil, 16), bitmap.NewDense(nil, 24))
	assert.ErrorIs(t, err, ErrUncorrectable)
}

func TestNewWinnowReconcilerValidation(t *testing.T) {
	tcs := []struct {
		name string
		opts WinnowOpts
	}{
		{"no secret", WinnowOpts{}},
		{"tiny blocks", WinnowOpts{Secret: []byte{1}, Iters: []int{2}}},
		{"bad epsilon", WinnowOpts{Secret: []byte{1}, EpsilonAuth: 2}},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewWinnowReconciler(tc.opts)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}
