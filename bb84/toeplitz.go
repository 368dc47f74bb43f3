package bb84

import (
	"fmt"
	"io"
	"math"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
)

// A toeplitz represents a matrix whose diagonals are all constant. It operates
// in F_2, i.e. all of its scalars are 0 or 1.
type toeplitz struct {
	// The diagonal constants for this toeplitz matrix, starting from the bottom
	// left and ending with the top right.
	diags bitmap.Dense

	m int
	n int
}

// newToeplitz draws a fresh m x n toeplitz matrix from r. Its m+n-1 diagonals
// are exactly the information in its first row and first column.
func newToeplitz(m, n int, r io.Reader) (toeplitz, error) {
	if m <= 0 || n <= 0 {
		return toeplitz{}, fmt.Errorf("toeplitz dimensions must be positive, got %dx%d", m, n)
	}
	k := m + n - 1
	buf := make([]byte, bitmap.BytesFor(k))
	if _, err := io.ReadFull(r, buf); err != nil {
		return toeplitz{}, fmt.Errorf("%w: drawing toeplitz diagonals: %v", ErrEntropy, err)
	}
	if tail := k % 8; tail != 0 {
		buf[len(buf)-1] &= 1<<tail - 1
	}
	return toeplitz{diags: bitmap.NewDense(buf, k), m: m, n: n}, nil
}

// Get returns the entry at row i, column j.
func (t toeplitz) Get(i, j int) bool {
	return t.diags.Get(t.m - 1 - i + j)
}

// TODO: surely there are ways to take advantage of the structure of a toeplitz
//   matrix to achieve vector mul in better than O(mn) time. Even constant
//   factor improvements are worth investigating; profiling indicate that this
//   is the long pole in the tent when it comes to performance.
// Mul computes the matrix product Av between the toeplitz matrix t and the
// provided vector.
func (t toeplitz) Mul(vec bitmap.Dense) (bitmap.Dense, error) {
	if t.diags.Size() < t.m+t.n-1 {
		return bitmap.Dense{}, fmt.Errorf("improper toeplitz construction, has %d diagonals, needs %d", t.diags.Size(), t.m+t.n-1)
	}
	if t.n != vec.Size() {
		return bitmap.Dense{}, fmt.Errorf("multiplying %dx%d matrix into %d-dim vector", t.m, t.n, vec.Size())
	}

	r := bitmap.Dense{}
	for off := t.m - 1; off >= 0; off-- {
		row, err := bitmap.Slice(t.diags, off, off+t.n)
		if err != nil {
			return bitmap.Empty(), err
		}
		r.AppendBit(bitmap.Parity(bitmap.And(row, vec)))
	}
	return r, nil
}

// amplifiedSize returns the length of the final key distilled from n
// reconciled bits, leaked of which were disclosed during reconciliation.
func amplifiedSize(n, leaked int, ratio float64) int {
	m := int(math.Floor(ratio * float64(n)))
	if m > n-leaked {
		m = n - leaked
	}
	if m < 0 {
		m = 0
	}
	return m
}

// amplify compresses key down to m bits with a toeplitz hash drawn fresh from
// r. The matrix does not outlive the call.
func amplify(key bitmap.Dense, m int, r io.Reader) (bitmap.Dense, error) {
	if m == 0 || key.Size() == 0 {
		return bitmap.Empty(), nil
	}
	t, err := newToeplitz(m, key.Size(), r)
	if err != nil {
		return bitmap.Empty(), err
	}
	return t.Mul(key)
}
