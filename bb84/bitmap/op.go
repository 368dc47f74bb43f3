package bitmap

import (
	"fmt"

	"github.com/lukechampine/fastxor"
)

// Binary operators treat the shorter operand as zero-extended, and return a
// bitmap as long as the longer one.

// And returns the bitwise AND of a and b.
func And(a, b Dense) Dense {
	return combine(a, b, func(x, y byte) byte { return x & y })
}

// XNor returns the bitwise XNOR of a and b, e.g. the positions where two basis
// choices agree.
func XNor(a, b Dense) Dense {
	return combine(a, b, func(x, y byte) byte { return ^(x ^ y) })
}

// XOr returns the bitwise XOR of a and b.
func XOr(a, b Dense) Dense {
	if a.len < b.len {
		a, b = b, a
	}
	r := Dense{bits: make([]byte, len(a.bits)), len: a.len}
	n := fastxor.Bytes(r.bits, a.bits, b.bits)
	copy(r.bits[n:], a.bits[n:])
	return r
}

func combine(a, b Dense, f func(x, y byte) byte) Dense {
	if a.len < b.len {
		a, b = b, a
	}
	r := Dense{bits: make([]byte, len(a.bits)), len: a.len}
	for i := range r.bits {
		var y byte
		if i < len(b.bits) {
			y = b.bits[i]
		}
		r.bits[i] = f(a.bits[i], y)
	}
	r.clearPadding()
	return r
}

// Slice copies bits [start, end) of d into a new bitmap.
func Slice(d Dense, start, end int) (Dense, error) {
	if start < 0 || end < start || end > d.len {
		return Dense{}, fmt.Errorf("slicing [%d, %d) out of bitmap of len %d", start, end, d.len)
	}
	r := Dense{bits: make([]byte, BytesFor(end-start)), len: end - start}
	j, off := start/byteSize, uint(start%byteSize)
	for i := range r.bits {
		b := d.bits[j+i] >> off
		if off != 0 && j+i+1 < len(d.bits) {
			b |= d.bits[j+i+1] << (byteSize - off)
		}
		r.bits[i] = b
	}
	r.clearPadding()
	return r, nil
}
