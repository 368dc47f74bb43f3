// Package bitmap provides densely packed bit vectors: the bits, bases and
// keys of a session and the diagonals of a toeplitz matrix.
package bitmap

import (
	"bytes"
	"math/bits"
)

const byteSize = 8

// Select keeps the bits of data whose positions are set in mask, in order.
func Select(data, mask Dense) Dense {
	var d Dense
	for i := 0; i < data.Size(); i++ {
		if mask.Get(i) {
			d.AppendBit(data.Get(i))
		}
	}
	return d
}

// Empty returns a bitmap of no bits.
func Empty() Dense {
	return Dense{}
}

// FromBools packs bs into a bitmap, preserving order.
func FromBools(bs []bool) Dense {
	d := Dense{bits: make([]byte, 0, BytesFor(len(bs)))}
	for _, b := range bs {
		d.AppendBit(b)
	}
	return d
}

// Parity reports whether an odd number of bits are set in d.
func Parity(d Dense) bool {
	var sum byte
	for _, b := range d.bits {
		sum ^= b
	}
	return bits.OnesCount8(sum)%2 == 1
}

// CountOnes returns the number of bits set in d.
func CountOnes(d Dense) int {
	var n int
	for _, b := range d.bits {
		n += bits.OnesCount8(b)
	}
	return n
}

// Equal reports whether a and b have the same length and bits.
func Equal(a, b Dense) bool {
	return a.len == b.len && bytes.Equal(a.bits, b.bits)
}

// BytesFor returns the number of bytes needed to hold the given number of
// bits.
func BytesFor(bits int) int {
	return (bits + byteSize - 1) / byteSize
}
