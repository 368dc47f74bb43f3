package bitmap

import (
	"math/rand"
)

// A Dense is a bit vector packed eight bits to the byte, least significant bit
// first. Padding bits in the final byte are always zero, so byte-wise
// reductions like Parity and CountOnes only ever see real bits.
type Dense struct {
	bits []byte
	len  int
}

// NewDense returns a bitmap of bitLen bits backed by data. Data shorter than
// bitLen is zero-extended; bits of data past bitLen are cleared. A negative
// bitLen takes every bit of data.
func NewDense(data []byte, bitLen int) Dense {
	if bitLen < 0 {
		bitLen = len(data) * byteSize
	}
	nb := BytesFor(bitLen)
	if len(data) < nb {
		data = append(data, make([]byte, nb-len(data))...)
	}
	d := Dense{bits: data[:nb:nb], len: bitLen}
	d.clearPadding()
	return d
}

// Get returns the i-th bit of d. Bits past the end read as zero.
func (d Dense) Get(i int) bool {
	if i < 0 || i >= d.len {
		return false
	}
	return d.bits[i/byteSize]&(1<<(i%byteSize)) != 0
}

// Size returns the number of bits in d.
func (d Dense) Size() int {
	return d.len
}

// SizeBytes returns the number of bytes backing d.
func (d Dense) SizeBytes() int {
	return BytesFor(d.len)
}

// Data returns a view of the bytes backing d. Modifying the returned slice
// modifies d.
func (d Dense) Data() []byte {
	return d.bits
}

// Clone returns a deep copy of d.
func (d Dense) Clone() Dense {
	bits := make([]byte, len(d.bits))
	copy(bits, d.bits)
	return Dense{bits: bits, len: d.len}
}

func (d *Dense) Flip(i int) {
	d.bits[i/byteSize] ^= 1 << (i % byteSize)
}

// Set assigns v to the i-th bit of d.
func (d *Dense) Set(i int, v bool) {
	if d.Get(i) != v {
		d.Flip(i)
	}
}

// Shuffle permutes the bits of d in place. Alice and Bob shuffle with
// identically seeded sources to land on the same permutation.
func (d *Dense) Shuffle(r *rand.Rand) {
	r.Shuffle(d.len, func(i, j int) {
		a, b := d.Get(i), d.Get(j)
		d.Set(i, b)
		d.Set(j, a)
	})
}

// AppendBit adds a single bit to the end of d.
func (d *Dense) AppendBit(bit bool) {
	if d.len%byteSize == 0 {
		d.bits = append(d.bits, 0)
	}
	if bit {
		d.Flip(d.len)
	}
	d.len++
}

// Append adds the bits of o to the end of d.
func (d *Dense) Append(o Dense) {
	if d.len%byteSize == 0 {
		d.bits = append(d.bits, o.bits...)
		d.len += o.len
		return
	}
	for i := 0; i < o.len; i++ {
		d.AppendBit(o.Get(i))
	}
}

func (d *Dense) clearPadding() {
	if off := d.len % byteSize; off != 0 {
		d.bits[len(d.bits)-1] &= 1<<off - 1
	}
}
