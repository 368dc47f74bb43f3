package bb84

import (
	"fmt"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"google.golang.org/protobuf/encoding/protowire"
)

// A message is a classical announcement exchanged during reconciliation. The
// wire format is protobuf; each message documents its field numbers.
type message interface {
	marshal() []byte
	unmarshal(b []byte) error
}

// parityAnnouncement carries the total parity of every block.
//
//	1: dense parities
type parityAnnouncement struct {
	parities bitmap.Dense
}

// syndromeAnnouncement carries the hamming syndromes of blocks whose parity
// disagreed.
//
//	1: repeated dense syndromes
type syndromeAnnouncement struct {
	syndromes []bitmap.Dense
}

// hashAnnouncement carries a verification hash of the reconciled key.
//
//	1: dense hash
type hashAnnouncement struct {
	hash bitmap.Dense
}

// verdictAnnouncement reports whether the verification hash matched.
//
//	1: bool agreed
type verdictAnnouncement struct {
	agreed bool
}

func (m *parityAnnouncement) marshal() []byte {
	return appendDense(nil, 1, m.parities)
}

func (m *parityAnnouncement) unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num != 1 {
			return nil
		}
		d, err := consumeDense(typ, v)
		m.parities = d
		return err
	})
}

func (m *syndromeAnnouncement) marshal() []byte {
	var b []byte
	for _, syn := range m.syndromes {
		b = appendDense(b, 1, syn)
	}
	return b
}

func (m *syndromeAnnouncement) unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num != 1 {
			return nil
		}
		d, err := consumeDense(typ, v)
		if err != nil {
			return err
		}
		m.syndromes = append(m.syndromes, d)
		return nil
	})
}

func (m *hashAnnouncement) marshal() []byte {
	return appendDense(nil, 1, m.hash)
}

func (m *hashAnnouncement) unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num != 1 {
			return nil
		}
		d, err := consumeDense(typ, v)
		m.hash = d
		return err
	})
}

func (m *verdictAnnouncement) marshal() []byte {
	b := protowire.AppendTag(nil, 1, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(m.agreed))
}

func (m *verdictAnnouncement) unmarshal(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num != 1 {
			return nil
		}
		if typ != protowire.VarintType {
			return fmt.Errorf("verdict has wire type %d, want varint", typ)
		}
		x, n := protowire.ConsumeVarint(v)
		if n < 0 {
			return protowire.ParseError(n)
		}
		m.agreed = protowire.DecodeBool(x)
		return nil
	})
}

// appendDense encodes d as a nested message {1: bytes bits, 2: varint len}.
func appendDense(b []byte, num protowire.Number, d bitmap.Dense) []byte {
	var inner []byte
	inner = protowire.AppendTag(inner, 1, protowire.BytesType)
	inner = protowire.AppendBytes(inner, d.Data()[:d.SizeBytes()])
	inner = protowire.AppendTag(inner, 2, protowire.VarintType)
	inner = protowire.AppendVarint(inner, uint64(d.Size()))
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner)
}

func consumeDense(typ protowire.Type, v []byte) (bitmap.Dense, error) {
	if typ != protowire.BytesType {
		return bitmap.Empty(), fmt.Errorf("bitmap has wire type %d, want bytes", typ)
	}
	inner, n := protowire.ConsumeBytes(v)
	if n < 0 {
		return bitmap.Empty(), protowire.ParseError(n)
	}
	var (
		bits   []byte
		bitLen uint64
	)
	err := walkFields(inner, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch {
		case num == 1 && typ == protowire.BytesType:
			x, n := protowire.ConsumeBytes(v)
			if n < 0 {
				return protowire.ParseError(n)
			}
			bits = append([]byte(nil), x...)
		case num == 2 && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(v)
			if n < 0 {
				return protowire.ParseError(n)
			}
			bitLen = x
		}
		return nil
	})
	if err != nil {
		return bitmap.Empty(), err
	}
	if bitmap.BytesFor(int(bitLen)) > len(bits) {
		return bitmap.Empty(), fmt.Errorf("bitmap claims %d bits but carries %d bytes", bitLen, len(bits))
	}
	return bitmap.NewDense(bits, int(bitLen)), nil
}

// walkFields calls f once per field of the encoded message b, passing the
// field's raw value, i.e. everything after its tag.
func walkFields(b []byte, f func(num protowire.Number, typ protowire.Type, v []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return protowire.ParseError(m)
		}
		if err := f(num, typ, b[:m]); err != nil {
			return err
		}
		b = b[m:]
	}
	return nil
}
