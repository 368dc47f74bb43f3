package bb84

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
)

// A protoFramer reads and writes framed protocol buffers to the wire.
// The structure of the frame is trivial:  proto-length | proto | mac
//
// MACs are computed by applying a secret Toeplitz matrix to create a hash, then
// applying a one-time pad to the hash to allow for unconditional security. See
// also, https://arxiv.org/abs/1603.08387.
type protoFramer struct {
	rw     io.ReadWriter
	secret io.Reader
	t      toeplitz
}

func (p *protoFramer) Write(m message, s *Stats) error {
	marshalled := m.marshal()
	if err := binary.Write(p.rw, binary.LittleEndian, int32(len(marshalled))); err != nil {
		return err
	}
	if _, err := p.rw.Write(marshalled); err != nil {
		return err
	}
	mac, err := p.buildMAC(marshalled)
	if err != nil {
		return err
	}
	if _, err := p.rw.Write(mac); err != nil {
		return err
	}
	s.MessagesSent++
	s.BytesSent += 4 + len(marshalled) + len(mac)
	return nil
}

func (p *protoFramer) Read(m message, s *Stats) error {
	var mLen int32
	if err := binary.Read(p.rw, binary.LittleEndian, &mLen); err != nil {
		return err
	}
	if mLen < 0 {
		return fmt.Errorf("negative frame length %d", mLen)
	}
	marshalled := make([]byte, mLen)
	if _, err := io.ReadFull(p.rw, marshalled); err != nil {
		return err
	}
	mac := make([]byte, bitmap.BytesFor(p.t.m))
	if _, err := io.ReadFull(p.rw, mac); err != nil {
		return err
	}
	emac, err := p.buildMAC(marshalled)
	if err != nil {
		return err
	}
	if !bytes.Equal(mac, emac) {
		return fmt.Errorf("invalid mac: got %v, expected %v", mac, emac)
	}
	s.MessagesReceived++
	s.BytesRead += 4 + len(marshalled) + len(mac)

	return m.unmarshal(marshalled)
}

func (p *protoFramer) buildMAC(msg []byte) ([]byte, error) {
	p.t.n = len(msg) * 8
	if p.t.n == 0 {
		// An empty message hashes to zero; the pad alone authenticates it.
		p.t.n = 1
		msg = []byte{0}
	}
	hash, err := p.t.Mul(bitmap.NewDense(msg, p.t.n))
	if err != nil {
		return nil, err
	}
	otp := make([]byte, hash.SizeBytes())
	if _, err := io.ReadFull(p.secret, otp); err != nil {
		return nil, err
	}
	mac := bitmap.XOr(hash, bitmap.NewDense(otp, hash.Size()))
	return mac.Data()[:mac.SizeBytes()], nil
}
