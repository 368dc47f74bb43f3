// Package entropy provides per-session streams of cryptographically secure
// randomness. A Stream is a chacha20 keystream keyed from a seed; seeding two
// streams identically yields identical output, which keeps simulations
// reproducible under test while remaining unpredictable when seeded from the
// operating system.
package entropy

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	mrand "math/rand"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"
)

// SeedSize is the number of bytes drawn from the operating system to seed a
// fresh Stream.
const SeedSize = 32

const streamInfo = "bb84sim/entropy/stream"

// A Stream is a single logical source of randomness. It implements io.Reader
// and math/rand.Source64, so it can be handed directly to rand.New. A Stream
// is not safe for concurrent use; independent sessions should each own one.
type Stream struct {
	cipher *chacha20.Cipher
	buf    [8]byte
}

// New returns a Stream keyed from seed. Any seed length is accepted; the key is
// derived with HKDF-SHA256.
func New(seed []byte) (*Stream, error) {
	return derive(seed, streamInfo)
}

// NewRandom returns a Stream seeded from the operating system's entropy pool.
func NewRandom() (*Stream, error) {
	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return nil, fmt.Errorf("reading system entropy: %w", err)
	}
	return New(seed)
}

// FromInt64 returns a Stream keyed from a 64-bit seed, for tests and
// reproducible experiments.
func FromInt64(seed int64) *Stream {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(seed))
	s, err := New(b[:])
	if err != nil {
		// chacha20 only rejects malformed key/nonce sizes, which derive never
		// produces.
		panic(fmt.Sprintf("BUG: keying stream: %v", err))
	}
	return s
}

// Derive draws key material from s and returns an independent child Stream
// labelled by purpose. Children with different labels are unrelated even when
// drawn from identically seeded parents.
func (s *Stream) Derive(label string) (*Stream, error) {
	seed := make([]byte, SeedSize)
	if _, err := s.Read(seed); err != nil {
		return nil, err
	}
	return derive(seed, streamInfo+"/"+label)
}

// Read fills p with keystream bytes. It never returns an error.
func (s *Stream) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	s.cipher.XORKeyStream(p, p)
	return len(p), nil
}

// Uint64 implements rand.Source64.
func (s *Stream) Uint64() uint64 {
	s.Read(s.buf[:])
	return binary.LittleEndian.Uint64(s.buf[:])
}

// Int63 implements rand.Source.
func (s *Stream) Int63() int64 {
	return int64(s.Uint64() & (1<<63 - 1))
}

// Seed implements rand.Source by re-keying s from seed.
func (s *Stream) Seed(seed int64) {
	*s = *FromInt64(seed)
}

// Rand wraps s in a *rand.Rand. All draws made through the returned Rand
// advance s.
func (s *Stream) Rand() *mrand.Rand {
	return mrand.New(s)
}

func derive(seed []byte, info string) (*Stream, error) {
	key := make([]byte, chacha20.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, seed, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("deriving stream key: %w", err)
	}
	nonce := make([]byte, chacha20.NonceSize)
	c, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, fmt.Errorf("keying stream: %w", err)
	}
	return &Stream{cipher: c}, nil
}
