package engine

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
)

var seedAlphabet = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// SeedFromString returns a 64-bit seed from an arbitrary string using SHA256.
func SeedFromString(s string) uint64 {
	h := sha256.Sum256([]byte(s))
	return binary.LittleEndian.Uint64(h[:8])
}

// Derive returns a deterministic child seed based on a base seed and a label using HMAC-SHA256.
// Labels should be stable strings such as "surprise" or "surprise:check".
func Derive(base uint64, label string) uint64 {
	key := make([]byte, 8)
	binary.LittleEndian.PutUint64(key, base)
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(label))
	sum := m.Sum(nil)
	return binary.LittleEndian.Uint64(sum[:8])
}

// Seed is the textual seed behind every random draw in a session.
type Seed struct {
	Text string
	root uint64
}

// NewSeed creates a deterministic Seed from text. Empty text is rejected.
func NewSeed(text string) (Seed, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Seed{}, fmt.Errorf("seed text must not be empty")
	}
	return Seed{Text: text, root: SeedFromString(text)}, nil
}

// RandomSeed draws a fresh seed from crypto/rand.
func RandomSeed() Seed {
	buf := make([]byte, 15) // 24 characters base32
	if _, err := rand.Read(buf); err != nil {
		s, _ := NewSeed("fallback-seed")
		return s
	}
	s, _ := NewSeed(strings.ToLower(seedAlphabet.EncodeToString(buf)))
	return s
}

// Stream returns a new deterministic RNG stream derived from the root seed.
func (r Seed) Stream(label string) *Stream {
	return newStream(Derive(r.root, label))
}

// SplitMix64 PRNG implementation for deterministic streams.
type SplitMix64 struct{ state uint64 }

func newSplitMix64(seed uint64) *SplitMix64 { return &SplitMix64{state: seed} }

func (s *SplitMix64) next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

func (s *SplitMix64) int63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	return int64(s.next() % uint64(n))
}

func (s *SplitMix64) float64() float64 {
	return float64(s.next()>>11) / (1 << 53)
}

// Stream provides deterministic random numbers for one labelled consumer.
// A Stream is not safe for concurrent use.
type Stream struct {
	sm *SplitMix64
}

func newStream(seed uint64) *Stream {
	return &Stream{sm: newSplitMix64(seed)}
}

// Int63n returns a value in [0,n).
func (s *Stream) Int63n(n int64) int64 { return s.sm.int63n(n) }

// Float64 returns a float in [0,1).
func (s *Stream) Float64() float64 { return s.sm.float64() }
