package random

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	mrand "math/rand/v2"
	"sync"
)

// Random provides the randomness the server needs: shuffle seeds, session
// tokens and bot tie-breaks. Mocked in tests.
type Random interface {
	// Intn returns a random int in [0, n)
	Intn(n int) int

	// String generates a random string of the given length from the given alphabet
	String(length int, alphabet string) string

	// Seed returns a fresh 16 hex digit shuffle seed
	Seed() string
}

// CryptoRandom implements Random using crypto/rand
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// Intn returns a cryptographically random int in [0, n)
func (r *CryptoRandom) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	result, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(result.Int64())
}

// String generates a random string of the given length from the given alphabet
func (r *CryptoRandom) String(length int, alphabet string) string {
	if length <= 0 || len(alphabet) == 0 {
		return ""
	}
	result := make([]byte, length)
	for i := range result {
		result[i] = alphabet[r.Intn(len(alphabet))]
	}
	return string(result)
}

// Seed draws 64 bits from crypto/rand so deals cannot be predicted
// from earlier matches
func (r *CryptoRandom) Seed() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// SeededRandom is a deterministic Random driven by a PCG source. Bots use
// it when a reproducible opponent is wanted, and tests use it for property
// checks that must not flake.
type SeededRandom struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeeded creates a SeededRandom; the same seed yields the same sequence
func NewSeeded(seed uint64) *SeededRandom {
	return &SeededRandom{rng: mrand.New(mrand.NewPCG(seed, seed^0x5851f42d4c957f2d))}
}

// Intn returns a pseudo-random int in [0, n)
func (r *SeededRandom) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}

// String generates a pseudo-random string from the alphabet
func (r *SeededRandom) String(length int, alphabet string) string {
	if length <= 0 || len(alphabet) == 0 {
		return ""
	}
	result := make([]byte, length)
	for i := range result {
		result[i] = alphabet[r.Intn(len(alphabet))]
	}
	return string(result)
}

// Seed returns the next 64 bits of the sequence as a shuffle seed
func (r *SeededRandom) Seed() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("%016x", r.rng.Uint64())
}
