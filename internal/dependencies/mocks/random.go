package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/koragame/internal/dependencies/random"
)

// MockRandom returns queued values. When a queue runs dry it falls back to
// zero values, except Seed which counts upwards so every deal differs.
type MockRandom struct {
	mu sync.Mutex

	intn    []int
	strings []string
	seeds   []string

	seedCounter uint64
}

var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Intn returns the next queued result, or 0 if none remaining
func (r *MockRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.intn) == 0 {
		return 0
	}
	v := r.intn[0]
	r.intn = r.intn[1:]
	return v
}

// String returns the next queued result, or a string of the first alphabet
// character when none remain
func (r *MockRandom) String(length int, alphabet string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.strings) == 0 {
		if alphabet == "" {
			return ""
		}
		b := make([]byte, length)
		for i := range b {
			b[i] = alphabet[0]
		}
		return string(b)
	}
	v := r.strings[0]
	r.strings = r.strings[1:]
	return v
}

// Seed returns the next queued seed, or a counter formatted as a seed
func (r *MockRandom) Seed() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.seeds) == 0 {
		r.seedCounter++
		return fmt.Sprintf("%016x", r.seedCounter)
	}
	v := r.seeds[0]
	r.seeds = r.seeds[1:]
	return v
}

// QueueIntn adds values to the Intn result queue
func (r *MockRandom) QueueIntn(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intn = append(r.intn, values...)
}

// QueueString adds values to the String result queue
func (r *MockRandom) QueueString(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strings = append(r.strings, values...)
}

// QueueSeed adds values to the Seed result queue
func (r *MockRandom) QueueSeed(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seeds = append(r.seeds, values...)
}
