package engine

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/mcoot/koragame/internal/model"
)

// DeckSize is the number of cards in a Kora deck (four suits, ranks 3-10)
const DeckSize = 32

// SeedLength is the number of hex digits in a shuffle seed
const SeedLength = 16

// second PCG stream word, fixed so a 64-bit seed fully determines the order
const pcgStream = 0x9e3779b97f4a7c15

// NewDeck returns the unshuffled deck, grouped by suit in ascending rank
func NewDeck() []model.Card {
	deck := make([]model.Card, 0, DeckSize)
	for _, s := range model.Suits {
		for r := model.MinRank; r <= model.MaxRank; r++ {
			deck = append(deck, model.Card{Suit: s, Rank: r})
		}
	}
	return deck
}

// ParseSeed decodes a seed of exactly SeedLength hex digits
func ParseSeed(seed string) (uint64, error) {
	if len(seed) != SeedLength {
		return 0, fmt.Errorf("%w: want %d hex digits, got %q", model.ErrInvalidSeed, SeedLength, seed)
	}
	v, err := strconv.ParseUint(seed, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not hex", model.ErrInvalidSeed, seed)
	}
	return v, nil
}

// FormatSeed encodes a 64-bit value as a seed string
func FormatSeed(v uint64) string {
	return fmt.Sprintf("%016x", v)
}

// Shuffle returns the deck permuted by the seed. The same seed always yields
// the same order.
func Shuffle(seed string) ([]model.Card, error) {
	v, err := ParseSeed(seed)
	if err != nil {
		return nil, err
	}
	src := rand.NewPCG(v, pcgStream)
	deck := NewDeck()
	for i := len(deck) - 1; i > 0; i-- {
		j := int(boundedUint64(src, uint64(i+1)))
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck, nil
}

// boundedUint64 returns an unbiased value in [0, n) using rejection sampling.
// Implemented here rather than via rand.Rand so the permutation never depends
// on the standard library's choice of bounding algorithm.
func boundedUint64(src rand.Source, n uint64) uint64 {
	threshold := -n % n
	for {
		v := src.Uint64()
		if v >= threshold {
			return v % n
		}
	}
}

// Deal shuffles with the seed and deals HandSize cards to each player,
// alternating and starting with the first player
func Deal(seed string) (hand1, hand2, remaining []model.Card, err error) {
	deck, err := Shuffle(seed)
	if err != nil {
		return nil, nil, nil, err
	}
	hand1 = make([]model.Card, 0, model.HandSize)
	hand2 = make([]model.Card, 0, model.HandSize)
	for i := 0; i < 2*model.HandSize; i++ {
		if i%2 == 0 {
			hand1 = append(hand1, deck[i])
		} else {
			hand2 = append(hand2, deck[i])
		}
	}
	remaining = append([]model.Card(nil), deck[2*model.HandSize:]...)
	return hand1, hand2, remaining, nil
}
