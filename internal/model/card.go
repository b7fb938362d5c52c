package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Suit is one of the four card suits
type Suit string

const (
	SuitSpades   Suit = "spades"
	SuitClubs    Suit = "clubs"
	SuitHearts   Suit = "hearts"
	SuitDiamonds Suit = "diamonds"
)

// Suits lists the suits in deck order
var Suits = []Suit{SuitSpades, SuitClubs, SuitHearts, SuitDiamonds}

// Rank is the numeric value of a card (3 through 10)
type Rank int

const (
	MinRank Rank = 3
	MaxRank Rank = 10
)

// Card is an immutable playing card. Two cards are equal when suit and rank match.
type Card struct {
	Suit Suit
	Rank Rank
}

// IsValid returns true if the card belongs to the 32-card Kora deck
func (c Card) IsValid() bool {
	return c.Suit.IsValid() && c.Rank >= MinRank && c.Rank <= MaxRank
}

// String returns the short form used on the wire and in the CLI, e.g. "10H"
func (c Card) String() string {
	return strconv.Itoa(int(c.Rank)) + c.Suit.Letter()
}

// IsValid returns true for the four known suits
func (s Suit) IsValid() bool {
	switch s {
	case SuitSpades, SuitClubs, SuitHearts, SuitDiamonds:
		return true
	}
	return false
}

// Letter returns the single-letter abbreviation of the suit
func (s Suit) Letter() string {
	switch s {
	case SuitSpades:
		return "S"
	case SuitClubs:
		return "C"
	case SuitHearts:
		return "H"
	case SuitDiamonds:
		return "D"
	default:
		return "?"
	}
}

// ParseSuit accepts a suit name or its single-letter abbreviation
func ParseSuit(s string) (Suit, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "S", "SPADES":
		return SuitSpades, nil
	case "C", "CLUBS":
		return SuitClubs, nil
	case "H", "HEARTS":
		return SuitHearts, nil
	case "D", "DIAMONDS":
		return SuitDiamonds, nil
	}
	return "", fmt.Errorf("%w: unknown suit %q", ErrInvalidCard, s)
}

// ParseCard parses the short form produced by Card.String ("3S", "10h")
func ParseCard(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return Card{}, fmt.Errorf("%w: %q", ErrInvalidCard, s)
	}
	suit, err := ParseSuit(s[len(s)-1:])
	if err != nil {
		return Card{}, err
	}
	rank, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return Card{}, fmt.Errorf("%w: bad rank in %q", ErrInvalidCard, s)
	}
	c := Card{Suit: suit, Rank: Rank(rank)}
	if !c.IsValid() {
		return Card{}, fmt.Errorf("%w: %q is not in the deck", ErrInvalidCard, s)
	}
	return c, nil
}

// ContainsCard reports whether cards holds c
func ContainsCard(cards []Card, c Card) bool {
	return IndexOfCard(cards, c) >= 0
}

// IndexOfCard returns the index of c in cards, or -1
func IndexOfCard(cards []Card, c Card) int {
	for i, held := range cards {
		if held == c {
			return i
		}
	}
	return -1
}

// HasSuit reports whether any card in cards is of the given suit
func HasSuit(cards []Card, s Suit) bool {
	for _, c := range cards {
		if c.Suit == s {
			return true
		}
	}
	return false
}
