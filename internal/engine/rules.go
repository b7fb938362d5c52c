package engine

import (
	"fmt"

	"github.com/mcoot/koragame/internal/model"
)

// LegalCards returns the cards of hand that may be played against the
// demanded suit. A player holding the demanded suit must follow it;
// otherwise every held card is legal.
func LegalCards(hand []model.Card, demanded *model.Suit) []model.Card {
	if demanded != nil && model.HasSuit(hand, *demanded) {
		legal := make([]model.Card, 0, len(hand))
		for _, c := range hand {
			if c.Suit == *demanded {
				legal = append(legal, c)
			}
		}
		return legal
	}
	return append([]model.Card(nil), hand...)
}

// IsLegal reports whether card may be played from hand against the demanded suit
func IsLegal(hand []model.Card, demanded *model.Suit, card model.Card) bool {
	if !model.ContainsCard(hand, card) {
		return false
	}
	if demanded != nil && card.Suit != *demanded && model.HasSuit(hand, *demanded) {
		return false
	}
	return true
}

// CheckPlay validates a candidate play against the match without changing it
func CheckPlay(m *model.Match, playerID model.PlayerID, card model.Card) error {
	switch m.Status {
	case model.MatchStatusFinished:
		return model.ErrMatchFinished
	case model.MatchStatusWaiting:
		return model.ErrMatchNotDealt
	}
	seat := m.Seat(playerID)
	if seat < 0 {
		return model.ErrNotInMatch
	}
	if m.CurrentPlayerID != playerID {
		return model.ErrNotYourTurn
	}
	hand := m.Hands[seat]
	if !model.ContainsCard(hand, card) {
		return fmt.Errorf("%w: %s is not in hand", model.ErrIllegalMove, card)
	}
	if !IsLegal(hand, m.DemandedSuit, card) {
		return fmt.Errorf("%w: must follow %s", model.ErrIllegalMove, *m.DemandedSuit)
	}
	return nil
}

// ResolveTrick decides a completed trick. The lead card's suit is the
// demanded suit: a follower who matched it wins only with a higher rank,
// and an off-suit follower never wins.
func ResolveTrick(lead, follow model.Play) model.TurnResult {
	result := model.TurnResult{
		MatchID:     follow.MatchID,
		Turn:        follow.Turn,
		WinnerID:    lead.PlayerID,
		WinningCard: lead.Card,
		LoserID:     follow.PlayerID,
		LosingCard:  follow.Card,
	}
	if follow.Card.Suit == lead.Card.Suit && follow.Card.Rank > lead.Card.Rank {
		result.WinnerID, result.LoserID = follow.PlayerID, lead.PlayerID
		result.WinningCard, result.LosingCard = follow.Card, lead.Card
	}
	return result
}
