package engine

import (
	"fmt"
	"time"

	"github.com/mcoot/koragame/internal/model"
)

// NewMatch creates a match in the waiting state with the creator in seat 0
func NewMatch(id model.MatchID, creator model.PlayerID, bet int64) (model.Match, error) {
	if bet <= 0 {
		return model.Match{}, model.ErrInvalidBet
	}
	return model.Match{
		ID:             id,
		Players:        [model.SeatCount]model.PlayerID{creator},
		BetAmount:      bet,
		Status:         model.MatchStatusWaiting,
		KoraMultiplier: 1,
	}, nil
}

// Bind seats the second player in a waiting match
func Bind(m model.Match, playerID model.PlayerID) (model.Match, error) {
	if m.Status != model.MatchStatusWaiting {
		return m, model.ErrMatchNotWaiting
	}
	if m.HasPlayer(playerID) {
		return m, model.ErrAlreadyInMatch
	}
	if m.Players[1] != "" {
		return m, model.ErrMatchNotWaiting
	}
	next := m.Clone()
	next.Players[1] = playerID
	return next, nil
}

// DealMatch shuffles with the seed and moves a fully bound match to dealt
func DealMatch(m model.Match, seed string) (model.Match, error) {
	hand1, hand2, _, err := Deal(seed)
	if err != nil {
		return m, err
	}
	return DealWithHands(m, seed, hand1, hand2)
}

// DealWithHands moves a fully bound match to dealt with explicit hands.
// Used for dispute resolution and by tests that need a known deal.
func DealWithHands(m model.Match, seed string, hand1, hand2 []model.Card) (model.Match, error) {
	if m.Status != model.MatchStatusWaiting {
		return m, model.ErrMatchNotWaiting
	}
	if m.Players[0] == "" || m.Players[1] == "" {
		return m, fmt.Errorf("%w: two players required", model.ErrMatchNotWaiting)
	}
	if len(hand1) != model.HandSize || len(hand2) != model.HandSize {
		return m, fmt.Errorf("%w: hands must have %d cards", model.ErrInvalidCard, model.HandSize)
	}
	next := m.Clone()
	next.Seed = seed
	next.Hands = [model.SeatCount][]model.Card{
		append([]model.Card(nil), hand1...),
		append([]model.Card(nil), hand2...),
	}
	next.Status = model.MatchStatusDealt
	next.CurrentTurn = 0
	next.CurrentPlayerID = next.Players[0]
	next.TricksWon = [model.SeatCount]int{}
	next.KoraMultiplier = 1
	return next, nil
}

// ApplyPlay validates and applies one card. It returns the new match value,
// the accepted play and, when the card completed a trick, its TurnResult.
// On error the input match is returned unchanged.
func ApplyPlay(m model.Match, playerID model.PlayerID, card model.Card, at time.Time) (model.Match, model.Play, *model.TurnResult, error) {
	if err := CheckPlay(&m, playerID, card); err != nil {
		return m, model.Play{}, nil, err
	}

	next := m.Clone()
	seat := next.Seat(playerID)
	play := model.Play{
		MatchID:  next.ID,
		Turn:     next.CurrentTurn,
		PlayerID: playerID,
		Card:     card,
		PlayedAt: at,
	}

	hand := next.Hands[seat]
	idx := model.IndexOfCard(hand, card)
	next.Hands[seat] = append(hand[:idx:idx], hand[idx+1:]...)
	next.CurrentTurn++
	next.Status = model.MatchStatusPlaying

	if next.TrickLead == nil {
		lead := play
		suit := card.Suit
		next.TrickLead = &lead
		next.DemandedSuit = &suit
		next.CurrentPlayerID = next.Opponent(playerID)
		return next, play, nil, nil
	}

	result := ResolveTrick(*next.TrickLead, play)
	next.TrickLead = nil
	next.DemandedSuit = nil
	next.TricksWon[next.Seat(result.WinnerID)]++
	next.CurrentPlayerID = result.WinnerID

	if len(next.Hands[0]) == 0 && len(next.Hands[1]) == 0 {
		next = Score(next)
	}
	return next, play, &result, nil
}

// Concede ends an active match immediately in the opponent's favour. Used for
// explicit abandonment and for timeout forfeits.
func Concede(m model.Match, playerID model.PlayerID) (model.Match, error) {
	switch m.Status {
	case model.MatchStatusFinished:
		return m, model.ErrMatchFinished
	case model.MatchStatusWaiting:
		return m, model.ErrMatchNotDealt
	}
	if !m.HasPlayer(playerID) {
		return m, model.ErrNotInMatch
	}
	next := m.Clone()
	next.Status = model.MatchStatusFinished
	next.WinnerID = next.Opponent(playerID)
	next.VictoryType = model.VictoryConcession
	next.KoraMultiplier = 1
	next.ConcededBy = playerID
	next.CurrentPlayerID = ""
	next.DemandedSuit = nil
	next.TrickLead = nil
	return next, nil
}

// Forfeit ends the match against the player whose turn ran out. Only the
// player currently expected to act can forfeit, so a late timer firing after
// that player already moved is rejected as ErrStaleTurn.
func Forfeit(m model.Match, playerID model.PlayerID) (model.Match, error) {
	if m.IsActive() && m.CurrentPlayerID != playerID {
		return m, fmt.Errorf("%w: %s is not the player to act", model.ErrStaleTurn, playerID)
	}
	return Concede(m, playerID)
}

// VictoryFor maps the winner's trick count to the victory tier and its
// multiplier. Concessions are handled by Concede.
func VictoryFor(tricks int) (model.VictoryType, int) {
	switch {
	case tricks >= 5:
		return model.VictoryKoraTriple, 4
	case tricks == 4:
		return model.VictoryKoraDouble, 3
	default:
		return model.VictoryKoraSimple, 2
	}
}

// Score finishes a match whose hands are exhausted. The player with more
// tricks wins; with five tricks a draw is impossible.
func Score(m model.Match) model.Match {
	winnerSeat := 0
	if m.TricksWon[1] > m.TricksWon[0] {
		winnerSeat = 1
	}
	m.Status = model.MatchStatusFinished
	m.WinnerID = m.Players[winnerSeat]
	m.VictoryType, m.KoraMultiplier = VictoryFor(m.TricksWon[winnerSeat])
	m.CurrentPlayerID = ""
	return m
}
