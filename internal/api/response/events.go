package response

import (
	"time"

	"github.com/mcoot/koragame/internal/model"
)

// Event is a match event as pushed to stream subscribers. Payloads never
// carry hand contents.
type Event struct {
	Type      string    `json:"type"`
	MatchID   string    `json:"match_id"`
	PlayerID  string    `json:"player_id,omitempty"`
	Turn      int       `json:"turn"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// MatchDealtPayload announces that both seats are filled
type MatchDealtPayload struct {
	Players         [model.SeatCount]string `json:"players"`
	CurrentPlayerID string                  `json:"current_player_id"`
	BetAmount       int64                   `json:"bet_amount"`
}

// PlayAcceptedPayload announces a card on the table
type PlayAcceptedPayload struct {
	Play            Play   `json:"play"`
	CurrentPlayerID string `json:"current_player_id,omitempty"`
	DemandedSuit    string `json:"demanded_suit,omitempty"`
}

// TrickResolvedPayload announces the winner of a trick
type TrickResolvedPayload struct {
	Result    TurnResult     `json:"result"`
	TricksWon map[string]int `json:"tricks_won"`
}

// MatchFinishedPayload announces the outcome
type MatchFinishedPayload struct {
	WinnerID       string `json:"winner_id"`
	VictoryType    string `json:"victory_type"`
	KoraMultiplier int    `json:"kora_multiplier"`
	ConcededBy     string `json:"conceded_by,omitempty"`
}

// MatchSettledPayload lists the ledger entries written for the match
type MatchSettledPayload struct {
	Transactions []Transaction `json:"transactions"`
}

// TurnExpiredPayload announces that a player ran out of time
type TurnExpiredPayload struct {
	ExpiredTurn int    `json:"expired_turn"`
	Policy      string `json:"policy"`
}

// EventFromModel converts a controller event
func EventFromModel(e model.Event) Event {
	return Event{
		Type:      string(e.Type),
		MatchID:   string(e.MatchID),
		PlayerID:  string(e.PlayerID),
		Turn:      e.Turn,
		Timestamp: e.Timestamp,
		Payload:   payloadFromModel(e.Payload),
	}
}

func payloadFromModel(payload any) any {
	switch p := payload.(type) {
	case model.MatchDealtPayload:
		out := MatchDealtPayload{CurrentPlayerID: string(p.CurrentPlayerID), BetAmount: p.BetAmount}
		for i, id := range p.Players {
			out.Players[i] = string(id)
		}
		return out
	case model.PlayAcceptedPayload:
		out := PlayAcceptedPayload{Play: PlayFromModel(p.Play), CurrentPlayerID: string(p.CurrentPlayerID)}
		if p.DemandedSuit != nil {
			out.DemandedSuit = string(*p.DemandedSuit)
		}
		return out
	case model.TrickResolvedPayload:
		won := make(map[string]int, len(p.TricksWon))
		for id, n := range p.TricksWon {
			won[string(id)] = n
		}
		return TrickResolvedPayload{Result: TurnResultFromModel(p.Result), TricksWon: won}
	case model.MatchFinishedPayload:
		return MatchFinishedPayload{
			WinnerID:       string(p.WinnerID),
			VictoryType:    string(p.VictoryType),
			KoraMultiplier: p.KoraMultiplier,
			ConcededBy:     string(p.ConcededBy),
		}
	case model.MatchSettledPayload:
		return MatchSettledPayload{Transactions: TransactionsFromModel(p.Transactions)}
	case model.TurnExpiredPayload:
		return TurnExpiredPayload{ExpiredTurn: p.ExpiredTurn, Policy: string(p.Policy)}
	default:
		return nil
	}
}
