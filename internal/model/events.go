package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	EventMatchCreated  EventType = "match_created"
	EventMatchDealt    EventType = "match_dealt"
	EventPlayAccepted  EventType = "play_accepted"
	EventTrickResolved EventType = "trick_resolved"
	EventMatchFinished EventType = "match_finished"
	EventMatchSettled  EventType = "match_settled"
	EventTurnExpired   EventType = "turn_expired"
)

// Event is a state change emitted by the match controller. Delivery order
// across clients is best effort; clients reconcile through the play log.
type Event struct {
	Type      EventType
	Timestamp time.Time
	MatchID   MatchID
	PlayerID  PlayerID // The player who triggered or is affected
	Turn      int      // Match CurrentTurn after the change
	Payload   any      // Type-specific data
}

// MatchDealtPayload contains data for match dealt events
type MatchDealtPayload struct {
	Players         [SeatCount]PlayerID
	CurrentPlayerID PlayerID
	BetAmount       int64
}

// PlayAcceptedPayload contains data for play accepted events
type PlayAcceptedPayload struct {
	Play            Play
	CurrentPlayerID PlayerID
	DemandedSuit    *Suit
}

// TrickResolvedPayload contains data for trick resolved events
type TrickResolvedPayload struct {
	Result    TurnResult
	TricksWon map[PlayerID]int
}

// MatchFinishedPayload contains data for match finished events
type MatchFinishedPayload struct {
	WinnerID       PlayerID
	VictoryType    VictoryType
	KoraMultiplier int
	ConcededBy     PlayerID
}

// MatchSettledPayload contains data for match settled events
type MatchSettledPayload struct {
	Transactions []Transaction
}

// TurnExpiredPayload contains data for turn expired events
type TurnExpiredPayload struct {
	ExpiredTurn int
	Policy      TimeoutPolicy
}
