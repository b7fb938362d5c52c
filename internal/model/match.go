package model

import "time"

// MatchID uniquely identifies a match
type MatchID string

// MatchStatus is the lifecycle phase of a match
type MatchStatus string

const (
	MatchStatusWaiting  MatchStatus = "waiting"  // Created, waiting for a second player
	MatchStatusDealt    MatchStatus = "dealt"    // Hands dealt, no card played yet
	MatchStatusPlaying  MatchStatus = "playing"  // At least one card accepted
	MatchStatusFinished MatchStatus = "finished" // Terminal
)

// VictoryType describes how a finished match was won
type VictoryType string

const (
	VictoryKoraSimple VictoryType = "kora-simple" // 3 of 5 tricks
	VictoryKoraDouble VictoryType = "kora-double" // 4 of 5 tricks
	VictoryKoraTriple VictoryType = "kora-triple" // all 5 tricks
	VictoryConcession VictoryType = "concession"  // forfeit by concession or timeout
)

const (
	// HandSize is the number of cards dealt to each player
	HandSize = 5
	// TricksPerMatch is the number of tricks in a non-conceded match
	TricksPerMatch = HandSize
	// SeatCount is the number of players in a match
	SeatCount = 2
)

// Match is the aggregate root of a single wagered game between two players.
// Seat 0 is the designated first player: it receives the first dealt card and
// leads the first trick.
type Match struct {
	ID        MatchID
	Players   [SeatCount]PlayerID // Players[1] is empty while waiting
	BetAmount int64
	Seed      string // Shuffle seed, set when dealt

	Status          MatchStatus
	CurrentTurn     int // Optimistic-concurrency token, +1 per accepted play
	CurrentPlayerID PlayerID

	// DemandedSuit is non-nil only between the first and second card of a trick
	DemandedSuit *Suit
	// TrickLead is the first play of the trick in progress
	TrickLead *Play

	Hands     [SeatCount][]Card
	TricksWon [SeatCount]int

	WinnerID       PlayerID
	VictoryType    VictoryType
	KoraMultiplier int
	ConcededBy     PlayerID // Empty unless finished by forfeit

	TurnStartedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Seat returns the seat index of the player, or -1 if not in this match
func (m *Match) Seat(playerID PlayerID) int {
	if playerID == "" {
		return -1
	}
	for i, p := range m.Players {
		if p == playerID {
			return i
		}
	}
	return -1
}

// HasPlayer returns true if the player occupies a seat in this match
func (m *Match) HasPlayer(playerID PlayerID) bool {
	return m.Seat(playerID) >= 0
}

// Opponent returns the other player in the match
func (m *Match) Opponent(playerID PlayerID) PlayerID {
	switch m.Seat(playerID) {
	case 0:
		return m.Players[1]
	case 1:
		return m.Players[0]
	default:
		return ""
	}
}

// Hand returns the cards currently held by the player
func (m *Match) Hand(playerID PlayerID) []Card {
	seat := m.Seat(playerID)
	if seat < 0 {
		return nil
	}
	return m.Hands[seat]
}

// TricksWonBy returns the number of tricks the player has taken
func (m *Match) TricksWonBy(playerID PlayerID) int {
	seat := m.Seat(playerID)
	if seat < 0 {
		return 0
	}
	return m.TricksWon[seat]
}

// IsFinished returns true once the match has reached its terminal state
func (m *Match) IsFinished() bool {
	return m.Status == MatchStatusFinished
}

// IsActive returns true while cards may be played
func (m *Match) IsActive() bool {
	return m.Status == MatchStatusDealt || m.Status == MatchStatusPlaying
}

// Clone returns a deep copy that shares no mutable state with m
func (m *Match) Clone() Match {
	c := *m
	for i := range m.Hands {
		if m.Hands[i] != nil {
			c.Hands[i] = append([]Card(nil), m.Hands[i]...)
		}
	}
	if m.DemandedSuit != nil {
		s := *m.DemandedSuit
		c.DemandedSuit = &s
	}
	if m.TrickLead != nil {
		p := *m.TrickLead
		c.TrickLead = &p
	}
	return c
}

// Play is an accepted card, immutable once appended to the match log
type Play struct {
	MatchID  MatchID
	Turn     int
	PlayerID PlayerID
	Card     Card
	PlayedAt time.Time
}

// TurnResult records the outcome of one completed trick. Turn is the turn of
// the trick's second play.
type TurnResult struct {
	MatchID     MatchID
	Turn        int
	WinnerID    PlayerID
	WinningCard Card
	LoserID     PlayerID
	LosingCard  Card
}

// MatchLog is the authoritative record needed to re-derive a match:
// the match record itself plus its ordered play log
type MatchLog struct {
	Match       Match
	Plays       []Play
	TurnResults []TurnResult
}

// TimeoutPolicy decides what happens when a player's turn timer expires
type TimeoutPolicy string

const (
	TimeoutAutoplay TimeoutPolicy = "autoplay" // Play a random legal card for them
	TimeoutForfeit  TimeoutPolicy = "forfeit"  // End the match as a concession
)

// IsValid returns true for the known policies
func (p TimeoutPolicy) IsValid() bool {
	return p == TimeoutAutoplay || p == TimeoutForfeit
}
