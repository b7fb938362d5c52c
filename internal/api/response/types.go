package response

import (
	"time"

	"github.com/mcoot/koragame/internal/engine"
	"github.com/mcoot/koragame/internal/model"
)

// Player represents a player in API responses
type Player struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	IsGuest       bool   `json:"is_guest"`
	IsBot         bool   `json:"is_bot,omitempty"`
	BotDifficulty string `json:"bot_difficulty,omitempty"`
}

// PlayerFromModel converts a model.Player to a response Player
func PlayerFromModel(p *model.Player) Player {
	return Player{
		ID:            string(p.ID),
		DisplayName:   p.DisplayName,
		IsGuest:       p.IsGuest,
		IsBot:         p.IsBot,
		BotDifficulty: string(p.BotDifficulty),
	}
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	Player       Player    `json:"player"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *model.Session) AuthResponse {
	return AuthResponse{
		Player:       PlayerFromModel(&s.Player),
		SessionToken: s.Token,
		ExpiresAt:    s.ExpiresAt,
	}
}

// Transaction is a ledger entry
type Transaction struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"match_id"`
	PlayerID  string    `json:"player_id"`
	Amount    int64     `json:"amount"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// TransactionsFromModel converts ledger entries
func TransactionsFromModel(txs []model.Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	for i, tx := range txs {
		out[i] = Transaction{
			ID:        tx.ID,
			MatchID:   string(tx.MatchID),
			PlayerID:  string(tx.PlayerID),
			Amount:    tx.Amount,
			Type:      string(tx.Type),
			CreatedAt: tx.CreatedAt,
		}
	}
	return out
}

// BalanceResponse is a player's net result across settled matches
type BalanceResponse struct {
	PlayerID     string        `json:"player_id"`
	Balance      int64         `json:"balance"`
	Transactions []Transaction `json:"transactions"`
}

// Play is an accepted card
type Play struct {
	MatchID  string    `json:"match_id"`
	Turn     int       `json:"turn"`
	PlayerID string    `json:"player_id"`
	Card     string    `json:"card"`
	PlayedAt time.Time `json:"played_at"`
}

// PlayFromModel converts a model.Play
func PlayFromModel(p model.Play) Play {
	return Play{
		MatchID:  string(p.MatchID),
		Turn:     p.Turn,
		PlayerID: string(p.PlayerID),
		Card:     p.Card.String(),
		PlayedAt: p.PlayedAt,
	}
}

// PlaysFromModel converts a play log
func PlaysFromModel(plays []model.Play) []Play {
	out := make([]Play, len(plays))
	for i, p := range plays {
		out[i] = PlayFromModel(p)
	}
	return out
}

// ToModel parses the play back into a model.Play
func (p Play) ToModel() (model.Play, error) {
	c, err := model.ParseCard(p.Card)
	if err != nil {
		return model.Play{}, err
	}
	return model.Play{
		MatchID:  model.MatchID(p.MatchID),
		Turn:     p.Turn,
		PlayerID: model.PlayerID(p.PlayerID),
		Card:     c,
		PlayedAt: p.PlayedAt,
	}, nil
}

// TurnResult is the outcome of a completed trick
type TurnResult struct {
	MatchID     string `json:"match_id"`
	Turn        int    `json:"turn"`
	WinnerID    string `json:"winner_id"`
	WinningCard string `json:"winning_card"`
	LoserID     string `json:"loser_id"`
	LosingCard  string `json:"losing_card"`
}

// TurnResultFromModel converts a model.TurnResult
func TurnResultFromModel(r model.TurnResult) TurnResult {
	return TurnResult{
		MatchID:     string(r.MatchID),
		Turn:        r.Turn,
		WinnerID:    string(r.WinnerID),
		WinningCard: r.WinningCard.String(),
		LoserID:     string(r.LoserID),
		LosingCard:  r.LosingCard.String(),
	}
}

// ToModel parses the result back into a model.TurnResult
func (r TurnResult) ToModel() (model.TurnResult, error) {
	winning, err := model.ParseCard(r.WinningCard)
	if err != nil {
		return model.TurnResult{}, err
	}
	losing, err := model.ParseCard(r.LosingCard)
	if err != nil {
		return model.TurnResult{}, err
	}
	return model.TurnResult{
		MatchID:     model.MatchID(r.MatchID),
		Turn:        r.Turn,
		WinnerID:    model.PlayerID(r.WinnerID),
		WinningCard: winning,
		LoserID:     model.PlayerID(r.LoserID),
		LosingCard:  losing,
	}, nil
}

// Match is a match as seen by one viewer. While the match is in progress
// only the viewer's own hand is included and the seed is withheld, since
// the seed determines both hands.
type Match struct {
	ID              string                  `json:"id"`
	Players         [model.SeatCount]string `json:"players"`
	BetAmount       int64                   `json:"bet_amount"`
	Seed            string                  `json:"seed,omitempty"`
	Status          string                  `json:"status"`
	CurrentTurn     int                     `json:"current_turn"`
	CurrentPlayerID string                  `json:"current_player_id,omitempty"`
	DemandedSuit    string                  `json:"demanded_suit,omitempty"`
	TrickLead       *Play                   `json:"trick_lead,omitempty"`

	Hands      [model.SeatCount][]string `json:"hands"`
	HandSizes  [model.SeatCount]int      `json:"hand_sizes"`
	LegalCards []string                  `json:"legal_cards,omitempty"`
	TricksWon  [model.SeatCount]int      `json:"tricks_won"`

	WinnerID       string `json:"winner_id,omitempty"`
	VictoryType    string `json:"victory_type,omitempty"`
	KoraMultiplier int    `json:"kora_multiplier"`
	ConcededBy     string `json:"conceded_by,omitempty"`

	TurnStartedAt time.Time  `json:"turn_started_at"`
	TurnDeadline  *time.Time `json:"turn_deadline,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// MatchFromModel converts a match for the given viewer
func MatchFromModel(m *model.Match, viewer model.PlayerID) Match {
	resp := Match{
		ID:              string(m.ID),
		BetAmount:       m.BetAmount,
		Status:          string(m.Status),
		CurrentTurn:     m.CurrentTurn,
		CurrentPlayerID: string(m.CurrentPlayerID),
		TricksWon:       m.TricksWon,
		WinnerID:        string(m.WinnerID),
		VictoryType:     string(m.VictoryType),
		KoraMultiplier:  m.KoraMultiplier,
		ConcededBy:      string(m.ConcededBy),
		TurnStartedAt:   m.TurnStartedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	for i, p := range m.Players {
		resp.Players[i] = string(p)
	}
	if m.DemandedSuit != nil {
		resp.DemandedSuit = string(*m.DemandedSuit)
	}
	if m.TrickLead != nil {
		lead := PlayFromModel(*m.TrickLead)
		resp.TrickLead = &lead
	}

	finished := m.IsFinished()
	if finished {
		resp.Seed = m.Seed
	}
	for seat, hand := range m.Hands {
		resp.HandSizes[seat] = len(hand)
		if finished || (viewer != "" && m.Players[seat] == viewer) {
			resp.Hands[seat] = CardStrings(hand)
		}
	}
	if m.IsActive() && viewer != "" && m.CurrentPlayerID == viewer {
		resp.LegalCards = CardStrings(engine.LegalCards(m.Hand(viewer), m.DemandedSuit))
	}
	return resp
}

// ToModel rebuilds a model.Match from the response. Hands that were
// withheld come back empty.
func (m Match) ToModel() (model.Match, error) {
	out := model.Match{
		ID:              model.MatchID(m.ID),
		BetAmount:       m.BetAmount,
		Seed:            m.Seed,
		Status:          model.MatchStatus(m.Status),
		CurrentTurn:     m.CurrentTurn,
		CurrentPlayerID: model.PlayerID(m.CurrentPlayerID),
		TricksWon:       m.TricksWon,
		WinnerID:        model.PlayerID(m.WinnerID),
		VictoryType:     model.VictoryType(m.VictoryType),
		KoraMultiplier:  m.KoraMultiplier,
		ConcededBy:      model.PlayerID(m.ConcededBy),
		TurnStartedAt:   m.TurnStartedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	for i, p := range m.Players {
		out.Players[i] = model.PlayerID(p)
	}
	if m.DemandedSuit != "" {
		suit, err := model.ParseSuit(m.DemandedSuit)
		if err != nil {
			return model.Match{}, err
		}
		out.DemandedSuit = &suit
	}
	if m.TrickLead != nil {
		lead, err := m.TrickLead.ToModel()
		if err != nil {
			return model.Match{}, err
		}
		out.TrickLead = &lead
	}
	for seat, hand := range m.Hands {
		if hand == nil {
			continue
		}
		cards, err := ParseCards(hand)
		if err != nil {
			return model.Match{}, err
		}
		out.Hands[seat] = cards
	}
	return out, nil
}

// MatchLog is the record and play log of a match as seen by one viewer
type MatchLog struct {
	Match       Match        `json:"match"`
	Plays       []Play       `json:"plays"`
	TurnResults []TurnResult `json:"turn_results"`
}

// MatchLogFromModel converts a match log for the given viewer
func MatchLogFromModel(log *model.MatchLog, viewer model.PlayerID) MatchLog {
	results := make([]TurnResult, len(log.TurnResults))
	for i, r := range log.TurnResults {
		results[i] = TurnResultFromModel(r)
	}
	return MatchLog{
		Match:       MatchFromModel(&log.Match, viewer),
		Plays:       PlaysFromModel(log.Plays),
		TurnResults: results,
	}
}

// ToModel rebuilds a model.MatchLog from the response
func (l MatchLog) ToModel() (*model.MatchLog, error) {
	m, err := l.Match.ToModel()
	if err != nil {
		return nil, err
	}
	out := &model.MatchLog{Match: m}
	for _, p := range l.Plays {
		play, err := p.ToModel()
		if err != nil {
			return nil, err
		}
		out.Plays = append(out.Plays, play)
	}
	for _, r := range l.TurnResults {
		result, err := r.ToModel()
		if err != nil {
			return nil, err
		}
		out.TurnResults = append(out.TurnResults, result)
	}
	return out, nil
}

// PlayResponse is the response to a submitted card. Match reflects any
// bot replies that followed the play.
type PlayResponse struct {
	Match        Match         `json:"match"`
	Play         Play          `json:"play"`
	Result       *TurnResult   `json:"result,omitempty"`
	Duplicate    bool          `json:"duplicate,omitempty"`
	Transactions []Transaction `json:"transactions,omitempty"`
}

// ConcedeResponse is the response to a concession
type ConcedeResponse struct {
	Match        Match         `json:"match"`
	Transactions []Transaction `json:"transactions"`
}

// VerifyResponse reports a successful replay of the match log
type VerifyResponse struct {
	MatchID  string `json:"match_id"`
	Verified bool   `json:"verified"`
	Plays    int    `json:"plays"`
}

// CardStrings formats cards in their short form
func CardStrings(cards []model.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}

// ParseCards parses short-form cards
func ParseCards(names []string) ([]model.Card, error) {
	out := make([]model.Card, len(names))
	for i, n := range names {
		c, err := model.ParseCard(n)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}
