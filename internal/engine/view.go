package engine

import "github.com/mcoot/koragame/internal/model"

// PublicView is what a player may legitimately know when choosing a card:
// their own hand, the trick in progress and every card already played
type PublicView struct {
	PlayerID     model.PlayerID
	OpponentID   model.PlayerID
	Hand         []model.Card
	DemandedSuit *model.Suit
	LeadCard     *model.Card // opponent's card when following, nil when leading
	Plays        []model.Play
}

// NewPublicView builds the view of the match for one player
func NewPublicView(m *model.Match, playerID model.PlayerID, plays []model.Play) PublicView {
	v := PublicView{
		PlayerID:   playerID,
		OpponentID: m.Opponent(playerID),
		Hand:       append([]model.Card(nil), m.Hand(playerID)...),
		Plays:      plays,
	}
	if m.DemandedSuit != nil {
		s := *m.DemandedSuit
		v.DemandedSuit = &s
	}
	if m.TrickLead != nil {
		c := m.TrickLead.Card
		v.LeadCard = &c
	}
	return v
}

// Legal returns the cards the viewing player may play
func (v PublicView) Legal() []model.Card {
	return LegalCards(v.Hand, v.DemandedSuit)
}

// IsLeading returns true when the viewing player opens the trick
func (v PublicView) IsLeading() bool {
	return v.LeadCard == nil
}

// InferVoids returns the suits the player has shown they no longer hold:
// every trick where they followed off-suit reveals a void in the led suit.
// Hands never regain cards, so a revealed void lasts for the whole match.
func InferVoids(plays []model.Play, playerID model.PlayerID) map[model.Suit]bool {
	voids := make(map[model.Suit]bool)
	for i := 1; i < len(plays); i += 2 {
		lead, follow := plays[i-1], plays[i]
		if follow.PlayerID == playerID && follow.Card.Suit != lead.Card.Suit {
			voids[lead.Card.Suit] = true
		}
	}
	return voids
}
