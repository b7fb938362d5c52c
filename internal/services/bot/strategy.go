package bot

import (
	"github.com/mcoot/koragame/internal/dependencies/random"
	"github.com/mcoot/koragame/internal/engine"
	"github.com/mcoot/koragame/internal/model"
)

// Strategy decides which card a bot plays. Implementations only ever pick
// from view.Legal(), so a strategy cannot produce an illegal move.
type Strategy interface {
	ChooseCard(view engine.PublicView) model.Card
}

// DefaultStrategies returns one strategy per difficulty tier
func DefaultStrategies(rnd random.Random) map[model.Difficulty]Strategy {
	return map[model.Difficulty]Strategy{
		model.DifficultyEasy:   NewEasyStrategy(rnd),
		model.DifficultyMedium: NewMediumStrategy(),
		model.DifficultyHard:   NewHardStrategy(),
	}
}

// ChooseCard picks a card for the given hand and demanded suit at a
// difficulty. The view supplies the public history the hard tier reads.
func ChooseCard(hand []model.Card, demanded *model.Suit, difficulty model.Difficulty, view engine.PublicView, rnd random.Random) (model.Card, error) {
	strategy, ok := DefaultStrategies(rnd)[difficulty]
	if !ok {
		return model.Card{}, model.ErrInvalidDifficulty
	}
	view.Hand = hand
	view.DemandedSuit = demanded
	return strategy.ChooseCard(view), nil
}

// EasyStrategy plays a uniformly random legal card
type EasyStrategy struct {
	random random.Random
}

// NewEasyStrategy creates an EasyStrategy drawing from rnd
func NewEasyStrategy(rnd random.Random) *EasyStrategy {
	return &EasyStrategy{random: rnd}
}

// ChooseCard picks any legal card at random. The view must hold at least
// one legal card.
func (s *EasyStrategy) ChooseCard(view engine.PublicView) model.Card {
	legal := view.Legal()
	return legal[s.random.Intn(len(legal))]
}

// MediumStrategy leads its lowest card and, when following, wins as
// cheaply as possible or throws away its lowest card
type MediumStrategy struct{}

// NewMediumStrategy creates a MediumStrategy
func NewMediumStrategy() *MediumStrategy {
	return &MediumStrategy{}
}

// ChooseCard follows with the lowest card that still takes the trick,
// otherwise plays its lowest legal card
func (s *MediumStrategy) ChooseCard(view engine.PublicView) model.Card {
	legal := view.Legal()
	if !view.IsLeading() {
		if c, ok := cheapestWinner(legal, *view.LeadCard); ok {
			return c
		}
	}
	return lowest(legal)
}

// HardStrategy remembers which suits the opponent has shown to be out of
// and leads into them, since an off-suit follower can never take the trick
type HardStrategy struct {
	fallback *MediumStrategy
}

// NewHardStrategy creates a HardStrategy
func NewHardStrategy() *HardStrategy {
	return &HardStrategy{fallback: NewMediumStrategy()}
}

// ChooseCard leads the lowest card in a suit the opponent is known to be
// void in, and plays like MediumStrategy in every other case
func (s *HardStrategy) ChooseCard(view engine.PublicView) model.Card {
	if view.IsLeading() {
		voids := engine.InferVoids(view.Plays, view.OpponentID)
		var safe []model.Card
		for _, c := range view.Legal() {
			if voids[c.Suit] {
				safe = append(safe, c)
			}
		}
		if len(safe) > 0 {
			return lowest(safe)
		}
	}
	return s.fallback.ChooseCard(view)
}

// cheapestWinner returns the lowest card that beats lead in its own suit
func cheapestWinner(cards []model.Card, lead model.Card) (model.Card, bool) {
	var best model.Card
	found := false
	for _, c := range cards {
		if c.Suit == lead.Suit && c.Rank > lead.Rank && (!found || c.Rank < best.Rank) {
			best, found = c, true
		}
	}
	return best, found
}

// lowest returns the lowest-ranked card, breaking ties by hand order
func lowest(cards []model.Card) model.Card {
	best := cards[0]
	for _, c := range cards[1:] {
		if c.Rank < best.Rank {
			best = c
		}
	}
	return best
}
