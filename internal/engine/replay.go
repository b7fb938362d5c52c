package engine

import (
	"fmt"
	"slices"

	"github.com/mcoot/koragame/internal/model"
)

// Replay folds the ordered play log over a dealt match. Turns must run
// contiguously from zero. Any gap, duplicate or rejected play means the log
// cannot have been produced by the engine and is reported as
// ErrReplayDivergence.
func Replay(dealt model.Match, plays []model.Play) (model.Match, []model.TurnResult, error) {
	if dealt.Status != model.MatchStatusDealt || dealt.CurrentTurn != 0 {
		return dealt, nil, fmt.Errorf("%w: replay must start from a fresh deal (status %s, turn %d)",
			model.ErrReplayDivergence, dealt.Status, dealt.CurrentTurn)
	}

	m := dealt
	var results []model.TurnResult
	for i, p := range plays {
		if p.Turn != i {
			return m, results, fmt.Errorf("%w: expected turn %d, found %d", model.ErrReplayDivergence, i, p.Turn)
		}
		if p.MatchID != dealt.ID {
			return m, results, fmt.Errorf("%w: play %d belongs to match %s", model.ErrReplayDivergence, i, p.MatchID)
		}
		next, _, result, err := ApplyPlay(m, p.PlayerID, p.Card, p.PlayedAt)
		if err != nil {
			return m, results, fmt.Errorf("%w: turn %d: %w", model.ErrReplayDivergence, i, err)
		}
		m = next
		if result != nil {
			results = append(results, *result)
		}
	}
	return m, results, nil
}

// Rebuild re-derives a match from its log: the header fields of the stored
// record, a fresh deal from its seed, the plays, and a trailing concession if
// the record ended in one.
func Rebuild(log model.MatchLog) (model.Match, []model.TurnResult, error) {
	header := log.Match
	base, err := NewMatch(header.ID, header.Players[0], header.BetAmount)
	if err != nil {
		return model.Match{}, nil, fmt.Errorf("%w: %w", model.ErrReplayDivergence, err)
	}
	base, err = Bind(base, header.Players[1])
	if err != nil {
		return model.Match{}, nil, fmt.Errorf("%w: %w", model.ErrReplayDivergence, err)
	}
	dealt, err := DealMatch(base, header.Seed)
	if err != nil {
		return model.Match{}, nil, fmt.Errorf("%w: %w", model.ErrReplayDivergence, err)
	}

	m, results, err := Replay(dealt, log.Plays)
	if err != nil {
		return m, results, err
	}
	if header.ConcededBy != "" && !m.IsFinished() {
		if m, err = Concede(m, header.ConcededBy); err != nil {
			return m, results, fmt.Errorf("%w: %w", model.ErrReplayDivergence, err)
		}
	}
	return m, results, nil
}

// Verify rebuilds the match from its log and checks that the result agrees
// with the stored record and the stored turn results
func Verify(log model.MatchLog) error {
	rebuilt, results, err := Rebuild(log)
	if err != nil {
		return err
	}
	if diff := Diff(rebuilt, log.Match); diff != "" {
		return fmt.Errorf("%w: %s", model.ErrReplayDivergence, diff)
	}
	if len(results) != len(log.TurnResults) {
		return fmt.Errorf("%w: %d stored turn results, replay produced %d",
			model.ErrReplayDivergence, len(log.TurnResults), len(results))
	}
	for i := range results {
		if results[i] != log.TurnResults[i] {
			return fmt.Errorf("%w: turn result %d differs", model.ErrReplayDivergence, i)
		}
	}
	return nil
}

// Diff compares the gameplay state of two matches, ignoring timestamps.
// It returns an empty string when they agree.
func Diff(a, b model.Match) string {
	switch {
	case a.ID != b.ID:
		return fmt.Sprintf("match id %s != %s", a.ID, b.ID)
	case a.Players != b.Players:
		return "players differ"
	case a.Status != b.Status:
		return fmt.Sprintf("status %s != %s", a.Status, b.Status)
	case a.CurrentTurn != b.CurrentTurn:
		return fmt.Sprintf("current turn %d != %d", a.CurrentTurn, b.CurrentTurn)
	case a.CurrentPlayerID != b.CurrentPlayerID:
		return fmt.Sprintf("current player %s != %s", a.CurrentPlayerID, b.CurrentPlayerID)
	case !sameSuit(a.DemandedSuit, b.DemandedSuit):
		return "demanded suit differs"
	case a.TricksWon != b.TricksWon:
		return fmt.Sprintf("tricks won %v != %v", a.TricksWon, b.TricksWon)
	case !slices.Equal(a.Hands[0], b.Hands[0]) || !slices.Equal(a.Hands[1], b.Hands[1]):
		return "hands differ"
	case a.WinnerID != b.WinnerID:
		return fmt.Sprintf("winner %s != %s", a.WinnerID, b.WinnerID)
	case a.VictoryType != b.VictoryType:
		return fmt.Sprintf("victory type %s != %s", a.VictoryType, b.VictoryType)
	case a.KoraMultiplier != b.KoraMultiplier:
		return fmt.Sprintf("multiplier %d != %d", a.KoraMultiplier, b.KoraMultiplier)
	}
	return ""
}

func sameSuit(a, b *model.Suit) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
