package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mcoot/koragame/internal/dependencies/clock"
	"github.com/mcoot/koragame/internal/dependencies/random"
	"github.com/mcoot/koragame/internal/engine"
	"github.com/mcoot/koragame/internal/model"
	"github.com/mcoot/koragame/internal/services/settlement"
	"github.com/mcoot/koragame/internal/storage"
)

const (
	// MatchIDAlphabet is the character set for generating match IDs
	MatchIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// MatchIDLength is the length of generated match IDs
	MatchIDLength = 12

	// maxConcedeAttempts bounds the retries when plays keep landing between
	// reading a match and writing its concession
	maxConcedeAttempts = 5
)

// Observer receives state-change events after they are committed.
// OnEvent is called synchronously and must not block.
type Observer interface {
	OnEvent(ctx context.Context, event model.Event)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(ctx context.Context, event model.Event)

// OnEvent calls f
func (f ObserverFunc) OnEvent(ctx context.Context, event model.Event) {
	f(ctx, event)
}

// PlayOutcome is the result of a submitted play
type PlayOutcome struct {
	Match        *model.Match
	Play         model.Play
	Result       *model.TurnResult   // Set when the play completed a trick
	Transactions []model.Transaction // Set when the play finished the match
	Duplicate    bool                // True when this was an idempotent resubmission
}

// Controller hosts the match state machine on the server. Every write goes
// through a conditional storage update keyed on the match's current turn.
type Controller struct {
	storage    storage.Storage
	settlement *settlement.Service
	clock      clock.Clock
	random     random.Random
	logger     *slog.Logger

	mu        sync.RWMutex
	observers []Observer
}

// NewController creates a new match Controller
func NewController(
	storage storage.Storage,
	settlement *settlement.Service,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage:    storage,
		settlement: settlement,
		clock:      clock,
		random:     random,
		logger:     logger.With(slog.String("component", "match-controller")),
	}
}

// Subscribe registers an observer for all future events
func (c *Controller) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Emit delivers an event to every observer
func (c *Controller) Emit(ctx context.Context, event model.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = c.clock.Now()
	}
	c.mu.RLock()
	observers := append([]Observer(nil), c.observers...)
	c.mu.RUnlock()
	for _, o := range observers {
		o.OnEvent(ctx, event)
	}
}

// CreateMatch opens a match that waits for a second player
func (c *Controller) CreateMatch(ctx context.Context, creator model.PlayerID, bet int64) (*model.Match, error) {
	if _, err := c.storage.GetPlayer(ctx, creator); err != nil {
		return nil, err
	}

	id := model.MatchID(c.random.String(MatchIDLength, MatchIDAlphabet))
	m, err := engine.NewMatch(id, creator, bet)
	if err != nil {
		return nil, err
	}
	now := c.clock.Now()
	m.CreatedAt = now
	m.UpdatedAt = now

	if err := c.storage.CreateMatch(ctx, &m); err != nil {
		c.logger.Error("failed to save match",
			slog.String("match_id", string(id)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	c.logger.Info("match created",
		slog.String("match_id", string(id)),
		slog.String("creator_id", string(creator)),
		slog.Int64("bet", bet),
	)
	c.Emit(ctx, model.Event{Type: model.EventMatchCreated, MatchID: id, PlayerID: creator})
	return &m, nil
}

// JoinMatch seats the second player and deals. An empty seed draws a fresh
// one; a supplied seed makes the deal reproducible.
func (c *Controller) JoinMatch(ctx context.Context, matchID model.MatchID, playerID model.PlayerID, seed string) (*model.Match, error) {
	if _, err := c.storage.GetPlayer(ctx, playerID); err != nil {
		return nil, err
	}
	m, err := c.storage.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	bound, err := engine.Bind(*m, playerID)
	if err != nil {
		return nil, err
	}
	if seed == "" {
		seed = c.random.Seed()
	}
	dealt, err := engine.DealMatch(bound, seed)
	if err != nil {
		return nil, err
	}
	now := c.clock.Now()
	dealt.TurnStartedAt = now
	dealt.UpdatedAt = now

	if err := c.storage.UpdateMatch(ctx, &dealt, model.MatchStatusWaiting, 0); err != nil {
		if errors.Is(err, model.ErrStaleTurn) {
			return nil, model.ErrMatchNotWaiting
		}
		return nil, err
	}

	c.logger.Info("match dealt",
		slog.String("match_id", string(matchID)),
		slog.String("player_1", string(dealt.Players[0])),
		slog.String("player_2", string(dealt.Players[1])),
	)
	c.Emit(ctx, model.Event{
		Type:     model.EventMatchDealt,
		MatchID:  matchID,
		PlayerID: playerID,
		Turn:     dealt.CurrentTurn,
		Payload: model.MatchDealtPayload{
			Players:         dealt.Players,
			CurrentPlayerID: dealt.CurrentPlayerID,
			BetAmount:       dealt.BetAmount,
		},
	})
	return &dealt, nil
}

// GetMatch retrieves a match by ID
func (c *Controller) GetMatch(ctx context.Context, matchID model.MatchID) (*model.Match, error) {
	return c.storage.GetMatch(ctx, matchID)
}

// ListMatches returns the matches a player is seated in, oldest first
func (c *Controller) ListMatches(ctx context.Context, playerID model.PlayerID) ([]*model.Match, error) {
	return c.storage.ListMatchesForPlayer(ctx, playerID)
}

// GetLog returns the authoritative record and ordered play log of a match
func (c *Controller) GetLog(ctx context.Context, matchID model.MatchID) (*model.MatchLog, error) {
	m, err := c.storage.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	plays, err := c.storage.GetPlays(ctx, matchID)
	if err != nil {
		return nil, err
	}
	results, err := c.storage.GetTurnResults(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return &model.MatchLog{Match: *m, Plays: plays, TurnResults: results}, nil
}

// GetView returns what the player may see of the match
func (c *Controller) GetView(ctx context.Context, matchID model.MatchID, playerID model.PlayerID) (*engine.PublicView, error) {
	m, err := c.storage.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.HasPlayer(playerID) {
		return nil, model.ErrNotInMatch
	}
	plays, err := c.storage.GetPlays(ctx, matchID)
	if err != nil {
		return nil, err
	}
	view := engine.NewPublicView(m, playerID, plays)
	return &view, nil
}

// SubmitPlay applies a card if expectedTurn is still the match's current
// turn. Resubmitting the play already accepted at expectedTurn returns the
// original outcome without appending anything.
func (c *Controller) SubmitPlay(ctx context.Context, matchID model.MatchID, playerID model.PlayerID, expectedTurn int, card model.Card) (*PlayOutcome, error) {
	m, err := c.storage.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	if expectedTurn < m.CurrentTurn {
		return c.resubmission(ctx, m, playerID, expectedTurn, card)
	}
	if m.IsFinished() {
		return nil, model.ErrMatchFinished
	}
	if expectedTurn > m.CurrentTurn {
		return nil, fmt.Errorf("%w: expected turn %d, match is at %d", model.ErrStaleTurn, expectedTurn, m.CurrentTurn)
	}

	now := c.clock.Now()
	next, play, result, err := engine.ApplyPlay(*m, playerID, card, now)
	if err != nil {
		return nil, err
	}
	next.UpdatedAt = now
	if !next.IsFinished() {
		next.TurnStartedAt = now
	}

	if err := c.storage.CommitPlay(ctx, &next, play, result, expectedTurn); err != nil {
		if errors.Is(err, model.ErrStaleTurn) {
			// Lost a race. The winner may have been our own retry.
			latest, getErr := c.storage.GetMatch(ctx, matchID)
			if getErr != nil {
				return nil, getErr
			}
			return c.resubmission(ctx, latest, playerID, expectedTurn, card)
		}
		return nil, err
	}

	outcome := &PlayOutcome{Match: &next, Play: play, Result: result}
	c.publishPlay(ctx, &next, play, result)
	if next.IsFinished() {
		outcome.Transactions = c.finish(ctx, &next)
	}
	return outcome, nil
}

// resubmission answers a play for a turn that has already been taken
func (c *Controller) resubmission(ctx context.Context, m *model.Match, playerID model.PlayerID, turn int, card model.Card) (*PlayOutcome, error) {
	existing, err := c.storage.GetPlay(ctx, m.ID, turn)
	if err != nil {
		if errors.Is(err, model.ErrPlayNotFound) {
			if m.IsFinished() {
				return nil, model.ErrMatchFinished
			}
			return nil, model.ErrStaleTurn
		}
		return nil, err
	}
	if existing.PlayerID != playerID || existing.Card != card {
		if m.IsFinished() {
			return nil, model.ErrMatchFinished
		}
		return nil, fmt.Errorf("%w: turn %d was already played", model.ErrStaleTurn, turn)
	}

	outcome := &PlayOutcome{Match: m, Play: *existing, Duplicate: true}
	results, err := c.storage.GetTurnResults(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	for i := range results {
		if results[i].Turn == turn {
			outcome.Result = &results[i]
			break
		}
	}
	if m.IsFinished() && turn == m.CurrentTurn-1 {
		// The final play may be retried after a settlement failure
		outcome.Transactions = c.settlePending(ctx, m)
	}

	c.logger.Debug("duplicate play submission",
		slog.String("match_id", string(m.ID)),
		slog.String("player_id", string(playerID)),
		slog.Int("turn", turn),
	)
	return outcome, nil
}

// Concede ends the match in the opponent's favour
func (c *Controller) Concede(ctx context.Context, matchID model.MatchID, playerID model.PlayerID) (*model.Match, []model.Transaction, error) {
	for range maxConcedeAttempts {
		m, err := c.storage.GetMatch(ctx, matchID)
		if err != nil {
			return nil, nil, err
		}
		next, err := engine.Concede(*m, playerID)
		if errors.Is(err, model.ErrMatchFinished) && m.HasPlayer(playerID) {
			c.settlePending(ctx, m)
		}
		if err != nil {
			return nil, nil, err
		}
		next.UpdatedAt = c.clock.Now()

		err = c.storage.UpdateMatch(ctx, &next, m.Status, m.CurrentTurn)
		if errors.Is(err, model.ErrStaleTurn) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		c.logger.Info("match conceded",
			slog.String("match_id", string(matchID)),
			slog.String("player_id", string(playerID)),
			slog.Int("turn", next.CurrentTurn),
		)
		return &next, c.finish(ctx, &next), nil
	}
	return nil, nil, model.ErrStaleTurn
}

// Forfeit ends the match against a player whose turn timed out. It only
// applies while the match is still at expectedTurn, so it can never override
// a play that arrived just before the deadline fired.
func (c *Controller) Forfeit(ctx context.Context, matchID model.MatchID, playerID model.PlayerID, expectedTurn int) (*model.Match, []model.Transaction, error) {
	m, err := c.storage.GetMatch(ctx, matchID)
	if err != nil {
		return nil, nil, err
	}
	if m.IsFinished() {
		c.settlePending(ctx, m)
		return nil, nil, model.ErrMatchFinished
	}
	if m.CurrentTurn != expectedTurn {
		return nil, nil, model.ErrStaleTurn
	}
	next, err := engine.Forfeit(*m, playerID)
	if err != nil {
		return nil, nil, err
	}
	next.UpdatedAt = c.clock.Now()

	if err := c.storage.UpdateMatch(ctx, &next, m.Status, expectedTurn); err != nil {
		return nil, nil, err
	}

	c.logger.Info("match forfeited on timeout",
		slog.String("match_id", string(matchID)),
		slog.String("player_id", string(playerID)),
		slog.Int("turn", expectedTurn),
	)
	return &next, c.finish(ctx, &next), nil
}

// VerifyMatch replays the stored log from the seed and checks it reproduces
// the stored record
func (c *Controller) VerifyMatch(ctx context.Context, matchID model.MatchID) error {
	log, err := c.GetLog(ctx, matchID)
	if err != nil {
		return err
	}
	if log.Match.Status == model.MatchStatusWaiting {
		return model.ErrMatchNotDealt
	}
	if err := engine.Verify(*log); err != nil {
		c.logger.Error("match log does not replay",
			slog.String("match_id", string(matchID)),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// Transactions returns the ledger entries for a match. A finished match
// whose settlement failed earlier is settled first.
func (c *Controller) Transactions(ctx context.Context, matchID model.MatchID) ([]model.Transaction, error) {
	m, err := c.storage.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	txs, err := c.settlement.ForMatch(ctx, matchID)
	if err != nil || len(txs) > 0 || !m.IsFinished() {
		return txs, err
	}
	return c.settle(ctx, m), nil
}

// finish announces the result of a match and settles it
func (c *Controller) finish(ctx context.Context, m *model.Match) []model.Transaction {
	c.logger.Info("match finished",
		slog.String("match_id", string(m.ID)),
		slog.String("winner_id", string(m.WinnerID)),
		slog.String("victory_type", string(m.VictoryType)),
		slog.Int("multiplier", m.KoraMultiplier),
	)
	c.Emit(ctx, model.Event{
		Type:     model.EventMatchFinished,
		MatchID:  m.ID,
		PlayerID: m.WinnerID,
		Turn:     m.CurrentTurn,
		Payload: model.MatchFinishedPayload{
			WinnerID:       m.WinnerID,
			VictoryType:    m.VictoryType,
			KoraMultiplier: m.KoraMultiplier,
			ConcededBy:     m.ConcededBy,
		},
	})

	return c.settle(ctx, m)
}

// settlePending settles a finished match that has nothing in the ledger yet
func (c *Controller) settlePending(ctx context.Context, m *model.Match) []model.Transaction {
	if !m.IsFinished() {
		return nil
	}
	txs, err := c.settlement.ForMatch(ctx, m.ID)
	if err != nil {
		c.logger.Warn("could not read match settlement",
			slog.String("match_id", string(m.ID)),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if len(txs) > 0 {
		return txs
	}
	return c.settle(ctx, m)
}

// settle records the match payout and announces it. On failure the match
// stays finished and unsettled until a later call retries.
func (c *Controller) settle(ctx context.Context, m *model.Match) []model.Transaction {
	txs, err := c.settlement.Settle(ctx, m)
	if err != nil {
		c.logger.Warn("match finished but settlement failed",
			slog.String("match_id", string(m.ID)),
			slog.Int("turn", m.CurrentTurn),
			slog.String("error", err.Error()),
		)
		return nil
	}
	c.Emit(ctx, model.Event{
		Type:    model.EventMatchSettled,
		MatchID: m.ID,
		Turn:    m.CurrentTurn,
		Payload: model.MatchSettledPayload{Transactions: txs},
	})
	return txs
}

func (c *Controller) publishPlay(ctx context.Context, m *model.Match, play model.Play, result *model.TurnResult) {
	c.Emit(ctx, model.Event{
		Type:     model.EventPlayAccepted,
		MatchID:  m.ID,
		PlayerID: play.PlayerID,
		Turn:     m.CurrentTurn,
		Payload: model.PlayAcceptedPayload{
			Play:            play,
			CurrentPlayerID: m.CurrentPlayerID,
			DemandedSuit:    m.DemandedSuit,
		},
	})
	if result == nil {
		return
	}
	c.logger.Info("trick resolved",
		slog.String("match_id", string(m.ID)),
		slog.Int("turn", result.Turn),
		slog.String("winner_id", string(result.WinnerID)),
		slog.String("winning_card", result.WinningCard.String()),
	)
	c.Emit(ctx, model.Event{
		Type:     model.EventTrickResolved,
		MatchID:  m.ID,
		PlayerID: result.WinnerID,
		Turn:     m.CurrentTurn,
		Payload: model.TrickResolvedPayload{
			Result: *result,
			TricksWon: map[model.PlayerID]int{
				m.Players[0]: m.TricksWon[0],
				m.Players[1]: m.TricksWon[1],
			},
		},
	})
}
