// Package replica keeps a client's copy of one match. Local plays show up
// immediately in the predicted state and are queued until the server
// confirms them; the confirmed state only ever comes from the server.
package replica

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mcoot/koragame/internal/dependencies/clock"
	"github.com/mcoot/koragame/internal/engine"
	"github.com/mcoot/koragame/internal/model"
)

// Server is the authoritative side of a match as seen by one player
type Server interface {
	GetLog(ctx context.Context, matchID model.MatchID) (*model.MatchLog, error)
	SubmitPlay(ctx context.Context, matchID model.MatchID, expectedTurn int, card model.Card) (*model.Match, error)
}

// Config controls how Flush retries transient submission failures
type Config struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      uint64
}

// DefaultConfig returns the default retry settings
func DefaultConfig() Config {
	return Config{
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxRetries:      5,
	}
}

// PendingPlay is a local play that still needs to sync with the server
type PendingPlay struct {
	Turn     int
	Card     model.Card
	PlayedAt time.Time
}

// Replica is a client-side copy of a match for one player
type Replica struct {
	server   Server
	matchID  model.MatchID
	playerID model.PlayerID
	clock    clock.Clock
	config   Config
	logger   *slog.Logger

	mu        sync.Mutex
	confirmed model.Match
	plays     []model.Play
	pending   []PendingPlay
}

// New creates a Replica. Call Reconcile before the first Play.
func New(server Server, matchID model.MatchID, playerID model.PlayerID, clk clock.Clock, config Config, logger *slog.Logger) *Replica {
	return &Replica{
		server:   server,
		matchID:  matchID,
		playerID: playerID,
		clock:    clk,
		config:   config,
		logger: logger.With(
			slog.String("component", "replica"),
			slog.String("match_id", string(matchID)),
		),
	}
}

// Confirmed returns the last state received from the server
func (r *Replica) Confirmed() model.Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.confirmed.Clone()
}

// ConfirmedPlays returns the server's play log as last fetched
func (r *Replica) ConfirmedPlays() []model.Play {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Play(nil), r.plays...)
}

// Pending returns the plays that still need to sync, in order
func (r *Replica) Pending() []PendingPlay {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PendingPlay(nil), r.pending...)
}

// Predicted returns the confirmed state with every pending play applied
func (r *Replica) Predicted() model.Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, _ := r.predictLocked()
	return m
}

// predictLocked folds the pending queue over the confirmed state. It stops
// at the first pending play that no longer applies and reports how many did.
func (r *Replica) predictLocked() (model.Match, int) {
	m := r.confirmed.Clone()
	for i, p := range r.pending {
		next, _, _, err := engine.ApplyPlay(m, r.playerID, p.Card, p.PlayedAt)
		if err != nil {
			return m, i
		}
		m = next
	}
	return m, len(r.pending)
}

// Play applies a card to the predicted state and queues it for sync.
// A move the engine rejects is returned as an error and nothing is queued.
func (r *Replica) Play(card model.Card) (model.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	predicted, _ := r.predictLocked()
	now := r.clock.Now()
	next, _, _, err := engine.ApplyPlay(predicted, r.playerID, card, now)
	if err != nil {
		return predicted, err
	}
	r.pending = append(r.pending, PendingPlay{Turn: predicted.CurrentTurn, Card: card, PlayedAt: now})
	return next, nil
}

// Flush submits every pending play in order. Transient failures are retried
// with the same expected turn, which the server treats idempotently. If the
// server rejects a play the speculative queue is dropped and the replica
// re-derives its state from the server log.
func (r *Replica) Flush(ctx context.Context) error {
	for {
		r.mu.Lock()
		if len(r.pending) == 0 {
			r.mu.Unlock()
			break
		}
		next := r.pending[0]
		r.mu.Unlock()

		err := r.submit(ctx, next)
		if err != nil {
			if isRejection(err) {
				r.logger.Warn("server rejected queued play",
					slog.Int("turn", next.Turn),
					slog.String("card", next.Card.String()),
					slog.String("error", err.Error()),
				)
				if rerr := r.Reconcile(ctx); rerr != nil {
					return rerr
				}
			}
			return err
		}

		r.mu.Lock()
		if len(r.pending) > 0 && r.pending[0] == next {
			r.pending = r.pending[1:]
		}
		r.mu.Unlock()
	}
	return r.Reconcile(ctx)
}

func (r *Replica) submit(ctx context.Context, p PendingPlay) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.InitialInterval
	b.MaxInterval = r.config.MaxInterval

	attempt := 0
	op := func() error {
		attempt++
		_, err := r.server.SubmitPlay(ctx, r.matchID, p.Turn, p.Card)
		if err == nil {
			return nil
		}
		if isRejection(err) || errors.Is(err, context.Canceled) {
			return backoff.Permanent(err)
		}
		r.logger.Debug("retrying play submission",
			slog.Int("turn", p.Turn),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		return err
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, r.config.MaxRetries), ctx))
}

// Reconcile fetches the server log and makes it the confirmed state.
// Pending plays the server already holds are dropped as synced. If the
// server took a turn differently from the queue, the whole speculative
// queue is discarded.
func (r *Replica) Reconcile(ctx context.Context) error {
	log, err := r.server.GetLog(ctx, r.matchID)
	if err != nil {
		return err
	}
	if log.Match.IsFinished() && log.Match.Seed != "" {
		if err := engine.Verify(*log); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.confirmed = log.Match.Clone()
	r.plays = append([]model.Play(nil), log.Plays...)

	kept := r.pending[:0:0]
	for i, p := range r.pending {
		if p.Turn >= r.confirmed.CurrentTurn {
			kept = append(kept, r.pending[i:]...)
			break
		}
		if p.Turn >= len(r.plays) || r.plays[p.Turn].PlayerID != r.playerID || r.plays[p.Turn].Card != p.Card {
			r.logger.Info("server is ahead, dropping speculative plays",
				slog.Int("server_turn", r.confirmed.CurrentTurn),
				slog.Int("dropped", len(r.pending)-i),
			)
			kept = nil
			break
		}
	}
	r.pending = kept

	if _, applied := r.predictLocked(); applied < len(r.pending) {
		r.logger.Info("dropping queued plays that no longer apply",
			slog.Int("dropped", len(r.pending)-applied),
		)
		r.pending = r.pending[:applied]
	}
	return nil
}

// isRejection reports whether the server refused the play on its merits,
// as opposed to failing to answer
func isRejection(err error) bool {
	for _, target := range []error{
		model.ErrStaleTurn,
		model.ErrIllegalMove,
		model.ErrNotYourTurn,
		model.ErrMatchFinished,
		model.ErrInvalidCard,
		model.ErrNotInMatch,
		model.ErrMatchNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// String summarises the replica for logs and the CLI
func (r *Replica) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("%s confirmed@%d pending=%d", r.matchID, r.confirmed.CurrentTurn, len(r.pending))
}
