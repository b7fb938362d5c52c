package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/koragame/internal/dependencies/clock"
	"github.com/mcoot/koragame/internal/ledger"
	"github.com/mcoot/koragame/internal/model"
)

// Service turns a finished match into its pair of ledger transactions
type Service struct {
	ledger ledger.Ledger
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a new settlement Service
func New(ledger ledger.Ledger, clock clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		ledger: ledger,
		clock:  clock,
		logger: logger.With(slog.String("component", "settlement")),
	}
}

// Transactions computes the zero-sum settlement for a finished match: the
// winner is credited and the loser debited bet x multiplier
func Transactions(m *model.Match, at time.Time, newID func() string) []model.Transaction {
	amount := m.BetAmount * int64(m.KoraMultiplier)
	return []model.Transaction{
		{
			ID:        newID(),
			MatchID:   m.ID,
			PlayerID:  m.WinnerID,
			Amount:    amount,
			Type:      model.TransactionPayout,
			CreatedAt: at,
		},
		{
			ID:        newID(),
			MatchID:   m.ID,
			PlayerID:  m.Opponent(m.WinnerID),
			Amount:    -amount,
			Type:      model.TransactionStake,
			CreatedAt: at,
		},
	}
}

// Settle records the transactions of a finished match. Settling again
// returns the transactions recorded the first time.
func (s *Service) Settle(ctx context.Context, m *model.Match) ([]model.Transaction, error) {
	if !m.IsFinished() || m.WinnerID == "" {
		return nil, fmt.Errorf("settle %s: match is %s", m.ID, m.Status)
	}

	txs := Transactions(m, s.clock.Now(), uuid.NewString)

	err := s.ledger.Record(ctx, m.ID, txs)
	if errors.Is(err, model.ErrAlreadySettled) {
		s.logger.Debug("match already settled", slog.String("match_id", string(m.ID)))
		return s.ledger.ForMatch(ctx, m.ID)
	}
	if err != nil {
		s.logger.Error("failed to record settlement",
			slog.String("match_id", string(m.ID)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("match settled",
		slog.String("match_id", string(m.ID)),
		slog.String("winner_id", string(m.WinnerID)),
		slog.Int64("amount", txs[0].Amount),
		slog.String("victory_type", string(m.VictoryType)),
	)
	return txs, nil
}

// Balance returns a player's net winnings across all settled matches
func (s *Service) Balance(ctx context.Context, playerID model.PlayerID) (int64, error) {
	return s.ledger.Balance(ctx, playerID)
}

// ForMatch returns the transactions recorded for a match, empty until settled
func (s *Service) ForMatch(ctx context.Context, matchID model.MatchID) ([]model.Transaction, error) {
	return s.ledger.ForMatch(ctx, matchID)
}

// ForPlayer returns every transaction involving the player
func (s *Service) ForPlayer(ctx context.Context, playerID model.PlayerID) ([]model.Transaction, error) {
	return s.ledger.ForPlayer(ctx, playerID)
}
