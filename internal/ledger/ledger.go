package ledger

import (
	"context"

	"github.com/mcoot/koragame/internal/model"
	"github.com/mcoot/koragame/internal/storage"
)

// Ledger records settlement transactions. Record is all-or-nothing per
// match and fails with model.ErrAlreadySettled when the match already has
// entries.
type Ledger interface {
	Record(ctx context.Context, matchID model.MatchID, txs []model.Transaction) error
	ForMatch(ctx context.Context, matchID model.MatchID) ([]model.Transaction, error)
	ForPlayer(ctx context.Context, playerID model.PlayerID) ([]model.Transaction, error)
	Balance(ctx context.Context, playerID model.PlayerID) (int64, error)
}

// StorageLedger keeps transactions next to the matches in the main store
type StorageLedger struct {
	storage storage.Storage
}

var _ Ledger = (*StorageLedger)(nil)

// NewStorageLedger creates a ledger over the given storage
func NewStorageLedger(storage storage.Storage) *StorageLedger {
	return &StorageLedger{storage: storage}
}

func (l *StorageLedger) Record(ctx context.Context, matchID model.MatchID, txs []model.Transaction) error {
	return l.storage.SaveTransactions(ctx, matchID, txs)
}

func (l *StorageLedger) ForMatch(ctx context.Context, matchID model.MatchID) ([]model.Transaction, error) {
	return l.storage.GetTransactionsForMatch(ctx, matchID)
}

func (l *StorageLedger) ForPlayer(ctx context.Context, playerID model.PlayerID) ([]model.Transaction, error) {
	return l.storage.GetTransactionsForPlayer(ctx, playerID)
}

// Balance is the sum of every transaction the player took part in
func (l *StorageLedger) Balance(ctx context.Context, playerID model.PlayerID) (int64, error) {
	txs, err := l.storage.GetTransactionsForPlayer(ctx, playerID)
	if err != nil {
		return 0, err
	}
	return model.SumAmounts(txs), nil
}
