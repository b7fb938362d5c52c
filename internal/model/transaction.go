package model

import "time"

// TransactionType classifies a ledger entry
type TransactionType string

const (
	TransactionPayout TransactionType = "payout" // Winner's share of the stake
	TransactionStake  TransactionType = "stake"  // Loser's forfeited stake
)

// Transaction is a signed ledger entry created once per participant when a
// match settles. The transactions of one match always sum to zero.
type Transaction struct {
	ID        string
	MatchID   MatchID
	PlayerID  PlayerID
	Amount    int64 // positive for credits, negative for debits
	Type      TransactionType
	CreatedAt time.Time
}

// SumAmounts returns the net of the given transactions
func SumAmounts(txs []Transaction) int64 {
	var total int64
	for _, tx := range txs {
		total += tx.Amount
	}
	return total
}
