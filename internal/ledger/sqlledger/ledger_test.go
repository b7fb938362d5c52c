package sqlledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/koragame/internal/model"
)

type LedgerSuite struct {
	suite.Suite
	ledger *Ledger
	ctx    context.Context
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	l, err := Open(":memory:")
	s.Require().NoError(err)
	s.ledger = l
	s.ctx = context.Background()
}

func (s *LedgerSuite) TearDownTest() {
	_ = s.ledger.Close()
}

func (s *LedgerSuite) settle(matchID model.MatchID, winner, loser model.PlayerID, amount int64) []model.Transaction {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return []model.Transaction{
		{ID: string(matchID) + "-w", MatchID: matchID, PlayerID: winner, Amount: amount, Type: model.TransactionPayout, CreatedAt: at},
		{ID: string(matchID) + "-l", MatchID: matchID, PlayerID: loser, Amount: -amount, Type: model.TransactionStake, CreatedAt: at},
	}
}

func (s *LedgerSuite) TestRecordAndReadBack() {
	txs := s.settle("m1", "alice", "bob", 300)
	s.Require().NoError(s.ledger.Record(s.ctx, "m1", txs))

	got, err := s.ledger.ForMatch(s.ctx, "m1")
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Zero(model.SumAmounts(got))
	s.Equal(model.TransactionPayout, got[1].Type)
	s.Equal(model.PlayerID("alice"), got[1].PlayerID)

	forBob, err := s.ledger.ForPlayer(s.ctx, "bob")
	s.Require().NoError(err)
	s.Require().Len(forBob, 1)
	s.Equal(int64(-300), forBob[0].Amount)
}

func (s *LedgerSuite) TestSecondSettlementRejected() {
	s.Require().NoError(s.ledger.Record(s.ctx, "m1", s.settle("m1", "alice", "bob", 300)))

	err := s.ledger.Record(s.ctx, "m1", s.settle("m1", "bob", "alice", 300))
	s.ErrorIs(err, model.ErrAlreadySettled)

	balance, err := s.ledger.Balance(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(int64(300), balance)
}

func (s *LedgerSuite) TestUniqueIndexBlocksDuplicatePlayerEntry() {
	txs := s.settle("m1", "alice", "bob", 300)
	txs[1].PlayerID = "alice"

	err := s.ledger.Record(s.ctx, "m1", txs)
	s.ErrorIs(err, model.ErrAlreadySettled)

	got, err := s.ledger.ForMatch(s.ctx, "m1")
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *LedgerSuite) TestBalanceOfUnknownPlayerIsZero() {
	balance, err := s.ledger.Balance(s.ctx, "nobody")
	s.Require().NoError(err)
	s.Zero(balance)
}

func (s *LedgerSuite) TestConcurrentSettlementRecordsOnce() {
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.ledger.Record(s.ctx, "m1", s.settle("m1", "alice", "bob", 50))
		}()
	}
	wg.Wait()

	got, err := s.ledger.ForMatch(s.ctx, "m1")
	s.Require().NoError(err)
	s.Len(got, 2)
}
