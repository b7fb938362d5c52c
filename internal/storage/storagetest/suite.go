// Package storagetest holds the behaviour every storage backend must share.
// Backend packages embed Suite and set New in their own SetupTest.
package storagetest

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/koragame/internal/model"
	"github.com/mcoot/koragame/internal/storage"
)

// Suite runs against the storage returned by New before every test
type Suite struct {
	suite.Suite
	New     func() storage.Storage
	Storage storage.Storage
	Ctx     context.Context
}

var created = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// SetupTest creates a fresh backend
func (s *Suite) SetupTest() {
	s.Storage = s.New()
	s.Ctx = context.Background()
}

func (s *Suite) dealtMatch(id model.MatchID) *model.Match {
	return &model.Match{
		ID:              id,
		Players:         [model.SeatCount]model.PlayerID{"player-1", "player-2"},
		BetAmount:       100,
		Seed:            "0123456789abcdef",
		Status:          model.MatchStatusDealt,
		CurrentPlayerID: "player-1",
		Hands: [model.SeatCount][]model.Card{
			{{Suit: model.SuitSpades, Rank: 3}, {Suit: model.SuitHearts, Rank: 7}},
			{{Suit: model.SuitSpades, Rank: 5}, {Suit: model.SuitClubs, Rank: 10}},
		},
		KoraMultiplier: 1,
		CreatedAt:      created,
	}
}

// advance returns the match after a play at turn, with the play itself
func advance(m *model.Match, turn int, player model.PlayerID, card model.Card) (*model.Match, model.Play) {
	next := m.Clone()
	next.CurrentTurn = turn + 1
	next.Status = model.MatchStatusPlaying
	play := model.Play{MatchID: m.ID, Turn: turn, PlayerID: player, Card: card, PlayedAt: created}
	return &next, play
}

// Player tests

func (s *Suite) TestSaveAndGetPlayer() {
	player := &model.Player{ID: "player-1", DisplayName: "Alice", CreatedAt: created}
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, player))

	got, err := s.Storage.GetPlayer(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal("Alice", got.DisplayName)
}

func (s *Suite) TestGetPlayerNotFound() {
	_, err := s.Storage.GetPlayer(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestBotPlayerRoundTrip() {
	bot := &model.Player{ID: "bot-1", DisplayName: "Bot", IsBot: true, BotDifficulty: model.DifficultyHard}
	s.Require().NoError(s.Storage.SavePlayer(s.Ctx, bot))

	got, err := s.Storage.GetPlayer(s.Ctx, "bot-1")
	s.Require().NoError(err)
	s.True(got.IsBot)
	s.Equal(model.DifficultyHard, got.BotDifficulty)
}

func (s *Suite) TestRegisteredPlayerByUsername() {
	rp := &model.RegisteredPlayer{PlayerID: "player-1", Username: "alice", PasswordHash: "hash"}
	s.Require().NoError(s.Storage.SaveRegisteredPlayer(s.Ctx, rp))

	got, err := s.Storage.GetRegisteredPlayerByUsername(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-1"), got.PlayerID)

	_, err = s.Storage.GetRegisteredPlayerByUsername(s.Ctx, "bob")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// Session tests

func (s *Suite) TestSessionLifecycle() {
	session := &model.Session{Token: "tok", PlayerID: "player-1", ExpiresAt: created.Add(time.Hour)}
	s.Require().NoError(s.Storage.SaveSession(s.Ctx, session))

	got, err := s.Storage.GetSession(s.Ctx, "tok")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-1"), got.PlayerID)

	s.Require().NoError(s.Storage.DeleteSession(s.Ctx, "tok"))
	_, err = s.Storage.GetSession(s.Ctx, "tok")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

// Match tests

func (s *Suite) TestCreateAndGetMatch() {
	m := s.dealtMatch("match-1")
	s.Require().NoError(s.Storage.CreateMatch(s.Ctx, m))

	got, err := s.Storage.GetMatch(s.Ctx, "match-1")
	s.Require().NoError(err)
	s.Equal(m.Players, got.Players)
	s.Equal(m.Hands, got.Hands)
	s.Equal(model.MatchStatusDealt, got.Status)
	s.Nil(got.DemandedSuit)
}

func (s *Suite) TestCreateMatchTwiceFails() {
	s.Require().NoError(s.Storage.CreateMatch(s.Ctx, s.dealtMatch("match-1")))
	s.Error(s.Storage.CreateMatch(s.Ctx, s.dealtMatch("match-1")))
}

func (s *Suite) TestGetMatchNotFound() {
	_, err := s.Storage.GetMatch(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrMatchNotFound)
}

func (s *Suite) TestUpdateMatchChecksExpectedState() {
	waiting := &model.Match{ID: "match-1", Players: [model.SeatCount]model.PlayerID{"player-1"}, Status: model.MatchStatusWaiting, CreatedAt: created}
	s.Require().NoError(s.Storage.CreateMatch(s.Ctx, waiting))

	dealt := s.dealtMatch("match-1")
	s.Require().NoError(s.Storage.UpdateMatch(s.Ctx, dealt, model.MatchStatusWaiting, 0))

	// A second join based on the stale waiting record loses
	err := s.Storage.UpdateMatch(s.Ctx, dealt, model.MatchStatusWaiting, 0)
	s.ErrorIs(err, model.ErrStaleTurn)
}

func (s *Suite) TestUpdateFinishedMatchIsRejected() {
	m := s.dealtMatch("match-1")
	s.Require().NoError(s.Storage.CreateMatch(s.Ctx, m))

	finished := m.Clone()
	finished.Status = model.MatchStatusFinished
	s.Require().NoError(s.Storage.UpdateMatch(s.Ctx, &finished, model.MatchStatusDealt, 0))

	err := s.Storage.UpdateMatch(s.Ctx, m, model.MatchStatusDealt, 0)
	s.ErrorIs(err, model.ErrMatchFinished)
}

func (s *Suite) TestListMatchesForPlayer() {
	a := s.dealtMatch("match-a")
	b := s.dealtMatch("match-b")
	b.CreatedAt = created.Add(time.Minute)
	s.Require().NoError(s.Storage.CreateMatch(s.Ctx, b))
	s.Require().NoError(s.Storage.CreateMatch(s.Ctx, a))

	matches, err := s.Storage.ListMatchesForPlayer(s.Ctx, "player-2")
	s.Require().NoError(err)
	s.Require().Len(matches, 2)
	s.Equal(model.MatchID("match-a"), matches[0].ID)
	s.Equal(model.MatchID("match-b"), matches[1].ID)

	none, err := s.Storage.ListMatchesForPlayer(s.Ctx, "stranger")
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *Suite) TestListActiveMatches() {
	waiting := s.dealtMatch("match-waiting")
	waiting.Status = model.MatchStatusWaiting
	s.Require().NoError(s.Storage.CreateMatch(s.Ctx, waiting))

	a := s.dealtMatch("match-a")
	s.Require().NoError(s.Storage.CreateMatch(s.Ctx, a))
	b := s.dealtMatch("match-b")
	b.CreatedAt = created.Add(time.Minute)
	s.Require().NoError(s.Storage.CreateMatch(s.Ctx, b))

	active, err := s.Storage.ListActiveMatches(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	s.Equal(model.MatchID("match-a"), active[0].ID)
	s.Equal(model.MatchID("match-b"), active[1].ID)

	finished := a.Clone()
	finished.Status = model.MatchStatusFinished
	s.Require().NoError(s.Storage.UpdateMatch(s.Ctx, &finished, model.MatchStatusDealt, 0))

	dealt := waiting.Clone()
	dealt.Status = model.MatchStatusDealt
	s.Require().NoError(s.Storage.UpdateMatch(s.Ctx, &dealt, model.MatchStatusWaiting, 0))

	active, err = s.Storage.ListActiveMatches(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	s.Equal(model.MatchID("match-waiting"), active[0].ID)
	s.Equal(model.MatchID("match-b"), active[1].ID)
}

// Play log tests

func (s *Suite) TestCommitPlayAppendsInOrder() {
	m := s.dealtMatch("match-1")
	s.Require().NoError(s.Storage.CreateMatch(s.Ctx, m))

	m1, play0 := advance(m, 0, "player-1", model.Card{Suit: model.SuitSpades, Rank: 3})
	s.Require().NoError(s.Storage.CommitPlay(s.Ctx, m1, play0, nil, 0))

	m2, play1 := advance(m1, 1, "player-2", model.Card{Suit: model.SuitSpades, Rank: 5})
	result := &model.TurnResult{MatchID: m.ID, Turn: 1, WinnerID: "player-2", WinningCard: play1.Card, LoserID: "player-1", LosingCard: play0.Card}
	s.Require().NoError(s.Storage.CommitPlay(s.Ctx, m2, play1, result, 1))

	plays, err := s.Storage.GetPlays(s.Ctx, m.ID)
	s.Require().NoError(err)
	s.Equal([]int{0, 1}, []int{plays[0].Turn, plays[1].Turn})
	s.Equal(play1.Card, plays[1].Card)

	results, err := s.Storage.GetTurnResults(s.Ctx, m.ID)
	s.Require().NoError(err)
	s.Equal([]model.TurnResult{*result}, results)

	stored, err := s.Storage.GetMatch(s.Ctx, m.ID)
	s.Require().NoError(err)
	s.Equal(2, stored.CurrentTurn)

	got, err := s.Storage.GetPlay(s.Ctx, m.ID, 1)
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-2"), got.PlayerID)

	_, err = s.Storage.GetPlay(s.Ctx, m.ID, 2)
	s.ErrorIs(err, model.ErrPlayNotFound)
}

func (s *Suite) TestCommitPlayRejectsStaleTurn() {
	m := s.dealtMatch("match-1")
	s.Require().NoError(s.Storage.CreateMatch(s.Ctx, m))

	m1, play0 := advance(m, 0, "player-1", model.Card{Suit: model.SuitSpades, Rank: 3})
	s.Require().NoError(s.Storage.CommitPlay(s.Ctx, m1, play0, nil, 0))

	other, otherPlay := advance(m, 0, "player-1", model.Card{Suit: model.SuitHearts, Rank: 7})
	err := s.Storage.CommitPlay(s.Ctx, other, otherPlay, nil, 0)
	s.ErrorIs(err, model.ErrStaleTurn)

	plays, _ := s.Storage.GetPlays(s.Ctx, m.ID)
	s.Len(plays, 1)
	s.Equal(play0.Card, plays[0].Card)
}

func (s *Suite) TestCommitPlayOnFinishedMatch() {
	m := s.dealtMatch("match-1")
	s.Require().NoError(s.Storage.CreateMatch(s.Ctx, m))
	finished := m.Clone()
	finished.Status = model.MatchStatusFinished
	s.Require().NoError(s.Storage.UpdateMatch(s.Ctx, &finished, model.MatchStatusDealt, 0))

	m1, play0 := advance(m, 0, "player-1", model.Card{Suit: model.SuitSpades, Rank: 3})
	err := s.Storage.CommitPlay(s.Ctx, m1, play0, nil, 0)
	s.ErrorIs(err, model.ErrMatchFinished)
}

func (s *Suite) TestConcurrentCommitsOneWins() {
	m := s.dealtMatch("match-1")
	s.Require().NoError(s.Storage.CreateMatch(s.Ctx, m))

	const racers = 8
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next, play := advance(m, 0, "player-1", model.Card{Suit: model.SuitSpades, Rank: 3})
			errs[i] = s.Storage.CommitPlay(s.Ctx, next, play, nil, 0)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			s.ErrorIs(err, model.ErrStaleTurn)
		}
	}
	s.Equal(1, wins)

	plays, _ := s.Storage.GetPlays(s.Ctx, m.ID)
	s.Len(plays, 1)
}

func (s *Suite) TestGetPlaysForMissingMatch() {
	_, err := s.Storage.GetPlays(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrMatchNotFound)
}

// Transaction tests

func (s *Suite) TestSaveTransactionsOnce() {
	txs := []model.Transaction{
		{ID: "tx-1", MatchID: "match-1", PlayerID: "player-1", Amount: 200, Type: model.TransactionPayout, CreatedAt: created},
		{ID: "tx-2", MatchID: "match-1", PlayerID: "player-2", Amount: -200, Type: model.TransactionStake, CreatedAt: created},
	}
	s.Require().NoError(s.Storage.SaveTransactions(s.Ctx, "match-1", txs))

	err := s.Storage.SaveTransactions(s.Ctx, "match-1", txs)
	s.ErrorIs(err, model.ErrAlreadySettled)

	forMatch, err := s.Storage.GetTransactionsForMatch(s.Ctx, "match-1")
	s.Require().NoError(err)
	s.Len(forMatch, 2)
	s.Zero(model.SumAmounts(forMatch))

	forPlayer, err := s.Storage.GetTransactionsForPlayer(s.Ctx, "player-2")
	s.Require().NoError(err)
	s.Require().Len(forPlayer, 1)
	s.Equal(int64(-200), forPlayer[0].Amount)
}

func (s *Suite) TestTransactionsEmpty() {
	txs, err := s.Storage.GetTransactionsForMatch(s.Ctx, "match-1")
	s.Require().NoError(err)
	s.Empty(txs)
}
