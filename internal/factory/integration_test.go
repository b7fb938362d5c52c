package factory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/koragame/internal/engine"
	"github.com/mcoot/koragame/internal/ledger"
	"github.com/mcoot/koragame/internal/model"
	"github.com/mcoot/koragame/internal/services/auth"
	"github.com/mcoot/koragame/internal/services/timer"
	"github.com/mcoot/koragame/internal/testutil"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
	s.savePlayer("alice")
	s.savePlayer("bob")
}

func (s *IntegrationSuite) savePlayer(id model.PlayerID) {
	s.Require().NoError(s.app.Storage.SavePlayer(s.ctx, &model.Player{
		ID:          id,
		DisplayName: string(id),
		IsGuest:     true,
		CreatedAt:   s.app.MockClock.Now(),
	}))
}

// playFirstLegal plays the first legal card for whoever is to act
func (s *IntegrationSuite) playFirstLegal(matchID model.MatchID) {
	m, err := s.app.MatchController.GetMatch(s.ctx, matchID)
	s.Require().NoError(err)
	view, err := s.app.MatchController.GetView(s.ctx, matchID, m.CurrentPlayerID)
	s.Require().NoError(err)
	_, err = s.app.MatchController.SubmitPlay(s.ctx, matchID, m.CurrentPlayerID, m.CurrentTurn, view.Legal()[0])
	s.Require().NoError(err)
}

func (s *IntegrationSuite) TestHumanMatchToSettlement() {
	s.app.MockRandom.QueueString("HUMANMATCH01")
	s.app.MockRandom.QueueSeed("0123456789abcdef")

	m, err := s.app.MatchController.CreateMatch(s.ctx, "alice", 50)
	s.Require().NoError(err)
	m, err = s.app.MatchController.JoinMatch(s.ctx, m.ID, "bob", "")
	s.Require().NoError(err)
	s.Equal("0123456789abcdef", m.Seed)

	for range 2 * model.TricksPerMatch {
		s.playFirstLegal(m.ID)
	}

	final, err := s.app.MatchController.GetMatch(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Equal(model.MatchStatusFinished, final.Status)
	s.Equal(2*model.TricksPerMatch, final.CurrentTurn)
	s.NotEmpty(final.WinnerID)

	txs, err := s.app.MatchController.Transactions(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Len(txs, 2)
	s.Zero(model.SumAmounts(txs), "settlement is zero-sum")
	for _, tx := range txs {
		if tx.PlayerID == final.WinnerID {
			s.Equal(50*int64(final.KoraMultiplier), tx.Amount)
		}
	}

	s.NoError(s.app.MatchController.VerifyMatch(s.ctx, m.ID))

	_, pending := s.app.Timer.Pending(m.ID)
	s.False(pending, "finishing disarms the timer")
}

func (s *IntegrationSuite) TestAIMatchPlaysThrough() {
	s.app.MockRandom.QueueString("botalice00000001", "AIMATCH00001")

	m, err := s.app.BotService.CreateAIMatch(s.ctx, "alice", model.DifficultyHard, 20, "00000000000000aa")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("alice"), m.CurrentPlayerID)

	for range model.TricksPerMatch * 2 {
		current, err := s.app.MatchController.GetMatch(s.ctx, m.ID)
		s.Require().NoError(err)
		if current.IsFinished() {
			break
		}
		s.Require().Equal(model.PlayerID("alice"), current.CurrentPlayerID, "bots always hand the turn back")
		s.playFirstLegal(m.ID)
		_, err = s.app.BotService.ProcessBotActions(s.ctx, m.ID)
		s.Require().NoError(err)
	}

	final, err := s.app.MatchController.GetMatch(s.ctx, m.ID)
	s.Require().NoError(err)
	s.True(final.IsFinished())
	s.NoError(s.app.MatchController.VerifyMatch(s.ctx, m.ID))

	balance, err := s.app.Settlement.Balance(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("bot-botalice00000001"), final.Players[1])
	botBalance, err := s.app.Settlement.Balance(s.ctx, final.Players[1])
	s.Require().NoError(err)
	s.Equal(-balance, botBalance)
	s.NotZero(balance)
}

func (s *IntegrationSuite) TestTimerAutoplaysForIdleHuman() {
	s.app.MockRandom.QueueString("botidle00000001", "IDLEMATCH001")

	m, err := s.app.BotService.CreateAIMatch(s.ctx, "alice", model.DifficultyEasy, 10, "")
	s.Require().NoError(err)

	deadline, ok := s.app.Timer.Pending(m.ID)
	s.Require().True(ok, "dealing arms the timer")
	s.Equal(0, deadline.Turn)
	s.Equal(s.app.MockClock.Now().Add(TestTurnTimeout), deadline.At)

	s.app.MockClock.Advance(TestTurnTimeout - time.Second)
	s.Zero(s.app.Timer.Tick(s.ctx))

	s.app.MockClock.Advance(time.Second)
	s.Equal(1, s.app.Timer.Tick(s.ctx))

	after, err := s.app.MatchController.GetMatch(s.ctx, m.ID)
	s.Require().NoError(err)
	s.GreaterOrEqual(after.CurrentTurn, 2, "alice's card was autoplayed and the bot answered")
	s.Equal(model.PlayerID("alice"), after.CurrentPlayerID)

	plays, err := s.app.Storage.GetPlays(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Equal(model.PlayerID("alice"), plays[0].PlayerID)

	next, ok := s.app.Timer.Pending(m.ID)
	s.Require().True(ok)
	s.Equal(after.CurrentTurn, next.Turn, "the countdown restarts for alice's next turn")
}

func (s *IntegrationSuite) TestTimerForfeitPolicy() {
	store := s.app.Storage
	app := newWithDependencies(store, ledger.NewStorageLedger(store), s.app.MockClock, s.app.MockRandom,
		auth.DefaultConfig(), timer.Config{TurnTimeout: time.Minute, Policy: model.TimeoutForfeit}, testutil.NopLogger())

	s.app.MockRandom.QueueString("FORFEIT00001")
	m, err := app.MatchController.CreateMatch(s.ctx, "alice", 30)
	s.Require().NoError(err)
	_, err = app.MatchController.JoinMatch(s.ctx, m.ID, "bob", "")
	s.Require().NoError(err)

	s.app.MockClock.Advance(time.Minute)
	s.Equal(1, app.Timer.Tick(s.ctx))

	final, err := app.MatchController.GetMatch(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Equal(model.MatchStatusFinished, final.Status)
	s.Equal(model.VictoryConcession, final.VictoryType)
	s.Equal(model.PlayerID("bob"), final.WinnerID)
	s.Equal(model.PlayerID("alice"), final.ConcededBy)

	balance, err := app.Settlement.Balance(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal(int64(30), balance)
}

func (s *IntegrationSuite) TestPlayBeforeDeadlineWins() {
	s.app.MockRandom.QueueString("RACE00000001")
	m, err := s.app.MatchController.CreateMatch(s.ctx, "alice", 10)
	s.Require().NoError(err)
	_, err = s.app.MatchController.JoinMatch(s.ctx, m.ID, "bob", "")
	s.Require().NoError(err)

	s.app.MockClock.Advance(TestTurnTimeout - time.Millisecond)
	s.playFirstLegal(m.ID)
	s.app.MockClock.Advance(time.Millisecond)

	s.Zero(s.app.Timer.Tick(s.ctx), "alice's play moved the deadline")

	plays, err := s.app.Storage.GetPlays(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Len(plays, 1)
}

func (s *IntegrationSuite) TestReplayMatchesEngine() {
	s.app.MockRandom.QueueString("REPLAY000001")
	m, err := s.app.MatchController.CreateMatch(s.ctx, "alice", 10)
	s.Require().NoError(err)
	_, err = s.app.MatchController.JoinMatch(s.ctx, m.ID, "bob", "fedcba9876543210")
	s.Require().NoError(err)
	for range 4 {
		s.playFirstLegal(m.ID)
	}

	log, err := s.app.MatchController.GetLog(s.ctx, m.ID)
	s.Require().NoError(err)
	rebuilt, results, err := engine.Rebuild(*log)
	s.Require().NoError(err)
	s.Equal(log.Match.CurrentTurn, rebuilt.CurrentTurn)
	s.Equal(log.Match.Hands, rebuilt.Hands)
	s.Len(results, 2)
}
