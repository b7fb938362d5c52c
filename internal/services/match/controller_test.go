package match

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/koragame/internal/dependencies/mocks"
	"github.com/mcoot/koragame/internal/engine"
	"github.com/mcoot/koragame/internal/ledger"
	"github.com/mcoot/koragame/internal/model"
	"github.com/mcoot/koragame/internal/services/settlement"
	"github.com/mcoot/koragame/internal/storage/memory"
	"github.com/mcoot/koragame/internal/testutil"
)

const (
	alice model.PlayerID = "alice"
	bob   model.PlayerID = "bob"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *eventRecorder) OnEvent(ctx context.Context, e model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// flakyLedger fails the next failures calls to Record
type flakyLedger struct {
	*ledger.StorageLedger
	mu       sync.Mutex
	failures int
}

func (l *flakyLedger) Record(ctx context.Context, matchID model.MatchID, txs []model.Transaction) error {
	l.mu.Lock()
	if l.failures > 0 {
		l.failures--
		l.mu.Unlock()
		return errors.New("ledger unavailable")
	}
	l.mu.Unlock()
	return l.StorageLedger.Record(ctx, matchID, txs)
}

type ControllerSuite struct {
	suite.Suite
	storage    *memory.Storage
	clock      *mocks.MockClock
	random     *mocks.MockRandom
	controller *Controller
	events     *eventRecorder
	ctx        context.Context
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	settle := settlement.New(ledger.NewStorageLedger(s.storage), s.clock, testutil.NopLogger())
	s.controller = NewController(s.storage, settle, s.clock, s.random, testutil.NopLogger())
	s.events = &eventRecorder{}
	s.controller.Subscribe(s.events)
	s.ctx = context.Background()

	for _, id := range []model.PlayerID{alice, bob} {
		s.Require().NoError(s.storage.SavePlayer(s.ctx, &model.Player{ID: id, DisplayName: string(id)}))
	}
}

func card(name string) model.Card {
	c, err := model.ParseCard(name)
	if err != nil {
		panic(err)
	}
	return c
}

func cards(names ...string) []model.Card {
	out := make([]model.Card, len(names))
	for i, n := range names {
		out[i] = card(n)
	}
	return out
}

// riggedMatch stores a dealt match with known hands, bypassing the shuffle
func (s *ControllerSuite) riggedMatch(hand1, hand2 []model.Card) model.MatchID {
	m, err := engine.NewMatch("RIGGED", alice, 100)
	s.Require().NoError(err)
	m, err = engine.Bind(m, bob)
	s.Require().NoError(err)
	m, err = engine.DealWithHands(m, "", hand1, hand2)
	s.Require().NoError(err)
	s.Require().NoError(s.storage.CreateMatch(s.ctx, &m))
	return m.ID
}

func (s *ControllerSuite) submit(id model.MatchID, player model.PlayerID, turn int, name string) *PlayOutcome {
	out, err := s.controller.SubmitPlay(s.ctx, id, player, turn, card(name))
	s.Require().NoError(err)
	return out
}

// CreateMatch / JoinMatch tests

func (s *ControllerSuite) TestCreateMatchSucceeds() {
	s.random.QueueString("MATCH0000001")

	m, err := s.controller.CreateMatch(s.ctx, alice, 250)
	s.Require().NoError(err)

	s.Equal(model.MatchID("MATCH0000001"), m.ID)
	s.Equal(model.MatchStatusWaiting, m.Status)
	s.Equal(int64(250), m.BetAmount)
	s.Equal(alice, m.Players[0])
	s.Equal([]model.EventType{model.EventMatchCreated}, s.events.types())
}

func (s *ControllerSuite) TestCreateMatchValidates() {
	_, err := s.controller.CreateMatch(s.ctx, "ghost", 100)
	s.ErrorIs(err, model.ErrPlayerNotFound)

	_, err = s.controller.CreateMatch(s.ctx, alice, 0)
	s.ErrorIs(err, model.ErrInvalidBet)
}

func (s *ControllerSuite) TestJoinMatchDealsFromSeed() {
	s.random.QueueString("MATCH0000001")
	s.random.QueueSeed("00000000deadbeef")
	created, _ := s.controller.CreateMatch(s.ctx, alice, 100)

	m, err := s.controller.JoinMatch(s.ctx, created.ID, bob, "")
	s.Require().NoError(err)

	hand1, hand2, _, err := engine.Deal("00000000deadbeef")
	s.Require().NoError(err)
	s.Equal(model.MatchStatusDealt, m.Status)
	s.Equal("00000000deadbeef", m.Seed)
	s.Equal(hand1, m.Hands[0])
	s.Equal(hand2, m.Hands[1])
	s.Equal(alice, m.CurrentPlayerID)
	s.Equal(0, m.CurrentTurn)
	s.Contains(s.events.types(), model.EventMatchDealt)
}

func (s *ControllerSuite) TestJoinMatchWithSuppliedSeed() {
	created, _ := s.controller.CreateMatch(s.ctx, alice, 100)
	m, err := s.controller.JoinMatch(s.ctx, created.ID, bob, "0123456789abcdef")
	s.Require().NoError(err)
	s.Equal("0123456789abcdef", m.Seed)
}

func (s *ControllerSuite) TestJoinMatchRejectsBadSeed() {
	created, _ := s.controller.CreateMatch(s.ctx, alice, 100)
	_, err := s.controller.JoinMatch(s.ctx, created.ID, bob, "nope")
	s.ErrorIs(err, model.ErrInvalidSeed)

	stored, _ := s.controller.GetMatch(s.ctx, created.ID)
	s.Equal(model.MatchStatusWaiting, stored.Status)
}

func (s *ControllerSuite) TestJoinMatchTwice() {
	created, _ := s.controller.CreateMatch(s.ctx, alice, 100)
	_, err := s.controller.JoinMatch(s.ctx, created.ID, bob, "")
	s.Require().NoError(err)

	s.Require().NoError(s.storage.SavePlayer(s.ctx, &model.Player{ID: "carol"}))
	_, err = s.controller.JoinMatch(s.ctx, created.ID, "carol", "")
	s.ErrorIs(err, model.ErrMatchNotWaiting)
}

func (s *ControllerSuite) TestJoinOwnMatch() {
	created, _ := s.controller.CreateMatch(s.ctx, alice, 100)
	_, err := s.controller.JoinMatch(s.ctx, created.ID, alice, "")
	s.ErrorIs(err, model.ErrAlreadyInMatch)
}

// SubmitPlay tests

func (s *ControllerSuite) TestOffSuitFollowerLosesTrick() {
	id := s.riggedMatch(cards("3S", "7H", "10D", "4C", "9S"), cards("5D", "6H", "8D", "10C", "3C"))

	first := s.submit(id, alice, 0, "3S")
	s.Nil(first.Result)
	s.Equal(1, first.Match.CurrentTurn)

	second := s.submit(id, bob, 1, "6H")
	s.Require().NotNil(second.Result)
	s.Equal(alice, second.Result.WinnerID)
	s.Equal(card("3S"), second.Result.WinningCard)
	s.Equal(alice, second.Match.CurrentPlayerID)
	s.Nil(second.Match.DemandedSuit)

	s.Equal([]model.EventType{
		model.EventPlayAccepted,
		model.EventPlayAccepted,
		model.EventTrickResolved,
	}, s.events.types())
}

func (s *ControllerSuite) TestStaleTurnRejected() {
	id := s.riggedMatch(cards("3S", "7H", "10D", "4C", "9S"), cards("5S", "6H", "8D", "10C", "3C"))
	s.submit(id, alice, 0, "3S")

	_, err := s.controller.SubmitPlay(s.ctx, id, bob, 0, card("5S"))
	s.ErrorIs(err, model.ErrStaleTurn)

	_, err = s.controller.SubmitPlay(s.ctx, id, bob, 2, card("5S"))
	s.ErrorIs(err, model.ErrStaleTurn)
}

func (s *ControllerSuite) TestIllegalMoveLeavesMatchUntouched() {
	id := s.riggedMatch(cards("3S", "7H", "10D", "4C", "9S"), cards("5S", "6H", "8D", "10C", "3C"))
	s.submit(id, alice, 0, "9S")
	before, _ := s.controller.GetLog(s.ctx, id)

	_, err := s.controller.SubmitPlay(s.ctx, id, bob, 1, card("6H"))
	s.ErrorIs(err, model.ErrIllegalMove)

	_, err = s.controller.SubmitPlay(s.ctx, id, alice, 1, card("7H"))
	s.ErrorIs(err, model.ErrNotYourTurn)

	after, _ := s.controller.GetLog(s.ctx, id)
	s.Equal(before.Plays, after.Plays)
	s.Empty(engine.Diff(before.Match, after.Match))
}

func (s *ControllerSuite) TestResubmissionIsIdempotent() {
	id := s.riggedMatch(cards("3S", "7H", "10D", "4C", "9S"), cards("5S", "6H", "8D", "10C", "3C"))
	s.submit(id, alice, 0, "3S")
	original := s.submit(id, bob, 1, "5S")
	s.False(original.Duplicate)

	again := s.submit(id, bob, 1, "5S")
	s.True(again.Duplicate)
	s.Equal(original.Play, again.Play)
	s.Equal(original.Result, again.Result)

	log, _ := s.controller.GetLog(s.ctx, id)
	s.Len(log.Plays, 2)
	s.Len(log.TurnResults, 1)
}

func (s *ControllerSuite) TestResubmissionWithDifferentCardIsStale() {
	id := s.riggedMatch(cards("3S", "7H", "10D", "4C", "9S"), cards("5S", "6H", "8D", "10C", "3C"))
	s.submit(id, alice, 0, "3S")

	_, err := s.controller.SubmitPlay(s.ctx, id, alice, 0, card("7H"))
	s.ErrorIs(err, model.ErrStaleTurn)
}

func (s *ControllerSuite) TestRacingSubmissionsOneWins() {
	id := s.riggedMatch(cards("3S", "7H", "10D", "4C", "9S"), cards("5S", "6H", "8D", "10C", "3C"))

	choices := []string{"3S", "7H", "3S", "7H", "3S", "7H", "3S", "7H"}
	errs := make([]error, len(choices))
	var wg sync.WaitGroup
	for i, name := range choices {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			_, errs[i] = s.controller.SubmitPlay(s.ctx, id, alice, 0, card(name))
		}(i, name)
	}
	wg.Wait()

	log, _ := s.controller.GetLog(s.ctx, id)
	s.Require().Len(log.Plays, 1)
	accepted := log.Plays[0].Card.String()

	for i, err := range errs {
		if choices[i] == accepted {
			s.NoError(err)
		} else {
			s.ErrorIs(err, model.ErrStaleTurn)
		}
	}
}

func (s *ControllerSuite) TestPlayOnWaitingMatch() {
	created, _ := s.controller.CreateMatch(s.ctx, alice, 100)
	_, err := s.controller.SubmitPlay(s.ctx, created.ID, alice, 0, card("3S"))
	s.ErrorIs(err, model.ErrMatchNotDealt)
}

// Finishing and settlement

func (s *ControllerSuite) TestKoraTripleSettles() {
	id := s.riggedMatch(cards("10S", "9S", "8S", "7S", "6S"), cards("3H", "4H", "5H", "6H", "7H"))
	leads := []string{"10S", "9S", "8S", "7S", "6S"}
	follows := []string{"3H", "4H", "5H", "6H", "7H"}

	var last *PlayOutcome
	for i := range leads {
		s.submit(id, alice, 2*i, leads[i])
		last = s.submit(id, bob, 2*i+1, follows[i])
	}

	s.True(last.Match.IsFinished())
	s.Equal(alice, last.Match.WinnerID)
	s.Equal(model.VictoryKoraTriple, last.Match.VictoryType)
	s.Equal(4, last.Match.KoraMultiplier)
	s.Require().Len(last.Transactions, 2)
	s.Equal(int64(400), last.Transactions[0].Amount)
	s.Zero(model.SumAmounts(last.Transactions))

	types := s.events.types()
	s.Equal(model.EventMatchSettled, types[len(types)-1])
	s.Equal(model.EventMatchFinished, types[len(types)-2])

	_, err := s.controller.SubmitPlay(s.ctx, id, alice, 10, card("10S"))
	s.ErrorIs(err, model.ErrMatchFinished)

	// Retrying the final play does not settle twice
	again := s.submit(id, bob, 9, "7H")
	s.True(again.Duplicate)
	txs, _ := s.controller.Transactions(s.ctx, id)
	s.Len(txs, 2)
}

func (s *ControllerSuite) TestConcedeAtTurnThree() {
	id := s.riggedMatch(cards("10S", "9S", "8S", "7S", "6S"), cards("3H", "4H", "5H", "6H", "7H"))
	s.submit(id, alice, 0, "10S")
	s.submit(id, bob, 1, "3H")
	s.submit(id, alice, 2, "9S")

	m, txs, err := s.controller.Concede(s.ctx, id, bob)
	s.Require().NoError(err)

	s.Equal(model.MatchStatusFinished, m.Status)
	s.Equal(alice, m.WinnerID)
	s.Equal(model.VictoryConcession, m.VictoryType)
	s.Equal(1, m.KoraMultiplier)
	s.Require().Len(txs, 2)
	s.Equal(int64(100), txs[0].Amount)
	s.Equal(int64(-100), txs[1].Amount)

	_, _, err = s.controller.Concede(s.ctx, id, alice)
	s.ErrorIs(err, model.ErrMatchFinished)

	_, err = s.controller.SubmitPlay(s.ctx, id, bob, 3, card("4H"))
	s.ErrorIs(err, model.ErrMatchFinished)
}

func (s *ControllerSuite) TestConcedeBeforeFirstPlay() {
	id := s.riggedMatch(cards("10S", "9S", "8S", "7S", "6S"), cards("3H", "4H", "5H", "6H", "7H"))
	m, _, err := s.controller.Concede(s.ctx, id, alice)
	s.Require().NoError(err)
	s.Equal(bob, m.WinnerID)
}

func (s *ControllerSuite) TestForfeitRequiresCurrentTurn() {
	id := s.riggedMatch(cards("10S", "9S", "8S", "7S", "6S"), cards("3H", "4H", "5H", "6H", "7H"))
	s.submit(id, alice, 0, "10S")

	_, _, err := s.controller.Forfeit(s.ctx, id, alice, 0)
	s.ErrorIs(err, model.ErrStaleTurn)

	m, txs, err := s.controller.Forfeit(s.ctx, id, bob, 1)
	s.Require().NoError(err)
	s.Equal(alice, m.WinnerID)
	s.Equal(bob, m.ConcededBy)
	s.Len(txs, 2)
}

// useFlakyLedger rebuilds the controller over a ledger that rejects the
// next failures writes and returns the captured controller logs
func (s *ControllerSuite) useFlakyLedger(failures int) *testutil.CapturedLogs {
	logger, logs := testutil.CaptureLogger()
	flaky := &flakyLedger{StorageLedger: ledger.NewStorageLedger(s.storage), failures: failures}
	settle := settlement.New(flaky, s.clock, testutil.NopLogger())
	s.controller = NewController(s.storage, settle, s.clock, s.random, logger)
	s.controller.Subscribe(s.events)
	return logs
}

func (s *ControllerSuite) TestFailedSettlementIsLogged() {
	logs := s.useFlakyLedger(1)
	id := s.riggedMatch(cards("10S", "9S", "8S", "7S", "6S"), cards("3H", "4H", "5H", "6H", "7H"))
	s.submit(id, alice, 0, "10S")

	_, txs, err := s.controller.Concede(s.ctx, id, bob)
	s.Require().NoError(err)
	s.Empty(txs)

	out := logs.String()
	s.Contains(out, `"level":"WARN"`)
	s.Contains(out, "settlement failed")
	s.Contains(out, `"match_id":"`+string(id)+`"`)
	s.Contains(out, `"turn":1`)
	s.Contains(out, "ledger unavailable")
	s.NotContains(s.events.types(), model.EventMatchSettled)
}

func (s *ControllerSuite) TestRepeatedConcedeSettlesAfterFailure() {
	s.useFlakyLedger(1)
	id := s.riggedMatch(cards("10S", "9S", "8S", "7S", "6S"), cards("3H", "4H", "5H", "6H", "7H"))

	_, txs, err := s.controller.Concede(s.ctx, id, bob)
	s.Require().NoError(err)
	s.Empty(txs)

	_, _, err = s.controller.Concede(s.ctx, id, bob)
	s.ErrorIs(err, model.ErrMatchFinished)

	recorded, err := s.controller.Transactions(s.ctx, id)
	s.Require().NoError(err)
	s.Require().Len(recorded, 2)
	s.Equal(alice, recorded[0].PlayerID)
	s.Equal(int64(0), recorded[0].Amount+recorded[1].Amount)
	s.Contains(s.events.types(), model.EventMatchSettled)
}

func (s *ControllerSuite) TestTransactionsSettlesAfterFailedForfeit() {
	s.useFlakyLedger(1)
	id := s.riggedMatch(cards("10S", "9S", "8S", "7S", "6S"), cards("3H", "4H", "5H", "6H", "7H"))
	s.submit(id, alice, 0, "10S")

	_, txs, err := s.controller.Forfeit(s.ctx, id, bob, 1)
	s.Require().NoError(err)
	s.Empty(txs)

	recorded, err := s.controller.Transactions(s.ctx, id)
	s.Require().NoError(err)
	s.Len(recorded, 2)

	again, err := s.controller.Transactions(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(recorded, again)
}

func (s *ControllerSuite) TestRepeatedForfeitSettlesAfterFailure() {
	s.useFlakyLedger(1)
	id := s.riggedMatch(cards("10S", "9S", "8S", "7S", "6S"), cards("3H", "4H", "5H", "6H", "7H"))

	_, _, err := s.controller.Forfeit(s.ctx, id, alice, 0)
	s.Require().NoError(err)

	_, _, err = s.controller.Forfeit(s.ctx, id, alice, 0)
	s.ErrorIs(err, model.ErrMatchFinished)

	balance, err := s.storage.GetTransactionsForPlayer(s.ctx, bob)
	s.Require().NoError(err)
	s.Require().Len(balance, 1)
	s.Equal(int64(100), balance[0].Amount)
}

// Views and verification

func (s *ControllerSuite) TestGetViewShowsOnlyOwnHand() {
	id := s.riggedMatch(cards("3S", "7H", "10D", "4C", "9S"), cards("5S", "6H", "8D", "10C", "3C"))
	s.submit(id, alice, 0, "9S")

	view, err := s.controller.GetView(s.ctx, id, bob)
	s.Require().NoError(err)
	s.Equal(cards("5S", "6H", "8D", "10C", "3C"), view.Hand)
	s.Equal(alice, view.OpponentID)
	s.Equal(card("9S"), *view.LeadCard)
	s.Equal(cards("5S"), view.Legal())

	_, err = s.controller.GetView(s.ctx, id, "stranger")
	s.ErrorIs(err, model.ErrNotInMatch)
}

func (s *ControllerSuite) playOut(id model.MatchID) *model.Match {
	for {
		m, err := s.controller.GetMatch(s.ctx, id)
		s.Require().NoError(err)
		if m.IsFinished() {
			return m
		}
		view, err := s.controller.GetView(s.ctx, id, m.CurrentPlayerID)
		s.Require().NoError(err)
		s.submit(id, m.CurrentPlayerID, m.CurrentTurn, view.Legal()[0].String())
	}
}

func (s *ControllerSuite) TestVerifySeededMatch() {
	created, _ := s.controller.CreateMatch(s.ctx, alice, 100)
	_, err := s.controller.JoinMatch(s.ctx, created.ID, bob, "feedfacecafebeef")
	s.Require().NoError(err)

	m := s.playOut(created.ID)
	s.Equal(model.TricksPerMatch, m.TricksWon[0]+m.TricksWon[1])
	s.NoError(s.controller.VerifyMatch(s.ctx, created.ID))

	matches, err := s.controller.ListMatches(s.ctx, bob)
	s.Require().NoError(err)
	s.Len(matches, 1)
}

func (s *ControllerSuite) TestVerifyDetectsTamperedRecord() {
	created, _ := s.controller.CreateMatch(s.ctx, alice, 100)
	_, err := s.controller.JoinMatch(s.ctx, created.ID, bob, "feedfacecafebeef")
	s.Require().NoError(err)
	m := s.playOut(created.ID)

	tampered := m.Clone()
	tampered.WinnerID = tampered.Opponent(m.WinnerID)
	s.Require().NoError(s.storage.UpdateMatch(s.ctx, &tampered, model.MatchStatusFinished, m.CurrentTurn))

	s.ErrorIs(s.controller.VerifyMatch(s.ctx, created.ID), model.ErrReplayDivergence)
}

func (s *ControllerSuite) TestVerifyWaitingMatch() {
	created, _ := s.controller.CreateMatch(s.ctx, alice, 100)
	s.ErrorIs(s.controller.VerifyMatch(s.ctx, created.ID), model.ErrMatchNotDealt)
}
