package timer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/koragame/internal/dependencies/mocks"
	"github.com/mcoot/koragame/internal/model"
	"github.com/mcoot/koragame/internal/services/timer"
	"github.com/mcoot/koragame/internal/testutil"
)

type expiry struct {
	MatchID model.MatchID
	Turn    int
	Policy  model.TimeoutPolicy
}

type fakeExpirer struct {
	mu    sync.Mutex
	calls []expiry
	err   error
	// onExpire runs inside ExpireTurn, e.g. to emit follow-up events
	onExpire func(ctx context.Context, matchID model.MatchID, turn int)
}

func (f *fakeExpirer) ExpireTurn(ctx context.Context, matchID model.MatchID, turn int, policy model.TimeoutPolicy) error {
	f.mu.Lock()
	f.calls = append(f.calls, expiry{MatchID: matchID, Turn: turn, Policy: policy})
	hook := f.onExpire
	f.mu.Unlock()
	if hook != nil {
		hook(ctx, matchID, turn)
	}
	return f.err
}

func (f *fakeExpirer) expiries() []expiry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]expiry(nil), f.calls...)
}

type TimerSuite struct {
	suite.Suite
	clock   *mocks.MockClock
	expirer *fakeExpirer
	timer   *timer.Timer
	ctx     context.Context
}

func TestTimerSuite(t *testing.T) {
	suite.Run(t, new(TimerSuite))
}

func (s *TimerSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.expirer = &fakeExpirer{}
	s.timer = timer.New(timer.DefaultConfig(), s.expirer, s.clock, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *TimerSuite) event(kind model.EventType, id model.MatchID, turn int) model.Event {
	return model.Event{Type: kind, MatchID: id, Turn: turn, Timestamp: s.clock.Now()}
}

func (s *TimerSuite) TestDefaultConfig() {
	cfg := timer.DefaultConfig()
	s.Equal(60*time.Second, cfg.TurnTimeout)
	s.Equal(model.TimeoutAutoplay, cfg.Policy)
}

func (s *TimerSuite) TestDealArmsDeadline() {
	s.timer.OnEvent(s.ctx, s.event(model.EventMatchDealt, "M1", 0))

	d, ok := s.timer.Pending("M1")
	s.Require().True(ok)
	s.Equal(0, d.Turn)
	s.Equal(s.clock.Now().Add(60*time.Second), d.At)
}

func (s *TimerSuite) TestDoesNotFireEarly() {
	s.timer.OnEvent(s.ctx, s.event(model.EventMatchDealt, "M1", 0))
	s.clock.Advance(59 * time.Second)

	s.Equal(0, s.timer.Tick(s.ctx))
	s.Empty(s.expirer.expiries())
}

func (s *TimerSuite) TestFiresOnceAtDeadline() {
	s.timer.OnEvent(s.ctx, s.event(model.EventMatchDealt, "M1", 0))
	s.clock.Advance(60 * time.Second)

	s.Equal(1, s.timer.Tick(s.ctx))
	s.Equal(0, s.timer.Tick(s.ctx))
	s.clock.Advance(time.Hour)
	s.Equal(0, s.timer.Tick(s.ctx))

	s.Equal([]expiry{{MatchID: "M1", Turn: 0, Policy: model.TimeoutAutoplay}}, s.expirer.expiries())
}

func (s *TimerSuite) TestPlayRestartsCountdownForNextTurn() {
	s.timer.OnEvent(s.ctx, s.event(model.EventMatchDealt, "M1", 0))
	s.clock.Advance(50 * time.Second)
	s.timer.OnEvent(s.ctx, s.event(model.EventPlayAccepted, "M1", 1))

	s.clock.Advance(20 * time.Second)
	s.Equal(0, s.timer.Tick(s.ctx), "turn 0 deadline was replaced")

	s.clock.Advance(40 * time.Second)
	s.Equal(1, s.timer.Tick(s.ctx))
	s.Equal(1, s.expirer.expiries()[0].Turn)
}

func (s *TimerSuite) TestLateEventForOlderTurnIsIgnored() {
	s.timer.OnEvent(s.ctx, s.event(model.EventPlayAccepted, "M1", 2))
	s.timer.OnEvent(s.ctx, s.event(model.EventPlayAccepted, "M1", 1))

	d, ok := s.timer.Pending("M1")
	s.Require().True(ok)
	s.Equal(2, d.Turn)
}

func (s *TimerSuite) TestFinishDisarms() {
	s.timer.OnEvent(s.ctx, s.event(model.EventMatchDealt, "M1", 0))
	s.timer.OnEvent(s.ctx, s.event(model.EventMatchFinished, "M1", 0))
	s.clock.Advance(2 * time.Minute)

	s.Equal(0, s.timer.Tick(s.ctx))
	_, ok := s.timer.Pending("M1")
	s.False(ok)
}

func (s *TimerSuite) TestIndependentMatches() {
	s.timer.OnEvent(s.ctx, s.event(model.EventMatchDealt, "M2", 0))
	s.clock.Advance(30 * time.Second)
	s.timer.OnEvent(s.ctx, s.event(model.EventMatchDealt, "M1", 0))
	s.clock.Advance(30 * time.Second)

	s.Equal(1, s.timer.Tick(s.ctx))
	s.clock.Advance(30 * time.Second)
	s.Equal(1, s.timer.Tick(s.ctx))

	calls := s.expirer.expiries()
	s.Require().Len(calls, 2)
	s.Equal(model.MatchID("M2"), calls[0].MatchID)
	s.Equal(model.MatchID("M1"), calls[1].MatchID)
}

func (s *TimerSuite) TestExpiryCanRearmFromInsideExpirer() {
	s.expirer.onExpire = func(ctx context.Context, id model.MatchID, turn int) {
		// An autoplay emits play_accepted, re-arming the match for the next turn
		s.timer.OnEvent(ctx, s.event(model.EventPlayAccepted, id, turn+1))
	}
	s.timer.OnEvent(s.ctx, s.event(model.EventMatchDealt, "M1", 0))
	s.clock.Advance(60 * time.Second)

	s.Equal(1, s.timer.Tick(s.ctx))
	d, ok := s.timer.Pending("M1")
	s.Require().True(ok)
	s.Equal(1, d.Turn)
}

func (s *TimerSuite) TestExpirerErrorIsLoggedNotRetried() {
	logger, logs := testutil.CaptureLogger()
	s.expirer.err = errors.New("storage unavailable")
	t := timer.New(timer.DefaultConfig(), s.expirer, s.clock, logger)

	t.OnEvent(s.ctx, s.event(model.EventMatchDealt, "M1", 0))
	s.clock.Advance(time.Minute)
	s.Equal(1, t.Tick(s.ctx))
	s.Equal(0, t.Tick(s.ctx))
	s.Contains(logs.String(), "turn expiry failed")
}

func (s *TimerSuite) TestForfeitPolicyIsPassedThrough() {
	t := timer.New(timer.Config{TurnTimeout: time.Second, Policy: model.TimeoutForfeit}, s.expirer, s.clock, testutil.NopLogger())
	t.OnEvent(s.ctx, s.event(model.EventMatchDealt, "M1", 0))
	s.clock.Advance(time.Second)
	t.Tick(s.ctx)

	s.Equal(model.TimeoutForfeit, s.expirer.expiries()[0].Policy)
}

func (s *TimerSuite) TestDisabledTimerIsInert() {
	t := timer.New(timer.Config{TurnTimeout: 0}, s.expirer, s.clock, testutil.NopLogger())
	s.False(t.Enabled())

	t.OnEvent(s.ctx, s.event(model.EventMatchDealt, "M1", 0))
	s.clock.Advance(24 * time.Hour)

	s.Equal(0, t.Tick(s.ctx))
	_, ok := t.Pending("M1")
	s.False(ok)
	s.Empty(s.expirer.expiries())
}

func (s *TimerSuite) TestRunStopsOnCancel() {
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	go func() {
		s.timer.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("Run did not return after cancel")
	}
}

type activeMatches struct {
	matches []*model.Match
	err     error
}

func (a activeMatches) ListActiveMatches(ctx context.Context) ([]*model.Match, error) {
	return a.matches, a.err
}

func (s *TimerSuite) TestRestoreArmsStoredMatchesAfterRestart() {
	source := activeMatches{matches: []*model.Match{
		{ID: "M1", Status: model.MatchStatusDealt, CurrentTurn: 0},
		{ID: "M2", Status: model.MatchStatusPlaying, CurrentTurn: 3},
	}}

	n, err := s.timer.Restore(s.ctx, source)
	s.Require().NoError(err)
	s.Equal(2, n)

	d, ok := s.timer.Pending("M2")
	s.Require().True(ok)
	s.Equal(3, d.Turn)
	s.Equal(s.clock.Now().Add(60*time.Second), d.At)

	s.clock.Advance(59 * time.Second)
	s.Equal(0, s.timer.Tick(s.ctx))
	s.clock.Advance(time.Second)
	s.Equal(2, s.timer.Tick(s.ctx))
	s.ElementsMatch([]expiry{
		{MatchID: "M1", Turn: 0, Policy: model.TimeoutAutoplay},
		{MatchID: "M2", Turn: 3, Policy: model.TimeoutAutoplay},
	}, s.expirer.expiries())
}

func (s *TimerSuite) TestRestoreKeepsNewerLiveDeadline() {
	s.timer.OnEvent(s.ctx, s.event(model.EventPlayAccepted, "M1", 4))

	_, err := s.timer.Restore(s.ctx, activeMatches{matches: []*model.Match{
		{ID: "M1", Status: model.MatchStatusPlaying, CurrentTurn: 3},
	}})
	s.Require().NoError(err)

	d, ok := s.timer.Pending("M1")
	s.Require().True(ok)
	s.Equal(4, d.Turn)
}

func (s *TimerSuite) TestRestoreReportsListError() {
	_, err := s.timer.Restore(s.ctx, activeMatches{err: errors.New("redis down")})
	s.ErrorContains(err, "redis down")
}

func (s *TimerSuite) TestRestoreOnDisabledTimerArmsNothing() {
	t := timer.New(timer.Config{TurnTimeout: 0}, s.expirer, s.clock, testutil.NopLogger())
	n, err := t.Restore(s.ctx, activeMatches{matches: []*model.Match{{ID: "M1", Status: model.MatchStatusDealt}}})
	s.Require().NoError(err)
	s.Equal(0, n)
	_, ok := t.Pending("M1")
	s.False(ok)
}
