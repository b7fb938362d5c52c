package factory

import (
	"time"

	"github.com/mcoot/koragame/internal/dependencies/mocks"
	"github.com/mcoot/koragame/internal/ledger"
	"github.com/mcoot/koragame/internal/model"
	"github.com/mcoot/koragame/internal/services/auth"
	"github.com/mcoot/koragame/internal/services/timer"
	"github.com/mcoot/koragame/internal/storage/memory"
	"github.com/mcoot/koragame/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// TestTurnTimeout is the turn timeout used by NewTestApp
const TestTurnTimeout = 30 * time.Second

// NewTestApp creates an App configured for testing with mocked dependencies
// and an autoplay turn timer driven by the mock clock
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	timerCfg := timer.Config{TurnTimeout: TestTurnTimeout, Policy: model.TimeoutAutoplay}
	app := newWithDependencies(store, ledger.NewStorageLedger(store), mockClock, mockRandom, auth.DefaultConfig(), timerCfg, testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}

// Card parses a card and panics on failure
func Card(name string) model.Card {
	c, err := model.ParseCard(name)
	if err != nil {
		panic(err)
	}
	return c
}

// Cards parses a list of cards and panics on failure
func Cards(names ...string) []model.Card {
	out := make([]model.Card, len(names))
	for i, n := range names {
		out[i] = Card(n)
	}
	return out
}
