package timer

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/koragame/internal/dependencies/clock"
	"github.com/mcoot/koragame/internal/model"
)

// Config holds the turn timer settings
type Config struct {
	// TurnTimeout is how long a player has to act. Zero disables the timer.
	TurnTimeout time.Duration
	// Policy decides what happens to a player who runs out of time
	Policy model.TimeoutPolicy
}

// DefaultConfig returns the default turn timer settings
func DefaultConfig() Config {
	return Config{
		TurnTimeout: 60 * time.Second,
		Policy:      model.TimeoutAutoplay,
	}
}

// Expirer acts on a turn whose deadline has passed. Implementations must
// treat a turn that has already been played as a no-op.
type Expirer interface {
	ExpireTurn(ctx context.Context, matchID model.MatchID, turn int, policy model.TimeoutPolicy) error
}

// Deadline is a pending turn expiry
type Deadline struct {
	MatchID model.MatchID
	Turn    int
	At      time.Time
}

// Timer tracks one deadline per active match. It learns about turns from
// controller events and never sits on the submission path.
type Timer struct {
	config  Config
	expirer Expirer
	clock   clock.Clock
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[model.MatchID]Deadline
}

// New creates a new Timer
func New(config Config, expirer Expirer, clk clock.Clock, logger *slog.Logger) *Timer {
	if !config.Policy.IsValid() {
		config.Policy = model.TimeoutAutoplay
	}
	return &Timer{
		config:  config,
		expirer: expirer,
		clock:   clk,
		logger:  logger.With(slog.String("component", "turn-timer")),
		pending: make(map[model.MatchID]Deadline),
	}
}

// Enabled returns true when turns can expire
func (t *Timer) Enabled() bool {
	return t.config.TurnTimeout > 0
}

// Config returns the timer settings
func (t *Timer) Config() Config {
	return t.config
}

// OnEvent arms or disarms deadlines. It implements match.Observer.
func (t *Timer) OnEvent(ctx context.Context, event model.Event) {
	if !t.Enabled() {
		return
	}

	switch event.Type {
	case model.EventMatchDealt, model.EventPlayAccepted:
		start := event.Timestamp
		if start.IsZero() {
			start = t.clock.Now()
		}
		t.arm(event.MatchID, event.Turn, clock.Deadline(start, t.config.TurnTimeout))
	case model.EventMatchFinished:
		t.disarm(event.MatchID)
	}
}

func (t *Timer) arm(matchID model.MatchID, turn int, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.pending[matchID]; ok && existing.Turn > turn {
		return // Late event for an older turn
	}
	t.pending[matchID] = Deadline{MatchID: matchID, Turn: turn, At: at}
}

func (t *Timer) disarm(matchID model.MatchID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, matchID)
}

// ActiveMatches lists the matches that may still have a turn to expire
type ActiveMatches interface {
	ListActiveMatches(ctx context.Context) ([]*model.Match, error)
}

// Restore arms a deadline for every stored active match and returns how
// many it armed. Deadlines live in memory, so a restarted server calls this
// before it starts ticking. Each restored turn gets a full timeout from now
// because nobody could act while the server was down.
func (t *Timer) Restore(ctx context.Context, source ActiveMatches) (int, error) {
	if !t.Enabled() {
		return 0, nil
	}
	matches, err := source.ListActiveMatches(ctx)
	if err != nil {
		return 0, err
	}
	at := clock.Deadline(t.clock.Now(), t.config.TurnTimeout)
	for _, m := range matches {
		t.arm(m.ID, m.CurrentTurn, at)
	}
	t.logger.Info("turn deadlines restored", slog.Int("matches", len(matches)))
	return len(matches), nil
}

// Pending returns the armed deadline for a match, if any
func (t *Timer) Pending(matchID model.MatchID) (Deadline, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.pending[matchID]
	return d, ok
}

// Tick fires every deadline that has passed and returns how many fired.
// Each deadline is removed before it fires, so it fires at most once.
func (t *Timer) Tick(ctx context.Context) int {
	if !t.Enabled() {
		return 0
	}

	now := t.clock.Now()
	var due []Deadline
	t.mu.Lock()
	for id, d := range t.pending {
		if !now.Before(d.At) {
			due = append(due, d)
			delete(t.pending, id)
		}
	}
	t.mu.Unlock()

	// Stable order keeps logs and tests deterministic
	sort.Slice(due, func(i, j int) bool {
		if !due[i].At.Equal(due[j].At) {
			return due[i].At.Before(due[j].At)
		}
		return due[i].MatchID < due[j].MatchID
	})

	for _, d := range due {
		// The expirer may emit events that re-arm this match, so no lock here
		if err := t.expirer.ExpireTurn(ctx, d.MatchID, d.Turn, t.config.Policy); err != nil {
			t.logger.Error("turn expiry failed",
				slog.String("match_id", string(d.MatchID)),
				slog.Int("turn", d.Turn),
				slog.String("error", err.Error()),
			)
		}
	}
	return len(due)
}

// Run calls Tick every interval until ctx is cancelled
func (t *Timer) Run(ctx context.Context, interval time.Duration) {
	if !t.Enabled() {
		t.logger.Info("turn timer disabled")
		return
	}
	t.logger.Info("turn timer started",
		slog.Duration("turn_timeout", t.config.TurnTimeout),
		slog.String("policy", string(t.config.Policy)),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			t.logger.Info("turn timer stopped")
			return
		case <-ticker.C:
			t.Tick(ctx)
		}
	}
}
