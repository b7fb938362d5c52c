package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/koragame/internal/api/sse"
	"github.com/mcoot/koragame/internal/dependencies/clock"
	"github.com/mcoot/koragame/internal/dependencies/random"
	"github.com/mcoot/koragame/internal/ledger"
	"github.com/mcoot/koragame/internal/ledger/sqlledger"
	"github.com/mcoot/koragame/internal/services/auth"
	"github.com/mcoot/koragame/internal/services/bot"
	"github.com/mcoot/koragame/internal/services/match"
	"github.com/mcoot/koragame/internal/services/settlement"
	"github.com/mcoot/koragame/internal/services/timer"
	"github.com/mcoot/koragame/internal/storage"
	"github.com/mcoot/koragame/internal/storage/memory"
	redisstorage "github.com/mcoot/koragame/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage
	Ledger  ledger.Ledger

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Settlement      *settlement.Service
	MatchController *match.Controller
	BotService      *bot.Service
	Timer           *timer.Timer
	AuthService     *auth.Service
	HubManager      *sse.HubManager

	closers []io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// TimerConfig controls turn expiry. A zero TurnTimeout disables it.
	TimerConfig timer.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// LedgerDSN moves settlement records into a SQLite database. If empty
	// they live in the main storage.
	LedgerDSN string
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var closers []io.Closer
	var store storage.Storage
	switch cfg.StorageType {
	case "", StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
		closers = append(closers, redisStore)
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be 'memory' or 'redis'", cfg.StorageType)
	}

	var led ledger.Ledger = ledger.NewStorageLedger(store)
	if cfg.LedgerDSN != "" {
		sqlLedger, err := sqlledger.Open(cfg.LedgerDSN)
		if err != nil {
			closeAll(closers)
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		led = sqlLedger
		closers = append(closers, sqlLedger)
	}

	authCfg := cfg.AuthConfig
	if authCfg.SessionDuration == 0 {
		authCfg = auth.DefaultConfig()
	}

	app := newWithDependencies(store, led, clock.New(), random.New(), authCfg, cfg.TimerConfig, logger)
	app.closers = closers
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	led ledger.Ledger,
	clk clock.Clock,
	rnd random.Random,
	authCfg auth.Config,
	timerCfg timer.Config,
	logger *slog.Logger,
) *App {
	settle := settlement.New(led, clk, logger)
	controller := match.NewController(store, settle, clk, rnd, logger)
	botService := bot.NewService(store, controller, bot.DefaultStrategies(rnd), clk, rnd, logger)
	turnTimer := timer.New(timerCfg, botService, clk, logger)
	hubManager := sse.NewHubManager(logger)

	controller.Subscribe(turnTimer)
	controller.Subscribe(sse.NewBroadcaster(hubManager, logger))

	return &App{
		Storage:         store,
		Ledger:          led,
		Clock:           clk,
		Random:          rnd,
		Settlement:      settle,
		MatchController: controller,
		BotService:      botService,
		Timer:           turnTimer,
		AuthService:     auth.New(store, clk, rnd, authCfg, logger),
		HubManager:      hubManager,
	}
}

// Close releases storage connections and stops event hubs
func (a *App) Close() error {
	a.HubManager.Close()
	return closeAll(a.closers)
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
