package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mcoot/koragame/internal/dependencies/clock"
	"github.com/mcoot/koragame/internal/dependencies/random"
	"github.com/mcoot/koragame/internal/model"
	"github.com/mcoot/koragame/internal/services/match"
	"github.com/mcoot/koragame/internal/storage"
)

const (
	// PlayerIDAlphabet is the character set for generating bot player IDs
	PlayerIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	// PlayerIDLength is the length of generated bot player IDs
	PlayerIDLength = 16
	// MaxBotIterations is a safety limit for the ProcessBotActions loop
	MaxBotIterations = 100
)

// ActionType represents the type of action a bot took
type ActionType string

const (
	ActionPlay          ActionType = "play"
	ActionTrickComplete ActionType = "trick_complete"
	ActionMatchComplete ActionType = "match_complete"
	ActionTimeoutPlay   ActionType = "timeout_play"
	ActionForfeit       ActionType = "forfeit"
)

// Action represents a single action taken on a player's behalf
type Action struct {
	Type     ActionType
	PlayerID model.PlayerID
	Card     model.Card
	Turn     int
}

// Service plays for bot seats and for human seats whose turn timed out
type Service struct {
	storage    storage.Storage
	controller *match.Controller
	strategies map[model.Difficulty]Strategy
	clock      clock.Clock
	random     random.Random
	logger     *slog.Logger
}

// NewService creates a new bot Service
func NewService(
	store storage.Storage,
	controller *match.Controller,
	strategies map[model.Difficulty]Strategy,
	clk clock.Clock,
	rnd random.Random,
	logger *slog.Logger,
) *Service {
	return &Service{
		storage:    store,
		controller: controller,
		strategies: strategies,
		clock:      clk,
		random:     rnd,
		logger:     logger.With(slog.String("component", "bot-service")),
	}
}

// CreateBotPlayer creates a new bot player and saves it to storage
func (s *Service) CreateBotPlayer(ctx context.Context, difficulty model.Difficulty) (*model.Player, error) {
	if _, ok := s.strategies[difficulty]; !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidDifficulty, difficulty)
	}
	player := &model.Player{
		ID:            model.PlayerID("bot-" + s.random.String(PlayerIDLength, PlayerIDAlphabet)),
		DisplayName:   fmt.Sprintf("Bot (%s)", difficulty),
		IsGuest:       true,
		IsBot:         true,
		BotDifficulty: difficulty,
		CreatedAt:     s.clock.Now(),
	}

	if err := s.storage.SavePlayer(ctx, player); err != nil {
		return nil, err
	}
	return player, nil
}

// CreateAIMatch opens a match against a fresh bot and deals immediately.
// The human creator holds seat 0 and always leads the first trick.
func (s *Service) CreateAIMatch(ctx context.Context, creator model.PlayerID, difficulty model.Difficulty, bet int64, seed string) (*model.Match, error) {
	bot, err := s.CreateBotPlayer(ctx, difficulty)
	if err != nil {
		return nil, err
	}
	created, err := s.controller.CreateMatch(ctx, creator, bet)
	if err != nil {
		return nil, err
	}
	dealt, err := s.controller.JoinMatch(ctx, created.ID, bot.ID, seed)
	if err != nil {
		return nil, err
	}

	s.logger.Info("ai match created",
		slog.String("match_id", string(dealt.ID)),
		slog.String("bot_id", string(bot.ID)),
		slog.String("difficulty", string(difficulty)),
	)
	return dealt, nil
}

// ProcessBotActions plays for bots in a cascading loop until a human is to
// act or the match ends. It returns every action taken.
func (s *Service) ProcessBotActions(ctx context.Context, matchID model.MatchID) ([]Action, error) {
	var actions []Action

	for range MaxBotIterations {
		m, err := s.controller.GetMatch(ctx, matchID)
		if err != nil {
			return actions, err
		}
		if !m.IsActive() {
			break
		}

		player, err := s.storage.GetPlayer(ctx, m.CurrentPlayerID)
		if err != nil {
			return actions, err
		}
		if !player.IsBot {
			break // Human's turn
		}

		view, err := s.controller.GetView(ctx, matchID, player.ID)
		if err != nil {
			return actions, err
		}
		card := s.strategyForPlayer(player).ChooseCard(*view)

		outcome, err := s.controller.SubmitPlay(ctx, matchID, player.ID, m.CurrentTurn, card)
		if errors.Is(err, model.ErrStaleTurn) {
			continue // Someone else moved first; re-read
		}
		if err != nil {
			return actions, err
		}
		actions = append(actions, s.describe(ActionPlay, outcome)...)
	}

	return actions, nil
}

// ExpireTurn acts for the player whose turn started at turn and ran out.
// It does nothing if that turn has already been played.
func (s *Service) ExpireTurn(ctx context.Context, matchID model.MatchID, turn int, policy model.TimeoutPolicy) error {
	actions, err := s.expireTurn(ctx, matchID, turn, policy)
	if err != nil {
		s.logger.Error("failed to act on expired turn",
			slog.String("match_id", string(matchID)),
			slog.Int("turn", turn),
			slog.String("error", err.Error()),
		)
		return err
	}
	if len(actions) > 0 {
		s.logger.Debug("acted on expired turn",
			slog.String("match_id", string(matchID)),
			slog.Int("turn", turn),
			slog.Int("actions", len(actions)),
		)
	}
	return nil
}

func (s *Service) expireTurn(ctx context.Context, matchID model.MatchID, turn int, policy model.TimeoutPolicy) ([]Action, error) {
	m, err := s.controller.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.IsActive() || m.CurrentTurn != turn {
		return nil, nil
	}
	expired := m.CurrentPlayerID

	s.logger.Info("turn expired",
		slog.String("match_id", string(matchID)),
		slog.String("player_id", string(expired)),
		slog.Int("turn", turn),
		slog.String("policy", string(policy)),
	)
	s.controller.Emit(ctx, model.Event{
		Type:     model.EventTurnExpired,
		MatchID:  matchID,
		PlayerID: expired,
		Turn:     turn,
		Payload:  model.TurnExpiredPayload{ExpiredTurn: turn, Policy: policy},
	})

	if policy == model.TimeoutForfeit {
		_, _, err := s.controller.Forfeit(ctx, matchID, expired, turn)
		if errors.Is(err, model.ErrStaleTurn) || errors.Is(err, model.ErrMatchFinished) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []Action{{Type: ActionForfeit, PlayerID: expired, Turn: turn}}, nil
	}

	view, err := s.controller.GetView(ctx, matchID, expired)
	if err != nil {
		return nil, err
	}
	card := s.strategies[model.DifficultyEasy].ChooseCard(*view)
	outcome, err := s.controller.SubmitPlay(ctx, matchID, expired, turn, card)
	if errors.Is(err, model.ErrStaleTurn) || errors.Is(err, model.ErrMatchFinished) {
		return nil, nil // The player beat the timer
	}
	if err != nil {
		return nil, err
	}

	actions := s.describe(ActionTimeoutPlay, outcome)
	more, err := s.ProcessBotActions(ctx, matchID)
	return append(actions, more...), err
}

func (s *Service) describe(kind ActionType, outcome *match.PlayOutcome) []Action {
	actions := []Action{{
		Type:     kind,
		PlayerID: outcome.Play.PlayerID,
		Card:     outcome.Play.Card,
		Turn:     outcome.Play.Turn,
	}}
	if outcome.Result != nil {
		actions = append(actions, Action{Type: ActionTrickComplete, PlayerID: outcome.Result.WinnerID, Turn: outcome.Result.Turn})
	}
	if outcome.Match.IsFinished() {
		actions = append(actions, Action{Type: ActionMatchComplete, PlayerID: outcome.Match.WinnerID})
	}
	return actions
}

// strategyForPlayer returns the bot's strategy, falling back to easy for an
// unknown difficulty
func (s *Service) strategyForPlayer(player *model.Player) Strategy {
	if st, ok := s.strategies[player.BotDifficulty]; ok {
		return st
	}
	return s.strategies[model.DifficultyEasy]
}
