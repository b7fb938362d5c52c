package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/koragame/internal/dependencies/clock"
	"github.com/mcoot/koragame/internal/dependencies/random"
	"github.com/mcoot/koragame/internal/model"
	"github.com/mcoot/koragame/internal/storage"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidUsername    = errors.New("username must not be empty")
)

const (
	idAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	playerIDSize  = 16
	sessionIDSize = 32
)

// Service handles authentication and session management. Sessions are kept
// in storage so bearer tokens outlive a single server process.
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger

	sessionDuration time.Duration
}

// Config holds configuration for the auth service
type Config struct {
	SessionDuration time.Duration
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		SessionDuration: 24 * time.Hour,
	}
}

// New creates a new auth Service
func New(storage storage.Storage, clock clock.Clock, random random.Random, cfg Config, logger *slog.Logger) *Service {
	if cfg.SessionDuration == 0 {
		cfg.SessionDuration = DefaultConfig().SessionDuration
	}
	return &Service{
		storage:         storage,
		clock:           clock,
		random:          random,
		logger:          logger.With(slog.String("component", "auth-service")),
		sessionDuration: cfg.SessionDuration,
	}
}

// CreateGuestPlayer creates an anonymous player and session
func (s *Service) CreateGuestPlayer(ctx context.Context, displayName string) (*model.Session, error) {
	player := &model.Player{
		ID:          s.newPlayerID(),
		DisplayName: displayName,
		IsGuest:     true,
		CreatedAt:   s.clock.Now(),
	}

	if err := s.storage.SavePlayer(ctx, player); err != nil {
		return nil, err
	}

	s.logger.Info("guest player created", slog.String("player_id", string(player.ID)))
	return s.createSession(ctx, player)
}

// RegisterPlayer creates a registered player account and session
func (s *Service) RegisterPlayer(ctx context.Context, username, password, displayName string) (*model.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidUsername
	}

	// Check if username exists
	_, err := s.storage.GetRegisteredPlayerByUsername(ctx, username)
	if err == nil {
		return nil, ErrUsernameExists
	}
	if !errors.Is(err, model.ErrPlayerNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	player := &model.Player{
		ID:          s.newPlayerID(),
		DisplayName: displayName,
		IsGuest:     false,
		CreatedAt:   now,
	}

	registeredPlayer := &model.RegisteredPlayer{
		PlayerID:     player.ID,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SavePlayer(ctx, player); err != nil {
		return nil, err
	}

	if err := s.storage.SaveRegisteredPlayer(ctx, registeredPlayer); err != nil {
		return nil, err
	}

	s.logger.Info("player registered",
		slog.String("player_id", string(player.ID)),
		slog.String("username", username),
	)
	return s.createSession(ctx, player)
}

// Login authenticates a registered player and creates a session
func (s *Service) Login(ctx context.Context, username, password string) (*model.Session, error) {
	rp, err := s.storage.GetRegisteredPlayerByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, model.ErrPlayerNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rp.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("failed login", slog.String("username", username))
		return nil, ErrInvalidCredentials
	}

	player, err := s.storage.GetPlayer(ctx, rp.PlayerID)
	if err != nil {
		return nil, err
	}

	return s.createSession(ctx, player)
}

// ValidateSession checks if a session token is valid and returns the session
func (s *Service) ValidateSession(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	session, err := s.storage.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}

	if session.IsExpired(s.clock.Now()) {
		_ = s.storage.DeleteSession(ctx, token)
		return nil, ErrInvalidSession
	}

	return session, nil
}

// InvalidateSession removes a session
func (s *Service) InvalidateSession(ctx context.Context, token string) error {
	return s.storage.DeleteSession(ctx, token)
}

// GetPlayer returns the player for a session token
func (s *Service) GetPlayer(ctx context.Context, token string) (*model.Player, error) {
	session, err := s.ValidateSession(ctx, token)
	if err != nil {
		return nil, err
	}
	return &session.Player, nil
}

// createSession creates a new session for a player
func (s *Service) createSession(ctx context.Context, player *model.Player) (*model.Session, error) {
	now := s.clock.Now()

	session := &model.Session{
		Token:     "sess_" + s.random.String(sessionIDSize, idAlphabet),
		PlayerID:  player.ID,
		Player:    *player,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionDuration),
	}

	if err := s.storage.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) newPlayerID() model.PlayerID {
	return model.PlayerID("p_" + s.random.String(playerIDSize, idAlphabet))
}
