package storage

import (
	"context"

	"github.com/mcoot/koragame/internal/model"
)

// Storage defines the interface for data persistence.
//
// Match writes are conditional. CommitPlay and UpdateMatch only succeed when
// the stored record is still at the expected turn, which is what serializes
// racing submissions for the same match. A failed condition is reported as
// model.ErrStaleTurn (or model.ErrMatchFinished when the stored match ended).
type Storage interface {
	// Player operations
	SavePlayer(ctx context.Context, player *model.Player) error
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)

	// Registered player operations
	SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error
	GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error)
	GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error)

	// Session operations
	SaveSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, token string) (*model.Session, error)
	DeleteSession(ctx context.Context, token string) error

	// Match operations
	CreateMatch(ctx context.Context, match *model.Match) error
	GetMatch(ctx context.Context, id model.MatchID) (*model.Match, error)
	UpdateMatch(ctx context.Context, match *model.Match, expectedStatus model.MatchStatus, expectedTurn int) error
	ListMatchesForPlayer(ctx context.Context, playerID model.PlayerID) ([]*model.Match, error)
	// ListActiveMatches returns every dealt, unfinished match, oldest first
	ListActiveMatches(ctx context.Context) ([]*model.Match, error)

	// Play log operations. CommitPlay atomically stores the new match state,
	// appends the play and, when the play completed a trick, its result.
	CommitPlay(ctx context.Context, match *model.Match, play model.Play, result *model.TurnResult, expectedTurn int) error
	GetPlays(ctx context.Context, matchID model.MatchID) ([]model.Play, error)
	GetPlay(ctx context.Context, matchID model.MatchID, turn int) (*model.Play, error)
	GetTurnResults(ctx context.Context, matchID model.MatchID) ([]model.TurnResult, error)

	// Transaction operations. SaveTransactions fails with
	// model.ErrAlreadySettled if the match already has transactions.
	SaveTransactions(ctx context.Context, matchID model.MatchID, txs []model.Transaction) error
	GetTransactionsForMatch(ctx context.Context, matchID model.MatchID) ([]model.Transaction, error)
	GetTransactionsForPlayer(ctx context.Context, playerID model.PlayerID) ([]model.Transaction, error)
}
