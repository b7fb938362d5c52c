package model

import "errors"

// Common errors used across the application
var (
	// Player errors
	ErrPlayerNotFound  = errors.New("player not found")
	ErrSessionNotFound = errors.New("session not found")

	// Match lookup errors
	ErrMatchNotFound     = errors.New("match not found")
	ErrPlayNotFound      = errors.New("play not found")
	ErrNotInMatch        = errors.New("player is not in match")
	ErrMatchNotWaiting   = errors.New("match is not waiting for players")
	ErrAlreadyInMatch    = errors.New("player is already in match")
	ErrInvalidBet        = errors.New("bet amount must be positive")
	ErrInvalidDifficulty = errors.New("unknown bot difficulty")

	// Gameplay errors. All are recoverable: nothing is persisted when they occur.
	ErrInvalidSeed   = errors.New("invalid shuffle seed")
	ErrInvalidCard   = errors.New("invalid card")
	ErrNotYourTurn   = errors.New("not this player's turn")
	ErrIllegalMove   = errors.New("illegal move")
	ErrStaleTurn     = errors.New("stale turn")
	ErrMatchFinished = errors.New("match is finished")
	ErrMatchNotDealt = errors.New("match has not been dealt")

	// ErrReplayDivergence means the stored play log cannot be replayed into the
	// stored match record. It indicates a storage integrity violation.
	ErrReplayDivergence = errors.New("replay divergence")

	// Ledger errors
	ErrAlreadySettled = errors.New("match is already settled")
)
