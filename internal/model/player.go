package model

import "time"

// PlayerID uniquely identifies a player across the system. It is opaque to
// the match engine.
type PlayerID string

// Difficulty selects a bot decision policy
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid returns true for the known difficulty tiers
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// ValidDifficulties returns all bot difficulty tiers
func ValidDifficulties() []Difficulty {
	return []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}
}

// Player represents a match participant, human or bot
type Player struct {
	ID            PlayerID
	DisplayName   string
	IsGuest       bool // true for unregistered players
	IsBot         bool
	BotDifficulty Difficulty // Set only for bots
	CreatedAt     time.Time
}

// RegisteredPlayer extends Player with authentication data
// Stored separately for security (password never in memory with session)
type RegisteredPlayer struct {
	PlayerID     PlayerID
	Username     string // login username (immutable)
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
