package model

import "time"

// Session is a bearer token issued to a player. Sessions live in storage so
// that CLI tokens survive a server restart when redis is configured.
type Session struct {
	Token     string
	PlayerID  PlayerID
	Player    Player
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the session is no longer valid at now
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
