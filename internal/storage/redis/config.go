package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// TTL settings. Zero means keep forever. Transactions never expire
	// because balances are derived from them.
	GuestPlayerTTL time.Duration
	SessionTTL     time.Duration
	MatchTTL       time.Duration
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:            "redis://localhost:6379",
		PoolSize:       10,
		MinIdleConns:   2,
		GuestPlayerTTL: 24 * time.Hour,
		SessionTTL:     24 * time.Hour,
		MatchTTL:       7 * 24 * time.Hour,
	}
}
