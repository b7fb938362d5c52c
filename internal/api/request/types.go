package request

// CreateGuestRequest is the request body for creating a guest player
type CreateGuestRequest struct {
	DisplayName string `json:"display_name"`
}

// RegisterRequest is the request body for registering a player
type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateMatchRequest is the request body for opening a match
type CreateMatchRequest struct {
	BetAmount int64 `json:"bet_amount"`
}

// CreateAIMatchRequest is the request body for a match against a bot
type CreateAIMatchRequest struct {
	BetAmount  int64  `json:"bet_amount"`
	Difficulty string `json:"difficulty"`
	Seed       string `json:"seed,omitempty"`
}

// JoinMatchRequest is the request body for joining a waiting match.
// An empty seed lets the server draw one.
type JoinMatchRequest struct {
	Seed string `json:"seed,omitempty"`
}

// PlayRequest is the request body for submitting a card. ExpectedTurn must
// be the match's current turn; retries reuse the same value.
type PlayRequest struct {
	ExpectedTurn *int   `json:"expected_turn"`
	Card         string `json:"card"`
}
