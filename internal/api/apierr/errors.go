package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/koragame/internal/model"
	"github.com/mcoot/koragame/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidCard        = "INVALID_CARD"
	CodeInvalidSeed        = "INVALID_SEED"
	CodeInvalidBet         = "INVALID_BET"
	CodeInvalidDifficulty  = "INVALID_DIFFICULTY"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotYourTurn        = "NOT_YOUR_TURN"
	CodeIllegalMove        = "ILLEGAL_MOVE"
	CodeStaleTurn          = "STALE_TURN"
	CodeMatchFinished      = "MATCH_FINISHED"
	CodeMatchNotDealt      = "MATCH_NOT_DEALT"
	CodeMatchNotWaiting    = "MATCH_NOT_WAITING"
	CodeAlreadyInMatch     = "ALREADY_IN_MATCH"
	CodeNotInMatch         = "NOT_IN_MATCH"
	CodePlayerNotFound     = "PLAYER_NOT_FOUND"
	CodeMatchNotFound      = "MATCH_NOT_FOUND"
	CodeUsernameExists     = "USERNAME_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeReplayDivergence   = "REPLAY_DIVERGENCE"
	CodeInternalError      = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// mapping ties a sentinel to its wire form. Order matters: the first match wins.
type mapping struct {
	err     error
	status  int
	code    string
	message string
}

var mappings = []mapping{
	{model.ErrPlayerNotFound, http.StatusNotFound, CodePlayerNotFound, "Player not found"},
	{model.ErrMatchNotFound, http.StatusNotFound, CodeMatchNotFound, "Match not found"},
	{model.ErrNotInMatch, http.StatusForbidden, CodeNotInMatch, "Not a player in this match"},
	{model.ErrAlreadyInMatch, http.StatusConflict, CodeAlreadyInMatch, "Already in this match"},
	{model.ErrMatchNotWaiting, http.StatusConflict, CodeMatchNotWaiting, "Match is not waiting for players"},
	{model.ErrMatchNotDealt, http.StatusConflict, CodeMatchNotDealt, "Match has not been dealt"},
	{model.ErrInvalidBet, http.StatusBadRequest, CodeInvalidBet, "Bet amount must be positive"},
	{model.ErrInvalidDifficulty, http.StatusBadRequest, CodeInvalidDifficulty, "Difficulty must be easy, medium or hard"},
	{model.ErrInvalidSeed, http.StatusBadRequest, CodeInvalidSeed, "Seed must be 16 hex digits"},
	{model.ErrInvalidCard, http.StatusBadRequest, CodeInvalidCard, "Card must look like 3S or 10H"},
	{model.ErrNotYourTurn, http.StatusForbidden, CodeNotYourTurn, "Not your turn"},
	{model.ErrIllegalMove, http.StatusUnprocessableEntity, CodeIllegalMove, "Illegal move"},
	{model.ErrStaleTurn, http.StatusConflict, CodeStaleTurn, "Turn has already been played"},
	{model.ErrMatchFinished, http.StatusConflict, CodeMatchFinished, "Match is finished"},
	{model.ErrReplayDivergence, http.StatusInternalServerError, CodeReplayDivergence, "Match log does not replay to the stored state"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid username or password"},
	{auth.ErrInvalidSession, http.StatusUnauthorized, CodeUnauthorized, "Invalid or expired session"},
	{auth.ErrUsernameExists, http.StatusConflict, CodeUsernameExists, "Username already exists"},
	{auth.ErrInvalidUsername, http.StatusBadRequest, CodeInvalidRequest, "Username must not be empty"},
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	for _, m := range mappings {
		if errors.Is(err, m.err) {
			message := m.message
			// Gameplay errors carry useful detail, e.g. which suit must be followed
			if m.status != http.StatusInternalServerError && err.Error() != m.err.Error() {
				message = err.Error()
			}
			return &httpError{m.status, APIError{m.code, message}}
		}
	}
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}

// StatusFor returns the HTTP status an error is reported with
func StatusFor(err error) int {
	return toHTTPError(err).status
}

// Sentinel maps an error code received over the wire back to the model
// error it was produced from, so clients can use errors.Is. Unknown codes
// return nil.
func Sentinel(code string) error {
	switch code {
	case CodeInvalidRequest, CodeUnauthorized, CodeInternalError:
		return nil
	}
	for _, m := range mappings {
		if m.code == code {
			return m.err
		}
	}
	return nil
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
