package handler

import (
	"net/http"

	"github.com/mcoot/koragame/internal/api/apierr"
)

// Re-export from apierr for convenience
type APIError = apierr.APIError
type ErrorResponse = apierr.ErrorResponse

// Re-export error codes
const (
	CodeInvalidRequest     = apierr.CodeInvalidRequest
	CodeInvalidCard        = apierr.CodeInvalidCard
	CodeInvalidSeed        = apierr.CodeInvalidSeed
	CodeInvalidBet         = apierr.CodeInvalidBet
	CodeInvalidDifficulty  = apierr.CodeInvalidDifficulty
	CodeUnauthorized       = apierr.CodeUnauthorized
	CodeNotYourTurn        = apierr.CodeNotYourTurn
	CodeIllegalMove        = apierr.CodeIllegalMove
	CodeStaleTurn          = apierr.CodeStaleTurn
	CodeMatchFinished      = apierr.CodeMatchFinished
	CodeMatchNotDealt      = apierr.CodeMatchNotDealt
	CodeMatchNotWaiting    = apierr.CodeMatchNotWaiting
	CodeAlreadyInMatch     = apierr.CodeAlreadyInMatch
	CodeNotInMatch         = apierr.CodeNotInMatch
	CodePlayerNotFound     = apierr.CodePlayerNotFound
	CodeMatchNotFound      = apierr.CodeMatchNotFound
	CodeUsernameExists     = apierr.CodeUsernameExists
	CodeInvalidCredentials = apierr.CodeInvalidCredentials
	CodeReplayDivergence   = apierr.CodeReplayDivergence
	CodeInternalError      = apierr.CodeInternalError
)

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	apierr.WriteError(w, err)
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return apierr.NewInvalidRequestError(message)
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return apierr.NewUnauthorizedError()
}
