package apierr_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/koragame/internal/api/apierr"
	"github.com/mcoot/koragame/internal/model"
	"github.com/mcoot/koragame/internal/services/auth"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"match not found", model.ErrMatchNotFound, http.StatusNotFound},
		{"not your turn", model.ErrNotYourTurn, http.StatusForbidden},
		{"illegal move", model.ErrIllegalMove, http.StatusUnprocessableEntity},
		{"wrapped illegal move", fmt.Errorf("must follow spades: %w", model.ErrIllegalMove), http.StatusUnprocessableEntity},
		{"stale turn", model.ErrStaleTurn, http.StatusConflict},
		{"invalid bet", model.ErrInvalidBet, http.StatusBadRequest},
		{"invalid session", auth.ErrInvalidSession, http.StatusUnauthorized},
		{"invalid request", apierr.NewInvalidRequestError("bad"), http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, apierr.StatusFor(tt.err))
		})
	}
}

func TestWriteError(t *testing.T) {
	t.Run("gameplay detail is kept", func(t *testing.T) {
		rec := httptest.NewRecorder()
		apierr.WriteError(rec, fmt.Errorf("must follow spades: %w", model.ErrIllegalMove))

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var resp apierr.ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, apierr.CodeIllegalMove, resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "must follow spades")
	})

	t.Run("internal errors are not leaked", func(t *testing.T) {
		rec := httptest.NewRecorder()
		apierr.WriteError(rec, errors.New("connection refused to 10.0.0.3"))

		var resp apierr.ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, apierr.CodeInternalError, resp.Error.Code)
		assert.NotContains(t, resp.Error.Message, "10.0.0.3")
	})
}

func TestSentinel(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{apierr.CodeMatchNotFound, model.ErrMatchNotFound},
		{apierr.CodeStaleTurn, model.ErrStaleTurn},
		{apierr.CodeIllegalMove, model.ErrIllegalMove},
		{apierr.CodeNotYourTurn, model.ErrNotYourTurn},
		{apierr.CodeInvalidCredentials, auth.ErrInvalidCredentials},
		{apierr.CodeUnauthorized, nil},
		{apierr.CodeInvalidRequest, nil},
		{"SOMETHING_NEW", nil},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, apierr.Sentinel(tt.code))
		})
	}
}

func TestSentinelRoundTrip(t *testing.T) {
	for _, err := range []error{
		model.ErrPlayerNotFound,
		model.ErrMatchFinished,
		model.ErrMatchNotDealt,
		model.ErrInvalidSeed,
		auth.ErrUsernameExists,
	} {
		rec := httptest.NewRecorder()
		apierr.WriteError(rec, err)

		var resp apierr.ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.ErrorIs(t, apierr.Sentinel(resp.Error.Code), err)
	}
}
