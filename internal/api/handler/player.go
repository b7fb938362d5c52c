package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/koragame/internal/api/middleware"
	"github.com/mcoot/koragame/internal/api/request"
	"github.com/mcoot/koragame/internal/api/response"
	"github.com/mcoot/koragame/internal/services/auth"
	"github.com/mcoot/koragame/internal/services/settlement"
)

// PlayerHandler handles player-related endpoints
type PlayerHandler struct {
	authService *auth.Service
	settlement  *settlement.Service
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(authService *auth.Service, settlementService *settlement.Service) *PlayerHandler {
	return &PlayerHandler{
		authService: authService,
		settlement:  settlementService,
	}
}

// CreateGuest handles POST /api/v1/players/guest
func (h *PlayerHandler) CreateGuest(w http.ResponseWriter, r *http.Request) {
	var req request.CreateGuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.DisplayName == "" {
		WriteError(w, NewInvalidRequestError("display_name is required"))
		return
	}

	session, err := h.authService.CreateGuestPlayer(r.Context(), req.DisplayName)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.AuthResponseFromSession(session))
}

// Register handles POST /api/v1/players/register
func (h *PlayerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	switch {
	case req.Username == "":
		WriteError(w, NewInvalidRequestError("username is required"))
		return
	case req.Password == "":
		WriteError(w, NewInvalidRequestError("password is required"))
		return
	case req.DisplayName == "":
		WriteError(w, NewInvalidRequestError("display_name is required"))
		return
	}

	session, err := h.authService.RegisterPlayer(r.Context(), req.Username, req.Password, req.DisplayName)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.AuthResponseFromSession(session))
}

// Login handles POST /api/v1/players/login
func (h *PlayerHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.Username == "" || req.Password == "" {
		WriteError(w, NewInvalidRequestError("username and password are required"))
		return
	}

	session, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AuthResponseFromSession(session))
}

// Logout handles POST /api/v1/players/logout
func (h *PlayerHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	if session == nil {
		WriteError(w, NewUnauthorizedError())
		return
	}
	if err := h.authService.InvalidateSession(r.Context(), session.Token); err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}

// GetMe handles GET /api/v1/players/me
func (h *PlayerHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())
	response.JSON(w, http.StatusOK, response.PlayerFromModel(player))
}

// Balance handles GET /api/v1/players/me/balance
func (h *PlayerHandler) Balance(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	txs, err := h.settlement.ForPlayer(r.Context(), player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}
	balance, err := h.settlement.Balance(r.Context(), player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.BalanceResponse{
		PlayerID:     string(player.ID),
		Balance:      balance,
		Transactions: response.TransactionsFromModel(txs),
	})
}
