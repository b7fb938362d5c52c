package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/koragame/internal/api/middleware"
	"github.com/mcoot/koragame/internal/api/request"
	"github.com/mcoot/koragame/internal/api/response"
	"github.com/mcoot/koragame/internal/api/sse"
	"github.com/mcoot/koragame/internal/model"
	"github.com/mcoot/koragame/internal/services/bot"
	"github.com/mcoot/koragame/internal/services/match"
	"github.com/mcoot/koragame/internal/services/timer"
)

// MatchHandler handles match endpoints
type MatchHandler struct {
	controller *match.Controller
	botService *bot.Service
	timer      *timer.Timer
	hubManager *sse.HubManager
	logger     *slog.Logger
}

// NewMatchHandler creates a new match handler. The timer and hub manager
// are optional.
func NewMatchHandler(
	controller *match.Controller,
	botService *bot.Service,
	turnTimer *timer.Timer,
	hubManager *sse.HubManager,
	logger *slog.Logger,
) *MatchHandler {
	return &MatchHandler{
		controller: controller,
		botService: botService,
		timer:      turnTimer,
		hubManager: hubManager,
		logger:     logger.With(slog.String("component", "match-handler")),
	}
}

// Create handles POST /api/v1/matches
func (h *MatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	var req request.CreateMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	m, err := h.controller.CreateMatch(r.Context(), player.ID, req.BetAmount)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.MatchJSON(w, http.StatusCreated, m.CurrentTurn, h.view(m, player.ID))
}

// CreateAI handles POST /api/v1/matches/ai
func (h *MatchHandler) CreateAI(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	var req request.CreateAIMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	difficulty := model.Difficulty(req.Difficulty)
	if difficulty == "" {
		difficulty = model.DifficultyMedium
	}

	m, err := h.botService.CreateAIMatch(r.Context(), player.ID, difficulty, req.BetAmount, req.Seed)
	if err != nil {
		WriteError(w, err)
		return
	}
	m = h.afterMove(r.Context(), m)

	response.MatchJSON(w, http.StatusCreated, m.CurrentTurn, h.view(m, player.ID))
}

// List handles GET /api/v1/matches
func (h *MatchHandler) List(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	matches, err := h.controller.ListMatches(r.Context(), player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	out := make([]response.Match, len(matches))
	for i, m := range matches {
		out[i] = h.view(m, player.ID)
	}
	response.JSON(w, http.StatusOK, out)
}

// Get handles GET /api/v1/matches/{id}
func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	m, err := h.controller.GetMatch(r.Context(), matchID(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.MatchJSON(w, http.StatusOK, m.CurrentTurn, h.view(m, player.ID))
}

// Join handles POST /api/v1/matches/{id}/join
func (h *MatchHandler) Join(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	// The body is optional
	var req request.JoinMatchRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, NewInvalidRequestError("invalid request body"))
			return
		}
	}

	m, err := h.controller.JoinMatch(r.Context(), matchID(r), player.ID, req.Seed)
	if err != nil {
		WriteError(w, err)
		return
	}
	m = h.afterMove(r.Context(), m)

	response.MatchJSON(w, http.StatusOK, m.CurrentTurn, h.view(m, player.ID))
}

// Play handles POST /api/v1/matches/{id}/plays
func (h *MatchHandler) Play(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	var req request.PlayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.ExpectedTurn == nil {
		WriteError(w, NewInvalidRequestError("expected_turn is required"))
		return
	}
	card, err := model.ParseCard(req.Card)
	if err != nil {
		WriteError(w, err)
		return
	}

	outcome, err := h.controller.SubmitPlay(r.Context(), matchID(r), player.ID, *req.ExpectedTurn, card)
	if err != nil {
		WriteError(w, err)
		return
	}
	// A duplicate may be the retry of a request that died before the bots
	// replied, so they get another chance to move either way.
	m := h.afterMove(r.Context(), outcome.Match)

	resp := response.PlayResponse{
		Match:        h.view(m, player.ID),
		Play:         response.PlayFromModel(outcome.Play),
		Duplicate:    outcome.Duplicate,
		Transactions: response.TransactionsFromModel(outcome.Transactions),
	}
	if outcome.Result != nil {
		result := response.TurnResultFromModel(*outcome.Result)
		resp.Result = &result
	}

	status := http.StatusCreated
	if outcome.Duplicate {
		status = http.StatusOK
	}
	response.MatchJSON(w, status, m.CurrentTurn, resp)
}

// Plays handles GET /api/v1/matches/{id}/plays
func (h *MatchHandler) Plays(w http.ResponseWriter, r *http.Request) {
	log, err := h.controller.GetLog(r.Context(), matchID(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.MatchJSON(w, http.StatusOK, log.Match.CurrentTurn, response.PlaysFromModel(log.Plays))
}

// Log handles GET /api/v1/matches/{id}/log
func (h *MatchHandler) Log(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	log, err := h.controller.GetLog(r.Context(), matchID(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	resp := response.MatchLogFromModel(log, player.ID)
	h.addDeadline(&resp.Match)
	response.MatchJSON(w, http.StatusOK, log.Match.CurrentTurn, resp)
}

// Concede handles POST /api/v1/matches/{id}/concede
func (h *MatchHandler) Concede(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	m, txs, err := h.controller.Concede(r.Context(), matchID(r), player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.MatchJSON(w, http.StatusOK, m.CurrentTurn, response.ConcedeResponse{
		Match:        h.view(m, player.ID),
		Transactions: response.TransactionsFromModel(txs),
	})
}

// Verify handles GET /api/v1/matches/{id}/verify
func (h *MatchHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id := matchID(r)

	log, err := h.controller.GetLog(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.controller.VerifyMatch(r.Context(), id); err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.VerifyResponse{
		MatchID:  string(id),
		Verified: true,
		Plays:    len(log.Plays),
	})
}

// Transactions handles GET /api/v1/matches/{id}/transactions
func (h *MatchHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.controller.Transactions(r.Context(), matchID(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.TransactionsFromModel(txs))
}

// Events handles GET /api/v1/matches/{id}/events
func (h *MatchHandler) Events(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	if h.hubManager == nil {
		WriteError(w, NewInvalidRequestError("event streaming is disabled"))
		return
	}
	m, err := h.controller.GetMatch(r.Context(), matchID(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	sse.ServeSSE(w, r, h.hubManager.GetOrCreateHub(m.ID), player.ID)
}

// afterMove lets any bot seated in the match reply, then returns the
// latest state. Bot failures are logged and do not fail the request.
// The bot loop is detached from the request so a dropped client cannot
// strand the match on a bot's turn.
func (h *MatchHandler) afterMove(ctx context.Context, m *model.Match) *model.Match {
	if h.botService == nil || !m.IsActive() {
		return m
	}
	ctx = context.WithoutCancel(ctx)
	actions, err := h.botService.ProcessBotActions(ctx, m.ID)
	if err != nil {
		h.logger.Error("bot processing failed",
			slog.String("match_id", string(m.ID)),
			slog.String("error", err.Error()),
		)
	}
	if len(actions) == 0 {
		return m
	}
	latest, err := h.controller.GetMatch(ctx, m.ID)
	if err != nil {
		return m
	}
	return latest
}

// view converts a match for the viewer and adds its turn deadline
func (h *MatchHandler) view(m *model.Match, viewer model.PlayerID) response.Match {
	resp := response.MatchFromModel(m, viewer)
	h.addDeadline(&resp)
	return resp
}

func (h *MatchHandler) addDeadline(resp *response.Match) {
	if h.timer == nil {
		return
	}
	if d, ok := h.timer.Pending(model.MatchID(resp.ID)); ok && d.Turn == resp.CurrentTurn {
		at := d.At
		resp.TurnDeadline = &at
	}
}

func matchID(r *http.Request) model.MatchID {
	return model.MatchID(mux.Vars(r)["id"])
}
