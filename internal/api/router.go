package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/koragame/internal/api/handler"
	"github.com/mcoot/koragame/internal/api/middleware"
	"github.com/mcoot/koragame/internal/api/response"
	"github.com/mcoot/koragame/internal/api/sse"
	"github.com/mcoot/koragame/internal/services/auth"
	"github.com/mcoot/koragame/internal/services/bot"
	"github.com/mcoot/koragame/internal/services/match"
	"github.com/mcoot/koragame/internal/services/settlement"
	"github.com/mcoot/koragame/internal/services/timer"
)

// RouterConfig holds configuration for the API router. Timer and
// HubManager may be nil.
type RouterConfig struct {
	Logger          *slog.Logger
	AuthService     *auth.Service
	MatchController *match.Controller
	BotService      *bot.Service
	Settlement      *settlement.Service
	Timer           *timer.Timer
	HubManager      *sse.HubManager
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	playerHandler := handler.NewPlayerHandler(cfg.AuthService, cfg.Settlement)
	matchHandler := handler.NewMatchHandler(cfg.MatchController, cfg.BotService, cfg.Timer, cfg.HubManager, cfg.Logger)

	authMiddleware := middleware.Auth(cfg.AuthService)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(middleware.Logging(cfg.Logger))

	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	// Player routes (no auth required for creating players/logging in)
	api.HandleFunc("/players/guest", playerHandler.CreateGuest).Methods(http.MethodPost)
	api.HandleFunc("/players/register", playerHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/players/login", playerHandler.Login).Methods(http.MethodPost)

	players := api.PathPrefix("/players").Subrouter()
	players.Use(authMiddleware)
	players.HandleFunc("/logout", playerHandler.Logout).Methods(http.MethodPost)
	players.HandleFunc("/me", playerHandler.GetMe).Methods(http.MethodGet)
	players.HandleFunc("/me/balance", playerHandler.Balance).Methods(http.MethodGet)

	matches := api.PathPrefix("/matches").Subrouter()
	matches.Use(authMiddleware)
	matches.HandleFunc("", matchHandler.Create).Methods(http.MethodPost)
	matches.HandleFunc("", matchHandler.List).Methods(http.MethodGet)
	matches.HandleFunc("/ai", matchHandler.CreateAI).Methods(http.MethodPost)
	matches.HandleFunc("/{id}", matchHandler.Get).Methods(http.MethodGet)
	matches.HandleFunc("/{id}/join", matchHandler.Join).Methods(http.MethodPost)
	matches.HandleFunc("/{id}/plays", matchHandler.Play).Methods(http.MethodPost)
	matches.HandleFunc("/{id}/plays", matchHandler.Plays).Methods(http.MethodGet)
	matches.HandleFunc("/{id}/log", matchHandler.Log).Methods(http.MethodGet)
	matches.HandleFunc("/{id}/concede", matchHandler.Concede).Methods(http.MethodPost)
	matches.HandleFunc("/{id}/verify", matchHandler.Verify).Methods(http.MethodGet)
	matches.HandleFunc("/{id}/transactions", matchHandler.Transactions).Methods(http.MethodGet)
	matches.HandleFunc("/{id}/events", matchHandler.Events).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
