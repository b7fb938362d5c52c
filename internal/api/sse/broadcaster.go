package sse

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mcoot/koragame/internal/api/response"
	"github.com/mcoot/koragame/internal/model"
)

// Broadcaster forwards controller events to the match's hub. It implements
// match.Observer.
type Broadcaster struct {
	hubManager *HubManager
	logger     *slog.Logger
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hubManager *HubManager, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hubManager: hubManager,
		logger:     logger.With(slog.String("component", "sse-broadcaster")),
	}
}

// OnEvent sends the event to anyone watching its match
func (b *Broadcaster) OnEvent(_ context.Context, event model.Event) {
	hub := b.hubManager.GetHub(event.MatchID)
	if hub == nil {
		return
	}

	data, err := json.Marshal(response.EventFromModel(event))
	if err != nil {
		b.logger.Error("sse failed to encode event",
			slog.String("match_id", string(event.MatchID)),
			slog.String("type", string(event.Type)),
			slog.Any("error", err))
		return
	}
	hub.BroadcastEvent(string(event.Type), string(data))
}
