package sse

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/koragame/internal/api/response"
	"github.com/mcoot/koragame/internal/model"
	"github.com/mcoot/koragame/internal/testutil"
)

func TestBroadcaster_ForwardsEventAsJSON(t *testing.T) {
	manager := NewHubManager(testutil.NopLogger())
	defer manager.Close()
	broadcaster := NewBroadcaster(manager, testutil.NopLogger())

	hub := manager.GetOrCreateHub("MATCH1")
	client := NewClient(hub, "bob")
	hub.Register(client)
	registered(t, hub, 1)

	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	play := model.Play{MatchID: "MATCH1", Turn: 0, PlayerID: "alice", Card: model.Card{Suit: model.SuitSpades, Rank: 10}, PlayedAt: at}
	spades := model.SuitSpades
	broadcaster.OnEvent(context.Background(), model.Event{
		Type:      model.EventPlayAccepted,
		Timestamp: at,
		MatchID:   "MATCH1",
		PlayerID:  "alice",
		Turn:      1,
		Payload:   model.PlayAcceptedPayload{Play: play, CurrentPlayerID: "bob", DemandedSuit: &spades},
	})

	msg := receive(t, client)
	require.True(t, strings.HasPrefix(msg, "event: play_accepted\ndata: "))
	body := strings.TrimSuffix(strings.TrimPrefix(msg, "event: play_accepted\ndata: "), "\n\n")

	var got struct {
		response.Event
		Payload response.PlayAcceptedPayload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "MATCH1", got.MatchID)
	assert.Equal(t, 1, got.Turn)
	assert.Equal(t, "10S", got.Payload.Play.Card)
	assert.Equal(t, "bob", got.Payload.CurrentPlayerID)
	assert.Equal(t, string(model.SuitSpades), got.Payload.DemandedSuit)
}

func TestBroadcaster_IgnoresUnwatchedMatch(t *testing.T) {
	manager := NewHubManager(testutil.NopLogger())
	broadcaster := NewBroadcaster(manager, testutil.NopLogger())

	broadcaster.OnEvent(context.Background(), model.Event{Type: model.EventMatchCreated, MatchID: "NOBODY"})
	assert.Nil(t, manager.GetHub("NOBODY"), "events must not create hubs")
}
