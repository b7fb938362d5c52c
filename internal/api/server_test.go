package api_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/koragame/internal/api"
	"github.com/mcoot/koragame/internal/factory"
	"github.com/mcoot/koragame/internal/model"
	"github.com/mcoot/koragame/internal/testutil"
)

type failingMatches struct{}

func (failingMatches) ListActiveMatches(ctx context.Context) ([]*model.Match, error) {
	return nil, errors.New("storage offline")
}

func testServerConfig() api.ServerConfig {
	cfg := api.DefaultServerConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.TimerInterval = 5 * time.Millisecond
	cfg.HubCleanupInterval = 5 * time.Millisecond
	cfg.ShutdownTimeout = time.Second
	return cfg
}

func TestServerOwnsBackgroundWorkers(t *testing.T) {
	app := factory.NewTestApp()
	ctx := context.Background()

	stored := &model.Match{
		ID:              "RESTORED0001",
		Players:         [model.SeatCount]model.PlayerID{"alice", "bob"},
		Status:          model.MatchStatusDealt,
		CurrentPlayerID: "alice",
		KoraMultiplier:  1,
	}
	require.NoError(t, app.Storage.CreateMatch(ctx, stored))

	const watched model.MatchID = "WATCHED00001"
	app.HubManager.GetOrCreateHub(watched)

	server := api.NewServer(http.NotFoundHandler(), testServerConfig(), api.Workers{
		Timer:   app.Timer,
		Matches: app.Storage,
		Hubs:    app.HubManager,
	}, testutil.NopLogger())

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	require.Eventually(t, func() bool {
		_, ok := app.Timer.Pending(stored.ID)
		return ok
	}, time.Second, 5*time.Millisecond, "stored match deadline is re-armed")

	require.Eventually(t, func() bool {
		return app.HubManager.GetHub(watched) == nil
	}, time.Second, 5*time.Millisecond, "idle hubs are cleaned up")

	require.NoError(t, server.Shutdown(ctx))
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}

	assert.ErrorIs(t, server.Start(), http.ErrServerClosed)
}

func TestServerShutdownEndsEventStreams(t *testing.T) {
	app := factory.NewTestApp()
	const streaming model.MatchID = "STREAMING001"
	app.HubManager.GetOrCreateHub(streaming)

	server := api.NewServer(http.NotFoundHandler(), testServerConfig(), api.Workers{
		Hubs: app.HubManager,
	}, testutil.NopLogger())
	require.NoError(t, server.Shutdown(context.Background()))

	assert.Nil(t, app.HubManager.GetHub(streaming))
}

func TestServerStartFailsWhenDeadlinesCannotBeRestored(t *testing.T) {
	app := factory.NewTestApp()

	server := api.NewServer(http.NotFoundHandler(), testServerConfig(), api.Workers{
		Timer:   app.Timer,
		Matches: failingMatches{},
	}, testutil.NopLogger())

	err := server.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restore turn deadlines")
	assert.Contains(t, err.Error(), "storage offline")
	require.NoError(t, server.Shutdown(context.Background()))
}
