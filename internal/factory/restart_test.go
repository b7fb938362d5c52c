package factory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/koragame/internal/model"
	"github.com/mcoot/koragame/internal/services/timer"
	redisstorage "github.com/mcoot/koragame/internal/storage/redis"
	"github.com/mcoot/koragame/internal/testutil"
)

func TestRestartRestoresTurnDeadlinesFromRedis(t *testing.T) {
	mini := miniredis.RunT(t)
	redisCfg := redisstorage.DefaultConfig()
	redisCfg.URL = "redis://" + mini.Addr()
	cfg := Config{
		Logger:      testutil.NopLogger(),
		StorageType: StorageTypeRedis,
		RedisConfig: &redisCfg,
		TimerConfig: timer.Config{TurnTimeout: time.Minute, Policy: model.TimeoutAutoplay},
	}
	ctx := context.Background()

	before, err := New(cfg)
	require.NoError(t, err)
	for _, id := range []model.PlayerID{"alice", "bob"} {
		require.NoError(t, before.Storage.SavePlayer(ctx, &model.Player{ID: id, DisplayName: string(id), IsGuest: true}))
	}
	m, err := before.MatchController.CreateMatch(ctx, "alice", 10)
	require.NoError(t, err)
	m, err = before.MatchController.JoinMatch(ctx, m.ID, "bob", "0123456789abcdef")
	require.NoError(t, err)
	_, armed := before.Timer.Pending(m.ID)
	require.True(t, armed)
	require.NoError(t, before.Close())

	after, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = after.Close() })

	_, armed = after.Timer.Pending(m.ID)
	assert.False(t, armed, "deadlines are not persisted")

	n, err := after.Timer.Restore(ctx, after.Storage)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	d, armed := after.Timer.Pending(m.ID)
	require.True(t, armed)
	assert.Equal(t, m.CurrentTurn, d.Turn)
}
