package snapcache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/updown-rounds-poc/internal/round/snapcache"
	"github.com/radieske/updown-rounds-poc/internal/shared/testutil"
	"github.com/radieske/updown-rounds-poc/pkg/contracts/events"
)

func event(id, phase string, opened time.Time, version int64) events.RoundEvent {
	return events.RoundEvent{
		Type:    events.RoundOpened,
		Round:   events.RoundSnapshot{RoundID: id, Phase: phase, OpenedAt: opened, NeutralIndex: "100"},
		Version: version,
	}
}

func TestApply_KeepsNewestRoundCurrent(t *testing.T) {
	c := snapcache.New(testutil.SetupTestRedis(t), time.Minute)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, ok, err := c.Current(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	changed, err := c.Apply(ctx, event("r-2", "OPEN", t0.Add(20*time.Second), 1))
	require.NoError(t, err)
	assert.True(t, changed)

	// evento atrasado da rodada anterior não sobrescreve o corrente
	changed, err = c.Apply(ctx, event("r-1", "CLOSED", t0, 4))
	require.NoError(t, err)
	assert.False(t, changed)

	cur, ok, err := c.Current(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r-2", cur.RoundID)

	old, ok, err := c.Round(ctx, "r-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "CLOSED", old.Phase)
}

func TestApply_IgnoresStaleVersion(t *testing.T) {
	c := snapcache.New(testutil.SetupTestRedis(t), time.Minute)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := c.Apply(ctx, event("r-1", "PROCESSING", t0, 2))
	require.NoError(t, err)
	changed, err := c.Apply(ctx, event("r-1", "OPEN", t0, 1))
	require.NoError(t, err)
	assert.False(t, changed)

	cur, _, err := c.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "PROCESSING", cur.Phase)
}
