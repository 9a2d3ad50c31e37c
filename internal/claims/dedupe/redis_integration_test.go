//go:build integration

package dedupe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keybridge/pkg/testutil/containers"
)

func TestRedisMarkerFirstWins(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	m := NewRedisMarker(rc.Client)

	first, err := m.MarkProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := m.MarkProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, again)

	// The marker carries a TTL so a replayed segment cannot resurrect the event.
	ttl, err := rc.Client.TTL(ctx, processedEventKeyPrefix+"evt-1").Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)

	other, err := m.MarkProcessed(ctx, "evt-2")
	require.NoError(t, err)
	assert.True(t, other)
}
