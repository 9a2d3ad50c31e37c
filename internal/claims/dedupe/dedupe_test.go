package dedupe

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMarkerFirstWins(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMarker()

	first, err := m.MarkProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := m.MarkProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := m.MarkProcessed(ctx, "evt-2")
	require.NoError(t, err)
	assert.True(t, other)
}

func TestMemoryMarkerEmptyIDNeverDeduplicates(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMarker()

	for i := 0; i < 3; i++ {
		first, err := m.MarkProcessed(ctx, "")
		require.NoError(t, err)
		assert.True(t, first)
	}
}

func TestMemoryMarkerConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMarker()

	const workers = 16
	var wg sync.WaitGroup
	wins := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, err := m.MarkProcessed(ctx, "evt-contested")
			assert.NoError(t, err)
			wins <- first
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for w := range wins {
		if w {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}
