// Package dedupe marks lifecycle events as processed so re-deliveries are
// skipped before they reach the stores or the gateway. The engine's rules are
// idempotent on their own; the marker keeps duplicate work (and duplicate
// no-op log lines) off the hot path across instances.
package dedupe

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefix for processed lifecycle events
	processedEventKeyPrefix = "claims:evt:"

	// Markers outlive the bus retention window so a replayed segment cannot
	// resurrect an event.
	defaultTTL = 72 * time.Hour
)

// Marker records processed event IDs.
type Marker interface {
	// MarkProcessed records an event ID. It returns true if this call was the
	// first to record it, false if the event was already processed.
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
}

// RedisMarker is the production implementation, shared across instances.
type RedisMarker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisMarker(client *redis.Client) *RedisMarker {
	return &RedisMarker{client: client, ttl: defaultTTL}
}

// MarkProcessed uses SETNX so exactly one concurrent worker wins.
func (m *RedisMarker) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		// Events without an ID cannot be deduplicated; let the engine's
		// idempotent rules absorb them.
		return true, nil
	}
	return m.client.SetNX(ctx, processedEventKeyPrefix+eventID, "1", m.ttl).Result()
}

// MemoryMarker backs unit tests and single-instance deployments without redis.
type MemoryMarker struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryMarker() *MemoryMarker {
	return &MemoryMarker{seen: make(map[string]struct{})}
}

func (m *MemoryMarker) MarkProcessed(_ context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return true, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[eventID]; ok {
		return false, nil
	}
	m.seen[eventID] = struct{}{}
	return true, nil
}
