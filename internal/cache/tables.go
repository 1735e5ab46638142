package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tablebooking/internal/domain"
)

const (
	keyTablesAll    = "tables:all"
	keyTablesActive = "tables:active"
)

// TableCache holds table catalog snapshots for listings. A nil *TableCache
// or nil client behaves as an always-missing cache.
type TableCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTableCache(client *redis.Client, ttl time.Duration) *TableCache {
	return &TableCache{client: client, ttl: ttl}
}

func (c *TableCache) enabled() bool {
	return c != nil && c.client != nil
}

func tablesKey(activeOnly bool) string {
	if activeOnly {
		return keyTablesActive
	}
	return keyTablesAll
}

// Get returns the cached listing and whether it was present.
func (c *TableCache) Get(ctx context.Context, activeOnly bool) ([]domain.Table, bool, error) {
	if !c.enabled() {
		return nil, false, nil
	}
	val, err := c.client.Get(ctx, tablesKey(activeOnly)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get tables from redis: %w", err)
	}

	var tables []domain.Table
	if err := json.Unmarshal(val, &tables); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal tables: %w", err)
	}
	return tables, true, nil
}

func (c *TableCache) Set(ctx context.Context, activeOnly bool, tables []domain.Table) error {
	if !c.enabled() {
		return nil
	}
	data, err := json.Marshal(tables)
	if err != nil {
		return fmt.Errorf("failed to marshal tables: %w", err)
	}
	if err := c.client.Set(ctx, tablesKey(activeOnly), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set tables in redis: %w", err)
	}
	return nil
}

// Invalidate drops every cached listing.
func (c *TableCache) Invalidate(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	if err := c.client.Del(ctx, keyTablesAll, keyTablesActive).Err(); err != nil {
		return fmt.Errorf("failed to invalidate tables in redis: %w", err)
	}
	return nil
}
