package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"jobtrack-service/internal/schedule"
)

// AvailabilityCache keeps recently assembled grids in redis so repeated loads
// of a booking page don't re-hit the calendar API. Entries are short-lived
// and dropped for the whole host whenever one of their bookings confirms.
type AvailabilityCache struct {
	Client *redis.Client
	TTL    time.Duration
}

const availabilityKeyPrefix = "availability:"

func (c *AvailabilityCache) key(hostID string, days, durationMins int) string {
	return fmt.Sprintf("%s%s:%d:%d", availabilityKeyPrefix, hostID, days, durationMins)
}

func (c *AvailabilityCache) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return time.Minute
}

func (c *AvailabilityCache) Get(ctx context.Context, hostID string, days, durationMins int) ([]schedule.DaySlots, bool) {
	if c == nil || c.Client == nil {
		return nil, false
	}
	val, err := c.Client.Get(ctx, c.key(hostID, days, durationMins)).Result()
	if err != nil {
		return nil, false
	}
	var grid []schedule.DaySlots
	if err := json.Unmarshal([]byte(val), &grid); err != nil {
		return nil, false
	}
	return grid, true
}

func (c *AvailabilityCache) Set(ctx context.Context, hostID string, days, durationMins int, grid []schedule.DaySlots) {
	if c == nil || c.Client == nil {
		return
	}
	data, err := json.Marshal(grid)
	if err != nil {
		return
	}
	c.Client.Set(ctx, c.key(hostID, days, durationMins), data, c.ttl())
}

// Invalidate drops every cached grid for the host.
func (c *AvailabilityCache) Invalidate(ctx context.Context, hostID string, logger *zap.Logger) {
	if c == nil || c.Client == nil {
		return
	}
	pattern := availabilityKeyPrefix + hostID + ":*"
	keys, err := c.Client.Keys(ctx, pattern).Result()
	if err != nil {
		if logger != nil {
			logger.Warn("availability cache invalidation failed", zap.String("host_id", hostID), zap.Error(err))
		}
		return
	}
	if len(keys) > 0 {
		c.Client.Del(ctx, keys...)
	}
}
