// Package cache keeps projected availability calendars in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	reservationDomain "github.com/banquethub/service-reservation/internal/domain/reservation"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "availability"

// RedisAvailabilityCache implements application.AvailabilityCache on Redis.
// Each venue has a generation counter; calendar keys embed it, so bumping the
// counter orphans every cached calendar of the venue until its TTL expires.
type RedisAvailabilityCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewRedisAvailabilityCache creates a cache whose calendar entries live for ttl.
func NewRedisAvailabilityCache(rdb redis.Cmdable, ttl time.Duration) *RedisAvailabilityCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisAvailabilityCache{rdb: rdb, ttl: ttl}
}

func generationKey(venueID uuid.UUID) string {
	return fmt.Sprintf("%s:gen:%s", keyPrefix, venueID)
}

func calendarKey(venueID uuid.UUID, gen int64, from, to, today reservationDomain.Date) string {
	return fmt.Sprintf("%s:cal:%s:%d:%s:%s:%s", keyPrefix, venueID, gen, from, to, today)
}

// Generation returns the venue's current generation; a venue never
// invalidated is at generation 0.
func (c *RedisAvailabilityCache) Generation(ctx context.Context, venueID uuid.UUID) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey(venueID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read availability generation: %w", err)
	}
	return gen, nil
}

// Get returns the calendar cached for the range at generation gen.
func (c *RedisAvailabilityCache) Get(ctx context.Context, venueID uuid.UUID, gen int64, from, to, today reservationDomain.Date) (reservationDomain.Calendar, bool, error) {
	raw, err := c.rdb.Get(ctx, calendarKey(venueID, gen, from, to, today)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read availability: %w", err)
	}

	var cal reservationDomain.Calendar
	if err := json.Unmarshal(raw, &cal); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached availability: %w", err)
	}
	return cal, true, nil
}

// Put caches cal for the range at generation gen.
func (c *RedisAvailabilityCache) Put(ctx context.Context, venueID uuid.UUID, gen int64, from, to, today reservationDomain.Date, cal reservationDomain.Calendar) error {
	raw, err := json.Marshal(cal)
	if err != nil {
		return fmt.Errorf("failed to encode availability: %w", err)
	}
	if err := c.rdb.SetEx(ctx, calendarKey(venueID, gen, from, to, today), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache availability: %w", err)
	}
	return nil
}

// Invalidate moves the venue to a new generation.
func (c *RedisAvailabilityCache) Invalidate(ctx context.Context, venueID uuid.UUID) error {
	if err := c.rdb.Incr(ctx, generationKey(venueID)).Err(); err != nil {
		return fmt.Errorf("failed to bump availability generation: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable. It backs the readiness probe.
func (c *RedisAvailabilityCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// NewClient builds a Redis client and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}
