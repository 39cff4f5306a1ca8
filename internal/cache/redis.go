// Package cache provides a Redis-backed cache for the open-date sets the
// task engine computes per calendar zone.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"followups/pkg/calendar"
)

// DefaultKey is the hash holding one field per zone.
const DefaultKey = "followups:open-dates"

// RedisDates implements task.DateCache on a single Redis hash. Every
// write to the task store invalidates all zones at once by deleting it.
type RedisDates struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisDates creates a RedisDates. An empty key means DefaultKey.
func NewRedisDates(client *redis.Client, key string, ttl time.Duration) *RedisDates {
	if key == "" {
		key = DefaultKey
	}
	return &RedisDates{client: client, key: key, ttl: ttl}
}

// Dial parses a redis:// URL, connects and pings.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Load returns the cached set for zone. The bool is false on a miss.
func (c *RedisDates) Load(ctx context.Context, zone string) (calendar.DateSet, bool, error) {
	data, err := c.client.HGet(ctx, c.key, zone).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get %s: %w", zone, err)
	}

	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, false, fmt.Errorf("cache unmarshal %s: %w", zone, err)
	}
	set, err := calendar.SetFromStrings(values)
	if err != nil {
		return nil, false, fmt.Errorf("cache decode %s: %w", zone, err)
	}
	return set, true, nil
}

// Save stores dates for zone and refreshes the key's TTL.
func (c *RedisDates) Save(ctx context.Context, zone string, dates calendar.DateSet) error {
	data, err := json.Marshal(dates.Strings())
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", zone, err)
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, c.key, zone, data)
		if c.ttl > 0 {
			pipe.Expire(ctx, c.key, c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache set %s: %w", zone, err)
	}
	return nil
}

// Invalidate drops every zone.
func (c *RedisDates) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}
