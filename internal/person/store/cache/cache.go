// Package cache wraps a RecordStore with a Redis read-through cache.
// Writes go through to the inner store and refresh the cached copy, so a
// read after a write on the same instance never observes a stale record.
// Cache misses and Redis outages degrade to the inner store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"civreg/internal/person/models"
	"civreg/internal/person/store"
)

const recordKeyPrefix = "reg:record:"

// Records is a caching RecordStore decorator.
type Records struct {
	inner  store.RecordStore
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRecords(inner store.RecordStore, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Records {
	return &Records{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (c *Records) Create(ctx context.Context, p *models.Person) error {
	if err := c.inner.Create(ctx, p); err != nil {
		return err
	}
	c.set(ctx, p)
	return nil
}

func (c *Records) Update(ctx context.Context, p *models.Person) error {
	if err := c.inner.Update(ctx, p); err != nil {
		return err
	}
	c.set(ctx, p)
	return nil
}

func (c *Records) Find(ctx context.Context, healthID string) (*models.Person, error) {
	raw, err := c.client.Get(ctx, recordKeyPrefix+healthID).Bytes()
	if err == nil {
		var p models.Person
		if err := json.Unmarshal(raw, &p); err == nil {
			return &p, nil
		}
		// A cached row that fails to decode is dropped, not trusted.
		c.client.Del(ctx, recordKeyPrefix+healthID)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "record cache read failed",
			slog.String("health_id", healthID),
			slog.String("error", err.Error()))
	}

	p, err := c.inner.Find(ctx, healthID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, p)
	return p, nil
}

func (c *Records) set(ctx context.Context, p *models.Person) {
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, recordKeyPrefix+p.HealthID, raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "record cache write failed",
			slog.String("health_id", p.HealthID),
			slog.String("error", err.Error()))
	}
}
