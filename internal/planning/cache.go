package planning

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"alteris/gateway/internal/clients"
	"alteris/gateway/internal/model"
)

const promotionsKey = "planning:promotions"

// Cache is a read-through promotion cache in front of the admin
// service. Without a redis client every call hits the service.
type Cache struct {
	admin  *clients.AdminClient
	client *redis.Client
	ttl    time.Duration
}

func NewCache(admin *clients.AdminClient, client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{admin: admin, client: client, ttl: ttl}
}

// Promotions returns the cached promotion list, fetching and storing
// it on a miss.
func (c *Cache) Promotions(ctx context.Context, token string) ([]model.Promotion, error) {
	if c.client != nil {
		data, err := c.client.Get(ctx, promotionsKey).Bytes()
		if err == nil {
			var promotions []model.Promotion
			if err := json.Unmarshal(data, &promotions); err == nil {
				return promotions, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			return nil, err
		}
	}
	return c.fetch(ctx, token)
}

// Index builds the semester index from the cached promotions.
func (c *Cache) Index(ctx context.Context, token string) (*Index, error) {
	promotions, err := c.Promotions(ctx, token)
	if err != nil {
		return nil, err
	}
	return BuildIndex(promotions), nil
}

// Refresh forces a fetch and rewrites the cache entry.
func (c *Cache) Refresh(ctx context.Context, token string) error {
	_, err := c.fetch(ctx, token)
	return err
}

func (c *Cache) fetch(ctx context.Context, token string) ([]model.Promotion, error) {
	promotions, err := c.admin.Promotions(ctx, token)
	if err != nil {
		return nil, err
	}
	if c.client != nil {
		if data, err := json.Marshal(promotions); err == nil {
			_ = c.client.Set(ctx, promotionsKey, data, c.ttl).Err()
		}
	}
	return promotions, nil
}
