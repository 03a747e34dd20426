package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GTDGit/fabric_api/internal/models"
)

// ProductCache caches public product detail reads.
// Primary key: product:id:{id} holds the JSON document.
// Secondary key: product:slug:{slug} points to the id.
type ProductCache struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewProductCache creates a new ProductCache.
func NewProductCache(redis *RedisClient, ttl time.Duration) *ProductCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ProductCache{redis: redis, ttl: ttl}
}

func (c *ProductCache) keyByID(id string) string {
	return fmt.Sprintf("product:id:%s", id)
}

func (c *ProductCache) keyBySlug(slug string) string {
	return fmt.Sprintf("product:slug:%s", slug)
}

// Set stores the product under both keys.
func (c *ProductCache) Set(ctx context.Context, p *models.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}
	if err := c.redis.Set(ctx, c.keyByID(p.ID), string(data), c.ttl); err != nil {
		return fmt.Errorf("failed to set primary key: %w", err)
	}
	if err := c.redis.Set(ctx, c.keyBySlug(p.Slug), p.ID, c.ttl); err != nil {
		return fmt.Errorf("failed to set slug key: %w", err)
	}
	return nil
}

// GetByID returns a cached product or ErrMiss.
func (c *ProductCache) GetByID(ctx context.Context, id string) (*models.Product, error) {
	data, err := c.redis.Get(ctx, c.keyByID(id))
	if err != nil {
		return nil, err
	}
	var p models.Product
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product: %w", err)
	}
	return &p, nil
}

// GetBySlug resolves the slug key and returns the cached product or ErrMiss.
func (c *ProductCache) GetBySlug(ctx context.Context, slug string) (*models.Product, error) {
	id, err := c.redis.Get(ctx, c.keyBySlug(slug))
	if err != nil {
		return nil, err
	}
	return c.GetByID(ctx, id)
}

// Invalidate drops both keys of a product.
func (c *ProductCache) Invalidate(ctx context.Context, id, slug string) error {
	keys := []string{c.keyByID(id)}
	if slug != "" {
		keys = append(keys, c.keyBySlug(slug))
	}
	return c.redis.Delete(ctx, keys...)
}
