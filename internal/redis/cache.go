package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"ridepool/internal/domain"
	"ridepool/internal/repository"
)

const pricingCacheKey = "cache:pricing:active"

// cachedPricing is the JSON form of an active pricing config.
type cachedPricing struct {
	ID                   string    `json:"id"`
	Version              string    `json:"version"`
	SystemCommissionRate float64   `json:"system_commission_rate"`
	ValidFrom            time.Time `json:"valid_from"`
	ValidUntil           time.Time `json:"valid_until"`
}

// PricingCache is a read-through cache in front of the pricing store.
// Redis errors fall through to the store.
type PricingCache struct {
	client *redis.Client
	next   repository.PricingRepository
	ttl    time.Duration
}

// NewPricingCache creates a PricingCache over next.
func NewPricingCache(client *redis.Client, next repository.PricingRepository, ttl time.Duration) *PricingCache {
	return &PricingCache{client: client, next: next, ttl: ttl}
}

// FindActive returns the cached config if it is still valid at the given time, else loads and caches it.
func (c *PricingCache) FindActive(ctx context.Context, at time.Time) (*domain.PricingConfig, error) {
	if cfg, err := c.get(ctx); err == nil && cfg != nil && cfg.ActiveAt(at) {
		return cfg, nil
	}

	cfg, err := c.next.FindActive(ctx, at)
	if err != nil {
		return nil, err
	}
	_ = c.set(ctx, cfg)
	return cfg, nil
}

func (c *PricingCache) get(ctx context.Context) (*domain.PricingConfig, error) {
	data, err := c.client.Get(ctx, pricingCacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var cached cachedPricing
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return &domain.PricingConfig{
		ID:                   cached.ID,
		Version:              cached.Version,
		SystemCommissionRate: cached.SystemCommissionRate,
		ValidFrom:            cached.ValidFrom,
		ValidUntil:           cached.ValidUntil,
	}, nil
}

func (c *PricingCache) set(ctx context.Context, cfg *domain.PricingConfig) error {
	data, err := json.Marshal(cachedPricing{
		ID:                   cfg.ID,
		Version:              cfg.Version,
		SystemCommissionRate: cfg.SystemCommissionRate,
		ValidFrom:            cfg.ValidFrom,
		ValidUntil:           cfg.ValidUntil,
	})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, pricingCacheKey, data, c.ttl).Err()
}
