package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/safar/farm-market/internal/models"
)

const keyAvailableProducts = "catalog:available"

// Catalog is a short-TTL read-through cache for the public available-products
// listing. The database stays the source of truth: cache failures fall back
// to it and writes just invalidate the key. A nil Catalog disables caching.
type Catalog struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCatalog(addr string, ttl time.Duration) *Catalog {
	if addr == "" {
		return nil
	}
	return &Catalog{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		ttl: ttl,
	}
}

// GetAvailable returns the cached listing, or ok=false on miss or any cache
// error.
func (c *Catalog) GetAvailable(ctx context.Context) ([]models.Product, bool) {
	if c == nil {
		return nil, false
	}

	raw, err := c.rdb.Get(ctx, keyAvailableProducts).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Catalog cache get: %v", err)
		}
		return nil, false
	}

	var products []models.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		log.Printf("Catalog cache decode: %v", err)
		return nil, false
	}

	return products, true
}

func (c *Catalog) SetAvailable(ctx context.Context, products []models.Product) {
	if c == nil {
		return
	}

	raw, err := json.Marshal(products)
	if err != nil {
		log.Printf("Catalog cache encode: %v", err)
		return
	}

	if err := c.rdb.Set(ctx, keyAvailableProducts, raw, c.ttl).Err(); err != nil {
		log.Printf("Catalog cache set: %v", err)
	}
}

// Invalidate drops the listing after any product write. Stock movements from
// orders are left to the TTL.
func (c *Catalog) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.rdb.Del(ctx, keyAvailableProducts).Err(); err != nil {
		log.Printf("Catalog cache invalidate: %v", err)
	}
}

func (c *Catalog) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
