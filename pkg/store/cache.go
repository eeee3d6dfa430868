package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"bookkreate/pkg/domain"
)

const defaultCacheTTL = 5 * time.Minute

// Cache is a best-effort Redis cache in front of the Store. Invalidation
// rules: any book mutation refreshes "book:{id}" and drops the owner's
// "books:owner:{uid}" list; any profile mutation refreshes "profile:{uid}".
// All operations swallow Redis errors and degrade to cache misses, so a
// broken cache never fails a request.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache connects the cache to Redis.
func NewCache(addr, password string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
		ttl:    ttl,
	}
}

// GetBook returns a cached book, if present.
func (c *Cache) GetBook(ctx context.Context, id string) (domain.Book, bool) {
	var book domain.Book
	if !c.get(ctx, "book:"+id, &book) {
		return domain.Book{}, false
	}
	return book, true
}

// SetBook caches a book and drops the owner's stale list entry.
func (c *Cache) SetBook(ctx context.Context, b domain.Book) {
	c.set(ctx, "book:"+b.ID, b)
	c.del(ctx, "books:owner:"+b.UserID)
}

// DeleteBook drops a book and its owner's list entry.
func (c *Cache) DeleteBook(ctx context.Context, id, ownerID string) {
	c.del(ctx, "book:"+id)
	c.del(ctx, "books:owner:"+ownerID)
}

// GetBooksByOwner returns a cached owner listing, if present.
func (c *Cache) GetBooksByOwner(ctx context.Context, ownerID string) ([]domain.Book, bool) {
	var books []domain.Book
	if !c.get(ctx, "books:owner:"+ownerID, &books) {
		return nil, false
	}
	return books, true
}

// SetBooksByOwner caches an owner listing.
func (c *Cache) SetBooksByOwner(ctx context.Context, ownerID string, books []domain.Book) {
	c.set(ctx, "books:owner:"+ownerID, books)
}

// GetProfile returns a cached profile, if present.
func (c *Cache) GetProfile(ctx context.Context, uid string) (domain.UserProfile, bool) {
	var p domain.UserProfile
	if !c.get(ctx, "profile:"+uid, &p) {
		return domain.UserProfile{}, false
	}
	return p, true
}

// SetProfile caches a profile.
func (c *Cache) SetProfile(ctx context.Context, p domain.UserProfile) {
	c.set(ctx, "profile:"+p.UID, p)
}

// DeleteProfile drops a cached profile.
func (c *Cache) DeleteProfile(ctx context.Context, uid string) {
	c.del(ctx, "profile:"+uid)
}

func (c *Cache) get(ctx context.Context, key string, out any) bool {
	if c == nil {
		return false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (c *Cache) set(ctx context.Context, key string, value any) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key, raw, c.ttl).Err()
}

func (c *Cache) del(ctx context.Context, key string) {
	if c == nil {
		return
	}
	_ = c.client.Del(ctx, key).Err()
}
