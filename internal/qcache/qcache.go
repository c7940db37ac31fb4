// Package qcache is an optional Redis-backed cache for read-query
// results. Schema lookups are never cached — they must always reflect
// live catalog state — so callers only consult qcache for statements
// already classified as reads.
package qcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache wraps a Redis client with JSON encode/decode and a fixed TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a Cache talking to the Redis server at addr. The client
// connects lazily; an unreachable Redis degrades to cache misses.
func New(addr string, ttl time.Duration) *Cache {
	return &Cache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

// Key derives a stable cache key from the target name, SQL text, and
// bound parameters.
func Key(target, sql string, params []any) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00", target, sql)
	encoded, _ := json.Marshal(params)
	h.Write(encoded)
	return "sqlgate:q:" + hex.EncodeToString(h.Sum(nil))
}

// Get loads the entry under key into out. The second return is false
// on a miss.
func (c *Cache) Get(ctx context.Context, key string, out any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores v under key with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Close releases the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
