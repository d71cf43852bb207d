package pos

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// SearchCache keeps recent autocomplete results in Redis for a short
// TTL. The counter UI fires a search on every quiet period while the
// operator types; the cache bounds the database load the same burst of
// near-identical queries would otherwise cause.
type SearchCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSearchCache constructs the cache. A nil client disables caching.
func NewSearchCache(client *redis.Client, ttl time.Duration) *SearchCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SearchCache{client: client, ttl: ttl}
}

func searchKey(kind, query string) string {
	return "pdv:busca:" + kind + ":" + strings.ToLower(strings.TrimSpace(query))
}

func (c *SearchCache) get(ctx context.Context, key string, target any) bool {
	if c == nil || c.client == nil {
		return false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, target) == nil
}

func (c *SearchCache) set(ctx context.Context, key string, value any) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	// Cache write failures are invisible to the operator; the next
	// lookup just goes to the database.
	_ = c.client.Set(ctx, key, data, c.ttl).Err()
}
