// Package cache implements a read-through Redis cache in front of
// atlas.Wyrm.FetchTile. It caches only successfully composed tile bytes,
// keyed by group/z/x/y -- the index files it serves from are rebuilt
// wholesale at dig time, so there is no invalidation story beyond a TTL.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/openwyrm/wyrm/atlas"
)

// Cache wraps a Redis client with wyrm's tile key scheme.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New opens a Redis connection at addr. ttl is how long a cached tile
// stays valid before it's recomposed; zero means no expiry.
func New(addr string, ttl time.Duration) *Cache {
	return &Cache{rdb: redis.NewClient(&redis.Options{Addr: addr}), ttl: ttl}
}

// Close releases the underlying Redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

func tileKey(group string, z, x, y uint32) string {
	return fmt.Sprintf("wyrm:tile:%s:%d:%d:%d", group, z, x, y)
}

// FetchTile wraps w.FetchTile with a read-through cache. Only Ok results
// are cached; Empty/NotFound/InternalError are cheap enough to recompute
// that caching them would need their own invalidation path.
func (c *Cache) FetchTile(ctx context.Context, w *atlas.Wyrm, group string, z, x, y uint32) atlas.Result {
	if b, ok, err := c.get(ctx, group, z, x, y); err == nil && ok {
		return atlas.Result{Outcome: atlas.Ok, Bytes: b}
	}

	res := w.FetchTile(ctx, group, z, x, y)
	if res.Outcome == atlas.Ok {
		_ = c.set(ctx, group, z, x, y, res.Bytes)
	}
	return res
}

func (c *Cache) get(ctx context.Context, group string, z, x, y uint32) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, tileKey(group, z, x, y)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, pkgerrors.Wrap(err, "cache: get")
	}
	return b, true, nil
}

func (c *Cache) set(ctx context.Context, group string, z, x, y uint32, tile []byte) error {
	if err := c.rdb.Set(ctx, tileKey(group, z, x, y), tile, c.ttl).Err(); err != nil {
		return pkgerrors.Wrap(err, "cache: set")
	}
	return nil
}
