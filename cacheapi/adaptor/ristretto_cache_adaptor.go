package cachewrap

import (
	"context"
	"time"

	"github.com/1357310795/tboxdav/cacheapi"
	"github.com/dgraph-io/ristretto/v2"
)

type LimitRistrettoKey interface {
	uint64 | string | byte | int | int32 | uint32 | int64
}

type ristrettoCacheWrap[K LimitRistrettoKey, V any] struct {
	c   *ristretto.Cache[K, V]
	ttl time.Duration
}

func (r *ristrettoCacheWrap[K, V]) Get(ctx context.Context, k K) (V, error) {
	v, ok := r.c.Get(k)
	if !ok {
		return v, cacheapi.ErrCacheKeyNotExist
	}
	return v, nil
}

func (r *ristrettoCacheWrap[K, V]) Set(ctx context.Context, k K, v V) error {
	_ = r.c.SetWithTTL(k, v, 0, r.ttl)
	return nil
}

func (r *ristrettoCacheWrap[K, V]) Del(ctx context.Context, k K) error {
	r.c.Del(k)
	return nil
}

// WrapRistrettoCache ttl为0时表示不过期
func WrapRistrettoCache[K LimitRistrettoKey, V any](c *ristretto.Cache[K, V], ttl time.Duration) cacheapi.ICache[K, V] {
	return &ristrettoCacheWrap[K, V]{c: c, ttl: ttl}
}
