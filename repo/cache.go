package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

type BaseCache interface {
	Get(ctx context.Context, prefix string, uniqKey interface{}) (interface{}, bool)
	Set(ctx context.Context, prefix string, uniqKey, value interface{})
	Del(ctx context.Context, prefix string, uniqKey interface{})
	Flush(ctx context.Context)
	Close(ctx context.Context) error
}

type baseCache struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewBaseCache(_ context.Context, ttl time.Duration) BaseCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &baseCache{
		cache: cache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

func (bc *baseCache) Get(_ context.Context, prefix string, uniqKey interface{}) (interface{}, bool) {
	return bc.cache.Get(bc.getKey(prefix, uniqKey))
}

func (bc *baseCache) Set(_ context.Context, prefix string, uniqKey, value interface{}) {
	bc.cache.Set(bc.getKey(prefix, uniqKey), value, bc.ttl)
}

func (bc *baseCache) Del(_ context.Context, prefix string, uniqKey interface{}) {
	bc.cache.Delete(bc.getKey(prefix, uniqKey))
}

func (bc *baseCache) getKey(prefix string, uniqKey interface{}) string {
	return fmt.Sprintf("%s:%v", prefix, uniqKey)
}

func (bc *baseCache) Flush(_ context.Context) {
	bc.cache.Flush()
}

func (bc *baseCache) Close(ctx context.Context) error {
	bc.Flush(ctx)
	return nil
}
