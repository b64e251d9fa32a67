package cache

import (
	"context"
	"time"

	"github.com/coocood/freecache"
	"github.com/pkg/errors"
)

type FreeCacheOptions struct {
	// 缓存容量，单位字节，freecache 最小 512KB
	Size int `cfg:"size" def:"33554432"`
}

// FreeCache 进程内缓存
type FreeCache struct {
	cache *freecache.Cache
}

func NewFreeCacheWithOptions(options *FreeCacheOptions) (*FreeCache, error) {
	size := 32 * 1024 * 1024
	if options != nil && options.Size > 0 {
		size = options.Size
	}
	return &FreeCache{cache: freecache.NewCache(size)}, nil
}

func (c *FreeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.cache.Get([]byte(key))
	if errors.Is(err, freecache.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "freecache get %q", key)
	}
	return val, true, nil
}

func (c *FreeCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	expireSeconds := 0
	if ttl > 0 {
		// freecache 以秒为单位，不足一秒按一秒计
		expireSeconds = int((ttl + time.Second - 1) / time.Second)
	}
	if err := c.cache.Set([]byte(key), val, expireSeconds); err != nil {
		return errors.Wrapf(err, "freecache set %q", key)
	}
	return nil
}

func (c *FreeCache) Close() error {
	c.cache.Clear()
	return nil
}
