package cache

import (
	"context"
	"time"

	"github.com/hatlonely/morm/ref"
)

const Namespace = "github.com/hatlonely/morm/cache"

func init() {
	ref.MustRegisterT[*FreeCache](NewFreeCacheWithOptions)
	ref.MustRegisterT[*Redis](NewRedisWithOptions)
}

// Cache 查询结果缓存，未命中时返回 ok=false 且 err 为 nil
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// ttl 为 0 表示不过期
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Close() error
}

// NewCacheWithOptions 通过 ref 创建缓存，Namespace 为空时使用本包
func NewCacheWithOptions(options *ref.TypeOptions) (Cache, error) {
	return ref.NewWithOptions[Cache](Namespace, options)
}
