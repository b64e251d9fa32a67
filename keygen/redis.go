package keygen

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type RedisOptions struct {
	Addr     string `cfg:"addr" def:"localhost:6379" validate:"required"`
	Username string `cfg:"username"`
	Password string `cfg:"password"`
	DB       int    `cfg:"db"`

	// 计数器键为 <Prefix><table>
	Prefix string `cfg:"prefix" def:"morm:key:"`

	Timeout time.Duration `cfg:"timeout" def:"3s"`
}

// Redis 每张表一个 INCR 计数器，多个进程共享同一个序列
type Redis struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

func NewRedisWithOptions(options *RedisOptions) (*Redis, error) {
	if options == nil {
		return nil, errors.New("redis options is nil")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     options.Addr,
		Username: options.Username,
		Password: options.Password,
		DB:       options.DB,
	})

	return &Redis{
		client:  client,
		prefix:  options.Prefix,
		timeout: options.Timeout,
	}, nil
}

func (r *Redis) Next(ctx context.Context, table string) (int64, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	id, err := r.client.Incr(ctx, r.prefix+table).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "incr key of %s", table)
	}
	return id, nil
}

// Reset 把表的计数器设置为 n，下一个主键为 n+1，用于和已有数据对齐
func (r *Redis) Reset(ctx context.Context, table string, n int64) error {
	if err := r.client.Set(ctx, r.prefix+table, n, 0).Err(); err != nil {
		return errors.Wrapf(err, "reset key of %s", table)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
