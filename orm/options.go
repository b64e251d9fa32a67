package orm

import (
	"time"

	"github.com/hatlonely/morm/cache"
	"github.com/hatlonely/morm/keygen"
	"github.com/hatlonely/morm/log/logger"
	"github.com/hatlonely/morm/ref"
	"github.com/prometheus/client_golang/prometheus"
)

type Options struct {
	// 方言：sqlite, sqlite-modernc, mysql, postgres
	Dialect string `cfg:"dialect" def:"sqlite" validate:"oneof=sqlite sqlite-modernc mysql postgres"`

	// DSN 不为空时直接使用，忽略下面的连接参数
	DSN      string `cfg:"dsn"`
	Host     string `cfg:"host"`
	Port     string `cfg:"port"`
	Database string `cfg:"database"`
	Username string `cfg:"username"`
	Password string `cfg:"password"`
	Charset  string `cfg:"charset"`

	MaxConns        int           `cfg:"maxConns" def:"10"`
	MaxIdle         int           `cfg:"maxIdle" def:"5"`
	ConnMaxLifetime time.Duration `cfg:"connMaxLifetime"`

	// Logger 为空时使用 log.Default()
	Logger *ref.TypeOptions `cfg:"logger"`

	// KeyGenerator 主键生成器，为空时使用数据库自增主键
	KeyGenerator *ref.TypeOptions `cfg:"keyGenerator"`

	// Cache 查询结果缓存，为空时不缓存
	Cache    *ref.TypeOptions `cfg:"cache"`
	CacheTTL time.Duration    `cfg:"cacheTTL" def:"1m"`

	// EnableMetrics 注册到 prometheus 默认 registry
	EnableMetrics bool `cfg:"enableMetrics"`
	EnableTracing bool `cfg:"enableTracing"`

	// Name 组件名称，作为指标名前缀、日志 component 字段和 tracer 名
	Name string `cfg:"name" def:"orm"`
}

type dbOptions struct {
	logger     logger.Logger
	keygen     keygen.KeyGenerator
	cache      cache.Cache
	cacheTTL   time.Duration
	registerer prometheus.Registerer
	tracing    bool
	name       string
}

type Option func(*dbOptions)

func WithLogger(l logger.Logger) Option {
	return func(o *dbOptions) { o.logger = l }
}

// WithKeyGenerator 插入前由 g 生成主键，代替数据库自增
func WithKeyGenerator(g keygen.KeyGenerator) Option {
	return func(o *dbOptions) { o.keygen = g }
}

// WithCache 开启查询结果缓存，ttl 为 0 时不过期，写操作会使该表的缓存失效
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(o *dbOptions) {
		o.cache = c
		o.cacheTTL = ttl
	}
}

// WithRegisterer 开启指标并注册到 reg
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *dbOptions) { o.registerer = reg }
}

func WithTracing() Option {
	return func(o *dbOptions) { o.tracing = true }
}

func WithName(name string) Option {
	return func(o *dbOptions) { o.name = name }
}
