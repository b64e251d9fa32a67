package orm

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/hatlonely/morm/cache"
	"github.com/hatlonely/morm/cfg"
	"github.com/hatlonely/morm/cfg/validator"
	"github.com/hatlonely/morm/dialect"
	"github.com/hatlonely/morm/keygen"
	"github.com/hatlonely/morm/log"
	"github.com/hatlonely/morm/log/logger"
	"github.com/hatlonely/morm/meta"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DB 模型和数据库之间的执行器，并发安全
type DB struct {
	db       *sql.DB
	owned    bool
	dialect  dialect.Dialect
	registry *meta.Registry
	builder  sq.StatementBuilderType

	name    string
	logger  logger.Logger
	metrics *metrics
	tracer  trace.Tracer

	keygen keygen.KeyGenerator

	cache    cache.Cache
	cacheTTL time.Duration
	epoch    int64

	mu          sync.Mutex
	generations map[string]uint64
}

// NewDBWithOptions 打开连接并创建 DB，Close 时会关闭连接和缓存
func NewDBWithOptions(options *Options) (*DB, error) {
	if options == nil {
		options = &Options{}
	}
	if err := cfg.SetDefaults(options); err != nil {
		return nil, errors.WithMessage(err, "set default options failed")
	}
	if err := validator.ValidateStruct(options); err != nil {
		return nil, errors.WithMessage(err, "invalid options")
	}

	d, err := dialect.ByName(options.Dialect)
	if err != nil {
		return nil, err
	}

	dsn := options.DSN
	if dsn == "" {
		dsn, err = d.DSN(&dialect.DSNOptions{
			Host:     options.Host,
			Port:     options.Port,
			Database: options.Database,
			Username: options.Username,
			Password: options.Password,
			Charset:  options.Charset,
		})
		if err != nil {
			return nil, errors.WithMessage(err, "build dsn failed")
		}
	}

	sqlDB, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", d.Name())
	}

	// 内存数据库每个连接都是独立的库，只能保留一个连接
	if isMemory(d, dsn) {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else {
		sqlDB.SetMaxOpenConns(options.MaxConns)
		sqlDB.SetMaxIdleConns(options.MaxIdle)
	}
	sqlDB.SetConnMaxLifetime(options.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrapf(err, "ping %s", d.Name())
	}

	opts := []Option{WithName(options.Name)}

	l, err := log.NewLoggerWithOptions(options.Logger)
	if err != nil {
		_ = sqlDB.Close()
		return nil, errors.WithMessage(err, "create logger failed")
	}
	opts = append(opts, WithLogger(l))

	if options.KeyGenerator != nil {
		g, err := keygen.NewKeyGeneratorWithOptions(options.KeyGenerator)
		if err != nil {
			_ = sqlDB.Close()
			return nil, errors.WithMessage(err, "create key generator failed")
		}
		opts = append(opts, WithKeyGenerator(g))
	}
	if options.Cache != nil {
		c, err := cache.NewCacheWithOptions(options.Cache)
		if err != nil {
			_ = sqlDB.Close()
			return nil, errors.WithMessage(err, "create cache failed")
		}
		opts = append(opts, WithCache(c, options.CacheTTL))
	}
	if options.EnableMetrics {
		opts = append(opts, WithRegisterer(prometheus.DefaultRegisterer))
	}
	if options.EnableTracing {
		opts = append(opts, WithTracing())
	}

	db, err := newDB(sqlDB, d, opts...)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	db.owned = true
	return db, nil
}

// NewDB 使用已有连接创建 DB，Close 不会关闭该连接
// 指标注册失败时 panic，需要处理错误时使用 NewDBWithOptions
func NewDB(sqlDB *sql.DB, d dialect.Dialect, opts ...Option) *DB {
	db, err := newDB(sqlDB, d, opts...)
	if err != nil {
		panic(err)
	}
	return db
}

func newDB(sqlDB *sql.DB, d dialect.Dialect, opts ...Option) (*DB, error) {
	if d == nil {
		d = dialect.SQLite
	}

	o := &dbOptions{name: "orm"}
	for _, opt := range opts {
		opt(o)
	}
	if o.name == "" {
		o.name = "orm"
	}
	if o.logger == nil {
		o.logger = log.Default()
	}

	db := &DB{
		db:          sqlDB,
		dialect:     d,
		registry:    meta.NewRegistry(d),
		builder:     sq.StatementBuilder.PlaceholderFormat(d.Placeholder()),
		name:        o.name,
		logger:      o.logger.With("component", o.name),
		keygen:      o.keygen,
		cache:       o.cache,
		cacheTTL:    o.cacheTTL,
		epoch:       time.Now().UnixNano(),
		generations: map[string]uint64{},
	}

	if o.registerer != nil {
		m, err := newMetrics(o.name, o.registerer)
		if err != nil {
			return nil, err
		}
		db.metrics = m
	}
	if o.tracing {
		db.tracer = otel.Tracer(o.name)
	}

	return db, nil
}

func isMemory(d dialect.Dialect, dsn string) bool {
	if !strings.HasPrefix(d.Name(), "sqlite") {
		return false
	}
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory") || strings.HasPrefix(dsn, "file::memory:")
}

func (db *DB) Dialect() dialect.Dialect {
	return db.dialect
}

func (db *DB) Registry() *meta.Registry {
	return db.registry
}

// SQL 底层连接
func (db *DB) SQL() *sql.DB {
	return db.db
}

func (db *DB) Close() error {
	var errs []string
	if db.cache != nil {
		if err := db.cache.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if db.owned {
		if err := db.db.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return errors.Errorf("close db: %s", strings.Join(errs, "; "))
	}
	return nil
}

// RegisterModel 注册模型类型，重复注册返回同一个 MetaModel
func RegisterModel[T any](db *DB) (*meta.MetaModel, error) {
	return meta.Register[T](db.registry)
}

// CreateTable 执行建表语句和建索引语句
func (db *DB) CreateTable(ctx context.Context, mm *meta.MetaModel) error {
	for _, stmt := range mm.CreateTableSQL() {
		if _, err := db.exec(ctx, "create_table", mm.Table(), sq.Expr(stmt)); err != nil {
			return err
		}
	}
	db.invalidate(mm.Table())
	return nil
}

func (db *DB) DropTable(ctx context.Context, mm *meta.MetaModel) error {
	if _, err := db.exec(ctx, "drop_table", mm.Table(), sq.Expr(mm.DropTableSQL())); err != nil {
		return err
	}
	db.invalidate(mm.Table())
	return nil
}

// CreateTables 为所有已注册的模型建表
func (db *DB) CreateTables(ctx context.Context) error {
	for _, mm := range db.registry.Models() {
		if err := db.CreateTable(ctx, mm); err != nil {
			return err
		}
	}
	return nil
}

// exec 执行不返回结果集的语句
func (db *DB) exec(ctx context.Context, op string, table string, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, storeError(op, "", errors.Wrap(err, "build statement"))
	}

	var result sql.Result
	err = db.observe(ctx, op, table, query, args, func(ctx context.Context) error {
		var err error
		result, err = db.db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return nil, storeError(op, query, err)
	}
	return result, nil
}

// query 执行查询并读出所有行，开启缓存时先查缓存
func (db *DB) query(ctx context.Context, op string, table string, b sq.Sqlizer) ([][]any, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, storeError(op, "", errors.Wrap(err, "build statement"))
	}

	key := ""
	if db.cache != nil {
		key = db.cacheKey(table, op, query, args)
	}
	if key != "" {
		if rows, ok := db.cacheGet(ctx, table, key); ok {
			return rows, nil
		}
	}

	rows, err := db.load(ctx, op, table, query, args)
	if err != nil {
		return nil, err
	}

	if key != "" {
		db.cacheSet(ctx, table, key, rows)
	}
	return rows, nil
}

// queryNoCache 用于写语句的 RETURNING 和写前检查，结果不能缓存
func (db *DB) queryNoCache(ctx context.Context, op string, table string, b sq.Sqlizer) ([][]any, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, storeError(op, "", errors.Wrap(err, "build statement"))
	}
	return db.load(ctx, op, table, query, args)
}

func (db *DB) load(ctx context.Context, op string, table string, query string, args []any) ([][]any, error) {
	var rows [][]any
	err := db.observe(ctx, op, table, query, args, func(ctx context.Context) error {
		var err error
		rows, err = db.scanAll(ctx, query, args)
		return err
	})
	if err != nil {
		return nil, storeError(op, query, err)
	}
	return rows, nil
}

func (db *DB) scanAll(ctx context.Context, query string, args []any) ([][]any, error) {
	rs, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	columns, err := rs.Columns()
	if err != nil {
		return nil, err
	}

	var rows [][]any
	for rs.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, err
		}
		rows = append(rows, values)
	}
	return rows, rs.Err()
}
