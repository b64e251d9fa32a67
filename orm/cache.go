package orm

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// 缓存的查询结果，保存驱动返回的原始值
type cachedRows struct {
	Rows [][]any `msgpack:"rows"`
}

// invalidate 写操作后推进表的版本号，旧版本的缓存不再命中
func (db *DB) invalidate(table string) {
	db.mu.Lock()
	db.generations[table]++
	db.mu.Unlock()
}

func (db *DB) generation(table string) uint64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.generations[table]
}

// cacheKey 由表名、表版本号以及语句和参数的摘要组成
func (db *DB) cacheKey(table string, op string, query string, args []any) string {
	buf, err := msgpack.Marshal([]any{op, query, args})
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s:%s:%d.%d:%x", db.name, table, db.epoch, db.generation(table), md5.Sum(buf))
}

func (db *DB) cacheGet(ctx context.Context, table string, key string) ([][]any, bool) {
	buf, ok, err := db.cache.Get(ctx, key)
	if err != nil {
		db.observeCache(table, "error")
		db.logger.WarnContext(ctx, "cache get failed", "table", table, "error", err.Error())
		return nil, false
	}
	if !ok {
		db.observeCache(table, "miss")
		return nil, false
	}

	var cached cachedRows
	dec := msgpack.NewDecoder(bytes.NewReader(buf))
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(&cached); err != nil {
		db.observeCache(table, "error")
		db.logger.WarnContext(ctx, "cache decode failed", "table", table, "error", err.Error())
		return nil, false
	}

	// msgpack 解出的时间是本地时区，驱动返回的是 UTC
	for _, row := range cached.Rows {
		for i, v := range row {
			if t, ok := v.(time.Time); ok {
				row[i] = t.UTC()
			}
		}
	}

	db.observeCache(table, "hit")
	return cached.Rows, true
}

func (db *DB) cacheSet(ctx context.Context, table string, key string, rows [][]any) {
	buf, err := msgpack.Marshal(&cachedRows{Rows: rows})
	if err != nil {
		db.logger.WarnContext(ctx, "cache encode failed", "table", table, "error", err.Error())
		return
	}
	if err := db.cache.Set(ctx, key, buf, db.cacheTTL); err != nil {
		db.logger.WarnContext(ctx, "cache set failed", "table", table, "error", err.Error())
	}
}
