package orm

import (
	"context"
	"database/sql"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/hatlonely/morm/field"
	"github.com/hatlonely/morm/meta"
	"github.com/hatlonely/morm/where"
	"github.com/pkg/errors"
)

// QuerySet 模型 T 的查询，所有构造方法都返回新的 QuerySet
type QuerySet[T any] struct {
	db     *DB
	mm     *meta.MetaModel
	err    error
	filter where.Where
	orders []string
	limit  int
	offset int
}

// NewQuerySet 注册模型 T 并返回查询全表的 QuerySet，注册失败的错误在执行时返回
func NewQuerySet[T any](db *DB) *QuerySet[T] {
	mm, err := meta.Register[T](db.registry)
	return &QuerySet[T]{db: db, mm: mm, err: err}
}

func (q *QuerySet[T]) Model() *meta.MetaModel {
	return q.mm
}

// Where 当前的过滤条件
func (q *QuerySet[T]) Where() where.Where {
	return q.filter
}

func (q *QuerySet[T]) clone() *QuerySet[T] {
	c := *q
	c.orders = append([]string(nil), q.orders...)
	return &c
}

// Filter 追加条件，与已有条件取 AND
func (q *QuerySet[T]) Filter(w where.Where) *QuerySet[T] {
	c := q.clone()
	c.filter = where.And(c.filter, w)
	return c
}

// Exclude 排除满足条件的行
func (q *QuerySet[T]) Exclude(w where.Where) *QuerySet[T] {
	return q.Filter(where.Not(w))
}

// OrderBy 追加排序列，"-" 前缀表示降序
func (q *QuerySet[T]) OrderBy(columns ...string) *QuerySet[T] {
	c := q.clone()
	c.orders = append(c.orders, columns...)
	return c
}

// Limit n <= 0 表示不限制
func (q *QuerySet[T]) Limit(n int) *QuerySet[T] {
	c := q.clone()
	c.limit = n
	return c
}

func (q *QuerySet[T]) Offset(n int) *QuerySet[T] {
	c := q.clone()
	c.offset = n
	return c
}

// Get 查询满足 QuerySet 条件和 w 的行，用第一行填充 out，返回行数
// 返回 0 表示没有找到，此时 out 不变
func (q *QuerySet[T]) Get(ctx context.Context, w where.Where, out *T) (int, error) {
	if out == nil {
		return 0, errors.Wrap(meta.ErrSchema, "nil output")
	}

	rows, err := q.Filter(w).rows(ctx, "get")
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	v := reflect.New(q.mm.Type()).Elem()
	if err := q.fill(v, rows[0]); err != nil {
		return 0, err
	}
	reflect.ValueOf(out).Elem().Set(v)
	return len(rows), nil
}

// All 所有满足条件的实例
func (q *QuerySet[T]) All(ctx context.Context) ([]*T, error) {
	rows, err := q.rows(ctx, "select")
	if err != nil {
		return nil, err
	}

	result := make([]*T, 0, len(rows))
	for _, row := range rows {
		out := new(T)
		if err := q.fill(reflect.ValueOf(out).Elem(), row); err != nil {
			return nil, err
		}
		result = append(result, out)
	}
	return result, nil
}

// Count 满足条件的行数，忽略 Limit/Offset 和排序
func (q *QuerySet[T]) Count(ctx context.Context) (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	clause, args, err := where.Compile(q.filter, q.mm, q.db.dialect)
	if err != nil {
		return 0, err
	}

	b := q.db.builder.Select("COUNT(*)").From(q.db.dialect.Quote(q.mm.Table()))
	if clause != "" {
		b = b.Where(clause, args...)
	}

	rows, err := q.db.query(ctx, "count", q.mm.Table(), b)
	if err != nil {
		return 0, err
	}
	if len(rows) != 1 || len(rows[0]) != 1 {
		return 0, storeError("count", "", errors.New("unexpected count result"))
	}
	n, err := field.FromSQL(field.TypeLongLong, rows[0][0])
	if err != nil {
		return 0, storeError("count", "", err)
	}
	return int(n.(int64)), nil
}

// Delete 删除满足条件的行，忽略 Limit/Offset，返回删除的行数
func (q *QuerySet[T]) Delete(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	clause, args, err := where.Compile(q.filter, q.mm, q.db.dialect)
	if err != nil {
		return 0, err
	}

	b := q.db.builder.Delete(q.db.dialect.Quote(q.mm.Table()))
	if clause != "" {
		b = b.Where(clause, args...)
	}

	result, err := q.db.exec(ctx, "delete", q.mm.Table(), b)
	if err != nil {
		return 0, err
	}
	q.db.invalidate(q.mm.Table())
	return rowsAffected(result)
}

// Update 按列名或字段名更新满足条件的行，返回更新的行数
func (q *QuerySet[T]) Update(ctx context.Context, values map[string]any) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	if len(values) == 0 {
		return 0, nil
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	b := q.db.builder.Update(q.db.dialect.Quote(q.mm.Table()))
	for _, name := range names {
		f, err := q.mm.Lookup(name)
		if err != nil {
			return 0, errors.Wrap(where.ErrLookup, err.Error())
		}
		val, err := field.ToSQL(f.Type, values[name])
		if err != nil {
			return 0, errors.WithMessagef(err, "field %s.%s", q.mm.Table(), f.Name)
		}
		b = b.Set(q.db.dialect.Quote(f.Column), val)
	}

	clause, args, err := where.Compile(q.filter, q.mm, q.db.dialect)
	if err != nil {
		return 0, err
	}
	if clause != "" {
		b = b.Where(clause, args...)
	}

	result, err := q.db.exec(ctx, "update", q.mm.Table(), b)
	if err != nil {
		return 0, err
	}
	q.db.invalidate(q.mm.Table())
	return rowsAffected(result)
}

// rows 按 QuerySet 的条件、排序和分页查询所有列
func (q *QuerySet[T]) rows(ctx context.Context, op string) ([][]any, error) {
	if q.err != nil {
		return nil, q.err
	}

	clause, args, err := where.Compile(q.filter, q.mm, q.db.dialect)
	if err != nil {
		return nil, err
	}

	columns := q.mm.Columns()
	quoted := make([]string, len(columns))
	for i, f := range columns {
		quoted[i] = q.db.dialect.Quote(f.Column)
	}

	b := q.db.builder.Select(quoted...).From(q.db.dialect.Quote(q.mm.Table()))
	if clause != "" {
		b = b.Where(clause, args...)
	}

	orders, err := q.orderBy()
	if err != nil {
		return nil, err
	}
	if len(orders) > 0 {
		b = b.OrderBy(orders...)
	}

	if q.limit > 0 {
		b = b.Limit(uint64(q.limit))
	} else if q.offset > 0 {
		// OFFSET 必须跟在 LIMIT 之后
		b = b.Limit(math.MaxInt64)
	}
	if q.offset > 0 {
		b = b.Offset(uint64(q.offset))
	}

	return q.db.query(ctx, op, q.mm.Table(), b)
}

func (q *QuerySet[T]) orderBy() ([]string, error) {
	orders := make([]string, 0, len(q.orders))
	for _, name := range q.orders {
		direction := " ASC"
		if strings.HasPrefix(name, "-") {
			name = name[1:]
			direction = " DESC"
		}
		f, err := q.mm.Lookup(name)
		if err != nil {
			return nil, errors.Wrap(where.ErrLookup, err.Error())
		}
		orders = append(orders, q.db.dialect.Quote(f.Column)+direction)
	}
	return orders, nil
}

// fill 按 Columns 的顺序把一行写入结构体
func (q *QuerySet[T]) fill(v reflect.Value, row []any) error {
	columns := q.mm.Columns()
	if len(row) != len(columns) {
		return storeError("scan", "", errors.Errorf("expected %d columns, got %d", len(columns), len(row)))
	}
	for i, f := range columns {
		if err := field.Assign(f.ValueOf(v), f.Type, row[i]); err != nil {
			return storeError("scan", "", errors.WithMessagef(err, "column %s.%s", q.mm.Table(), f.Column))
		}
	}
	return nil
}

func rowsAffected(result sql.Result) (int64, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, storeError("rows_affected", "", err)
	}
	return n, nil
}
