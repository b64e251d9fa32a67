package orm

import (
	"context"
	"reflect"

	sq "github.com/Masterminds/squirrel"
	"github.com/hatlonely/morm/field"
	"github.com/hatlonely/morm/meta"
	"github.com/pkg/errors"
)

// Save 保存实例：主键为 0 时插入并回填主键，否则存在则更新，不存在则按该主键插入
// 失败时实例保持不变
func (db *DB) Save(ctx context.Context, instance any) error {
	mm, v, err := db.model(instance)
	if err != nil {
		return err
	}

	columns, values, err := db.bindFields(mm, v)
	if err != nil {
		return err
	}

	pk := mm.PK(v)
	if pk == 0 {
		id, err := db.insertNew(ctx, mm, columns, values)
		if err != nil {
			return err
		}
		mm.SetPK(v, id)
		db.invalidate(mm.Table())
		return nil
	}

	exists, err := db.exists(ctx, mm, pk)
	if err != nil {
		return err
	}

	if exists {
		// 只有主键的模型没有可更新的列
		if len(columns) == 0 {
			return nil
		}
		b := db.builder.Update(db.dialect.Quote(mm.Table())).
			Where(sq.Eq{db.dialect.Quote(mm.PrimaryKey().Column): pk})
		for i, column := range columns {
			b = b.Set(column, values[i])
		}
		if _, err := db.exec(ctx, "update", mm.Table(), b); err != nil {
			return err
		}
	} else if err := db.insertWithKey(ctx, mm, pk, columns, values); err != nil {
		return err
	}

	db.invalidate(mm.Table())
	return nil
}

// Remove 按主键删除实例，成功后主键置 0
func (db *DB) Remove(ctx context.Context, instance any) error {
	mm, v, err := db.model(instance)
	if err != nil {
		return err
	}

	pk := mm.PK(v)
	if pk == 0 {
		return errors.Wrapf(ErrUnsaved, "remove %s", mm.Table())
	}

	b := db.builder.Delete(db.dialect.Quote(mm.Table())).
		Where(sq.Eq{db.dialect.Quote(mm.PrimaryKey().Column): pk})
	if _, err := db.exec(ctx, "delete", mm.Table(), b); err != nil {
		return err
	}

	mm.SetPK(v, 0)
	db.invalidate(mm.Table())
	return nil
}

// model 注册实例的类型并校验 instance 是非空结构体指针
func (db *DB) model(instance any) (*meta.MetaModel, reflect.Value, error) {
	if instance == nil {
		return nil, reflect.Value{}, errors.Wrap(meta.ErrSchema, "nil instance")
	}
	mm, err := db.registry.RegisterType(reflect.TypeOf(instance))
	if err != nil {
		return nil, reflect.Value{}, err
	}
	v, err := mm.Elem(instance)
	if err != nil {
		return nil, reflect.Value{}, err
	}
	return mm, v, nil
}

// bindFields 非主键字段的列名和绑定值，按声明顺序
func (db *DB) bindFields(mm *meta.MetaModel, v reflect.Value) ([]string, []any, error) {
	fields := mm.Fields()
	columns := make([]string, 0, len(fields))
	values := make([]any, 0, len(fields))
	for _, f := range fields {
		val, err := field.ToSQL(f.Type, f.ValueOf(v).Interface())
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "field %s.%s", mm.Table(), f.Name)
		}
		columns = append(columns, db.dialect.Quote(f.Column))
		values = append(values, val)
	}
	return columns, values, nil
}

func (db *DB) insert(ctx context.Context, mm *meta.MetaModel, columns []string, values []any) (int64, error) {
	table := db.dialect.Quote(mm.Table())
	pkColumn := db.dialect.Quote(mm.PrimaryKey().Column)

	var b sq.Sqlizer
	switch {
	case len(columns) > 0:
		ib := db.builder.Insert(table).Columns(columns...).Values(values...)
		if db.dialect.Returning() {
			ib = ib.Suffix("RETURNING " + pkColumn)
		}
		b = ib
	case db.dialect.Name() == "mysql":
		b = sq.Expr("INSERT INTO " + table + " () VALUES ()")
	case db.dialect.Returning():
		b = sq.Expr("INSERT INTO " + table + " DEFAULT VALUES RETURNING " + pkColumn)
	default:
		b = sq.Expr("INSERT INTO " + table + " DEFAULT VALUES")
	}

	if db.dialect.Returning() {
		rows, err := db.queryNoCache(ctx, "insert", mm.Table(), b)
		if err != nil {
			return 0, err
		}
		if len(rows) != 1 || len(rows[0]) != 1 {
			return 0, storeError("insert", "", errors.New("no generated key returned"))
		}
		id, err := field.FromSQL(field.TypeLongLong, rows[0][0])
		if err != nil {
			return 0, storeError("insert", "", err)
		}
		return id.(int64), nil
	}

	result, err := db.exec(ctx, "insert", mm.Table(), b)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, storeError("insert", "", errors.Wrap(err, "last insert id"))
	}
	return id, nil
}

// insertNew 插入新行并返回主键，配置了主键生成器时先生成主键
func (db *DB) insertNew(ctx context.Context, mm *meta.MetaModel, columns []string, values []any) (int64, error) {
	if db.keygen == nil {
		return db.insert(ctx, mm, columns, values)
	}

	id, err := db.keygen.Next(ctx, mm.Table())
	if err != nil {
		return 0, errors.WithMessagef(err, "generate key of %s", mm.Table())
	}
	if err := db.insertWithKey(ctx, mm, id, columns, values); err != nil {
		return 0, err
	}
	return id, nil
}

// insertWithKey 使用指定的主键插入
func (db *DB) insertWithKey(ctx context.Context, mm *meta.MetaModel, pk int64, columns []string, values []any) error {
	columns = append([]string{db.dialect.Quote(mm.PrimaryKey().Column)}, columns...)
	values = append([]any{pk}, values...)
	b := db.builder.Insert(db.dialect.Quote(mm.Table())).Columns(columns...).Values(values...)
	_, err := db.exec(ctx, "insert", mm.Table(), b)
	return err
}

func (db *DB) exists(ctx context.Context, mm *meta.MetaModel, pk int64) (bool, error) {
	b := db.builder.Select("1").
		From(db.dialect.Quote(mm.Table())).
		Where(sq.Eq{db.dialect.Quote(mm.PrimaryKey().Column): pk}).
		Limit(1)
	rows, err := db.queryNoCache(ctx, "exists", mm.Table(), b)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}
