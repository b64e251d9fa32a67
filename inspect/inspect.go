package inspect

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hatlonely/morm/dialect"
	"github.com/hatlonely/morm/meta"
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrUnsupported = errors.New("dialect not supported by inspector")
	ErrMismatch    = errors.New("live schema does not match model")
)

// Column 数据库中实际存在的列
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	PrimaryKey bool
}

// Inspector 通过 gorm 的 Migrator 读取已建表的结构，复用调用方的连接
type Inspector struct {
	db *gorm.DB
}

func New(sqlDB *sql.DB, d dialect.Dialect) (*Inspector, error) {
	var dialector gorm.Dialector
	switch d.Name() {
	case dialect.SQLite.Name(), dialect.SQLiteModernc.Name():
		dialector = sqlite.New(sqlite.Config{DriverName: d.DriverName(), Conn: sqlDB})
	case dialect.MySQL.Name():
		dialector = mysql.New(mysql.Config{Conn: sqlDB})
	default:
		return nil, errors.Wrapf(ErrUnsupported, "%s", d.Name())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open gorm")
	}
	return &Inspector{db: db}, nil
}

func (i *Inspector) HasTable(ctx context.Context, table string) bool {
	return i.db.WithContext(ctx).Migrator().HasTable(table)
}

func (i *Inspector) HasIndex(ctx context.Context, table string, name string) bool {
	return i.db.WithContext(ctx).Migrator().HasIndex(table, name)
}

// Columns 按表中的顺序返回列
func (i *Inspector) Columns(ctx context.Context, table string) ([]Column, error) {
	types, err := i.db.WithContext(ctx).Migrator().ColumnTypes(table)
	if err != nil {
		return nil, errors.Wrapf(err, "column types of %s", table)
	}

	columns := make([]Column, 0, len(types))
	for _, ct := range types {
		c := Column{
			Name: ct.Name(),
			Type: strings.ToLower(ct.DatabaseTypeName()),
		}
		if nullable, ok := ct.Nullable(); ok {
			c.Nullable = nullable
		}
		if pk, ok := ct.PrimaryKey(); ok {
			c.PrimaryKey = pk
		}
		columns = append(columns, c)
	}
	return columns, nil
}

// Verify 检查模型的表、列和索引都已存在
func (i *Inspector) Verify(ctx context.Context, mm *meta.MetaModel) error {
	if !i.HasTable(ctx, mm.Table()) {
		return errors.Wrapf(ErrMismatch, "table %s does not exist", mm.Table())
	}

	columns, err := i.Columns(ctx, mm.Table())
	if err != nil {
		return err
	}
	live := make(map[string]bool, len(columns))
	for _, c := range columns {
		live[c.Name] = true
	}

	for _, f := range mm.Columns() {
		if !live[f.Column] {
			return errors.Wrapf(ErrMismatch, "column %s.%s does not exist", mm.Table(), f.Column)
		}
		if f.Indexed && !f.Unique {
			name := meta.IndexName(mm.Table(), f.Column)
			if !i.HasIndex(ctx, mm.Table(), name) {
				return errors.Wrapf(ErrMismatch, "index %s does not exist", name)
			}
		}
	}
	return nil
}
