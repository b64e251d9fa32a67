package dialect

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/hatlonely/morm/field"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

var (
	// SQLite 基于 cgo 驱动 mattn/go-sqlite3
	SQLite Dialect = &sqliteDialect{name: "sqlite", driver: "sqlite3"}
	// SQLiteModernc 基于纯 Go 驱动 modernc.org/sqlite
	SQLiteModernc Dialect = &sqliteDialect{name: "sqlite-modernc", driver: "sqlite"}
)

func init() {
	register(SQLite)
	register(SQLiteModernc)
}

var sqliteColumnTypes = map[field.Type]string{
	field.TypeBool:      "bool",
	field.TypeByteArray: "blob",
	field.TypeDate:      "date",
	field.TypeDateTime:  "datetime",
	field.TypeDouble:    "real",
	field.TypeInteger:   "integer",
	field.TypeLongLong:  "bigint",
	field.TypeTime:      "time",
}

type sqliteDialect struct {
	name   string
	driver string
}

func (d *sqliteDialect) Name() string       { return d.name }
func (d *sqliteDialect) DriverName() string { return d.driver }

func (d *sqliteDialect) Quote(ident string) string {
	return quoteWith(ident, `"`)
}

func (d *sqliteDialect) ColumnType(t field.Type, maxLength int) string {
	if t == field.TypeString {
		return varchar(maxLength)
	}
	return sqliteColumnTypes[t]
}

func (d *sqliteDialect) PrimaryKeyClause(column string) string {
	return column + " integer NOT NULL PRIMARY KEY AUTOINCREMENT"
}

func (d *sqliteDialect) Placeholder() sq.PlaceholderFormat {
	return sq.Question
}

func (d *sqliteDialect) LikeEscape() string {
	return ` ESCAPE '\'`
}

func (d *sqliteDialect) Returning() bool {
	return false
}

// DSN sqlite 只使用 Database 作为文件路径，为空时使用内存数据库
func (d *sqliteDialect) DSN(options *DSNOptions) (string, error) {
	if options == nil || options.Database == "" {
		return ":memory:", nil
	}
	return options.Database, nil
}
