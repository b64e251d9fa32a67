package dialect

import (
	"net"
	"net/url"

	sq "github.com/Masterminds/squirrel"
	"github.com/hatlonely/morm/field"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var Postgres Dialect = &postgresDialect{}

func init() {
	register(Postgres)
}

var postgresColumnTypes = map[field.Type]string{
	field.TypeBool:      "boolean",
	field.TypeByteArray: "bytea",
	field.TypeDate:      "date",
	field.TypeDateTime:  "timestamp",
	field.TypeDouble:    "double precision",
	field.TypeInteger:   "integer",
	field.TypeLongLong:  "bigint",
	field.TypeTime:      "time",
}

type postgresDialect struct{}

func (d *postgresDialect) Name() string       { return "postgres" }
func (d *postgresDialect) DriverName() string { return "pgx" }

func (d *postgresDialect) Quote(ident string) string {
	return quoteWith(ident, `"`)
}

func (d *postgresDialect) ColumnType(t field.Type, maxLength int) string {
	if t == field.TypeString {
		return varchar(maxLength)
	}
	return postgresColumnTypes[t]
}

// 主键是 int64，自增列也用 64 位
func (d *postgresDialect) PrimaryKeyClause(column string) string {
	return column + " bigserial PRIMARY KEY"
}

func (d *postgresDialect) Placeholder() sq.PlaceholderFormat {
	return sq.Dollar
}

func (d *postgresDialect) LikeEscape() string {
	return ""
}

// Returning postgres 没有 LastInsertId，插入时通过 RETURNING 取回主键
func (d *postgresDialect) Returning() bool {
	return true
}

func (d *postgresDialect) DSN(options *DSNOptions) (string, error) {
	if options == nil || options.Database == "" {
		return "", errors.New("postgres dsn requires database")
	}

	host, port := options.Host, options.Port
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "5432"
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + options.Database,
		RawQuery: "sslmode=disable",
	}
	if options.Username != "" {
		u.User = url.UserPassword(options.Username, options.Password)
	}
	dsn := u.String()

	if _, err := pgx.ParseConfig(dsn); err != nil {
		return "", errors.Wrap(err, "pgx.ParseConfig failed")
	}
	return dsn, nil
}
