package dialect

import (
	"net"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/hatlonely/morm/field"
	"github.com/pkg/errors"
)

var MySQL Dialect = &mysqlDialect{}

func init() {
	register(MySQL)
}

var mysqlColumnTypes = map[field.Type]string{
	field.TypeBool:      "bool",
	field.TypeByteArray: "longblob",
	field.TypeDate:      "date",
	field.TypeDateTime:  "datetime(6)",
	field.TypeDouble:    "double",
	field.TypeInteger:   "integer",
	field.TypeLongLong:  "bigint",
	field.TypeTime:      "time(6)",
}

type mysqlDialect struct{}

func (d *mysqlDialect) Name() string       { return "mysql" }
func (d *mysqlDialect) DriverName() string { return "mysql" }

func (d *mysqlDialect) Quote(ident string) string {
	return quoteWith(ident, "`")
}

func (d *mysqlDialect) ColumnType(t field.Type, maxLength int) string {
	if t == field.TypeString {
		return varchar(maxLength)
	}
	return mysqlColumnTypes[t]
}

// 主键是 int64，自增列也用 64 位
func (d *mysqlDialect) PrimaryKeyClause(column string) string {
	return column + " bigint NOT NULL PRIMARY KEY AUTO_INCREMENT"
}

func (d *mysqlDialect) Placeholder() sq.PlaceholderFormat {
	return sq.Question
}

// LikeEscape mysql 默认以反斜杠转义
func (d *mysqlDialect) LikeEscape() string {
	return ""
}

func (d *mysqlDialect) Returning() bool {
	return false
}

func (d *mysqlDialect) DSN(options *DSNOptions) (string, error) {
	if options == nil || options.Database == "" {
		return "", errors.New("mysql dsn requires database")
	}

	host, port := options.Host, options.Port
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "3306"
	}
	charset := options.Charset
	if charset == "" {
		charset = "utf8mb4"
	}

	config := mysql.NewConfig()
	config.User = options.Username
	config.Passwd = options.Password
	config.Net = "tcp"
	config.Addr = net.JoinHostPort(host, port)
	config.DBName = options.Database
	config.ParseTime = true
	config.Params = map[string]string{"charset": charset}
	return config.FormatDSN(), nil
}
