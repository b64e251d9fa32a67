package dialect

import (
	"sort"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/hatlonely/morm/field"
	"github.com/pkg/errors"
)

var ErrUnknownDialect = errors.New("unknown dialect")

// Dialect 屏蔽不同数据库在 DDL/DML 拼写上的差异
type Dialect interface {
	// Name 方言名称，用于配置
	Name() string
	// DriverName database/sql 注册的驱动名
	DriverName() string
	// Quote 引用标识符
	Quote(ident string) string
	// ColumnType 字段类型对应的列类型，maxLength 只对字符串生效
	ColumnType(t field.Type, maxLength int) string
	// PrimaryKeyClause 自增主键列的完整定义，column 已引用
	PrimaryKeyClause(column string) string
	// Placeholder 绑定参数占位符格式
	Placeholder() sq.PlaceholderFormat
	// LikeEscape 追加在 LIKE 占位符之后的转义子句
	LikeEscape() string
	// Returning 插入时是否需要 RETURNING 取回主键
	Returning() bool
	// DSN 根据连接参数拼接数据源
	DSN(options *DSNOptions) (string, error)
}

// DSNOptions 拼接 DSN 所需的连接参数
type DSNOptions struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	Charset  string
}

var dialects = map[string]Dialect{}

func register(d Dialect) {
	dialects[d.Name()] = d
}

// ByName 根据名称查找方言，名称大小写不敏感
func ByName(name string) (Dialect, error) {
	if d, ok := dialects[strings.ToLower(name)]; ok {
		return d, nil
	}
	return nil, errors.Wrapf(ErrUnknownDialect, "%q", name)
}

// Names 已注册的方言名称
func Names() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func quoteWith(ident string, q string) string {
	return q + strings.ReplaceAll(ident, q, q+q) + q
}

func varchar(maxLength int) string {
	if maxLength <= 0 {
		maxLength = 255
	}
	return "varchar(" + strconv.Itoa(maxLength) + ")"
}
