package meta

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// CreateTableSQL 返回建表语句，后跟每个非 unique 的 index 字段对应的建索引语句
func (m *MetaModel) CreateTableSQL() []string {
	d := m.dialect

	columns := make([]string, 0, len(m.fields)+1)
	columns = append(columns, d.PrimaryKeyClause(d.Quote(m.pk.Column)))
	for _, f := range m.fields {
		columns = append(columns, m.columnClause(f))
	}

	stmts := []string{
		fmt.Sprintf("CREATE TABLE %s (%s)", d.Quote(m.table), strings.Join(columns, ", ")),
	}

	// unique 约束已经隐含索引
	for _, f := range m.fields {
		if f.Indexed && !f.Unique {
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
				d.Quote(IndexName(m.table, f.Column)), d.Quote(m.table), d.Quote(f.Column)))
		}
	}

	return stmts
}

func (m *MetaModel) DropTableSQL() string {
	return "DROP TABLE " + m.dialect.Quote(m.table)
}

func (m *MetaModel) columnClause(f *Field) string {
	var b strings.Builder
	b.WriteString(m.dialect.Quote(f.Column))
	b.WriteByte(' ')
	b.WriteString(m.dialect.ColumnType(f.Type, f.MaxLength))
	if !f.Nullable {
		b.WriteString(" NOT NULL")
	}
	if f.Unique {
		b.WriteString(" UNIQUE")
	}
	return b.String()
}

// IndexName 索引名为 <表名>_<摘要>，摘要是按顺序以 "," 连接的列名（不加引号）
// 的 md5 十六进制小写形式的前 8 位，表名不参与摘要
// 例如 IndexName("tst_options", "indexField") 为 md5("indexField")[:8]，即 tst_options_d4238311
func IndexName(table string, columns ...string) string {
	sum := md5.Sum([]byte(strings.Join(columns, ",")))
	return table + "_" + hex.EncodeToString(sum[:])[:8]
}
