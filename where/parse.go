package where

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"
)

var ErrParse = errors.New("parse where failed")

// 文本条件语法：
//
//	a = 1 AND (b > 2 OR c IS NULL)
//	NOT name STARTSWITH "foo"
//	id IN (1, 2, 3)
//
// 关键字大小写不敏感，字符串使用双引号
type orExpr struct {
	Left  *andExpr   `parser:"@@"`
	Right []*andExpr `parser:"( 'OR' @@ )*"`
}

type andExpr struct {
	Left  *unaryExpr   `parser:"@@"`
	Right []*unaryExpr `parser:"( 'AND' @@ )*"`
}

type unaryExpr struct {
	Not     *unaryExpr   `parser:"  'NOT' @@"`
	Primary *primaryExpr `parser:"| @@"`
}

type primaryExpr struct {
	Group     *orExpr    `parser:"  '(' @@ ')'"`
	Condition *condition `parser:"| @@"`
}

type condition struct {
	Field string `parser:"@Ident"`
	Test  *test  `parser:"@@"`
}

type test struct {
	Null       *nullTest   `parser:"  @@"`
	In         *inTest     `parser:"| @@"`
	Comparison *comparison `parser:"| @@"`
}

type nullTest struct {
	Not bool `parser:"'IS' @'NOT'? 'NULL'"`
}

type inTest struct {
	Values []*literal `parser:"'IN' '(' ( @@ ( ',' @@ )* )? ')'"`
}

type comparison struct {
	Op    string   `parser:"@( '=' | '!=' | '<>' | '>=' | '<=' | '>' | '<' | 'CONTAINS' | 'STARTSWITH' | 'ENDSWITH' )"`
	Value *literal `parser:"@@"`
}

type literal struct {
	Null   bool     `parser:"  @'NULL'"`
	True   bool     `parser:"| @'TRUE'"`
	False  bool     `parser:"| @'FALSE'"`
	Float  *float64 `parser:"| @Float"`
	Int    *int64   `parser:"| @Int"`
	String *string  `parser:"| @String"`
}

var whereLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Keyword", Pattern: `(?i:\b(?:AND|OR|NOT|IS|NULL|IN|CONTAINS|STARTSWITH|ENDSWITH|TRUE|FALSE)\b)`},
	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},
	{Name: "Float", Pattern: `[-+]?\d+\.\d+(?:[eE][-+]?\d+)?`},
	{Name: "Int", Pattern: `[-+]?\d+`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Operator", Pattern: `!=|<>|>=|<=|[=<>]`},
	{Name: "Punct", Pattern: `[(),]`},
})

var whereParser = participle.MustBuild[orExpr](
	participle.Lexer(whereLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
	participle.CaseInsensitive("Keyword"),
	participle.UseLookahead(2),
)

// Parse 解析文本形式的条件，空文本返回空条件
func Parse(text string) (Where, error) {
	if strings.TrimSpace(text) == "" {
		return Where{}, nil
	}

	ast, err := whereParser.ParseString("", text)
	if err != nil {
		return Where{}, errors.Wrap(ErrParse, err.Error())
	}
	return ast.where(), nil
}

// MustParse 解析失败时 panic，用于常量条件
func MustParse(text string) Where {
	w, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return w
}

func (e *orExpr) where() Where {
	w := e.Left.where()
	for _, r := range e.Right {
		w = Where{kind: kindOr, operands: []Where{w, r.where()}}
	}
	return w
}

func (e *andExpr) where() Where {
	w := e.Left.where()
	for _, r := range e.Right {
		w = Where{kind: kindAnd, operands: []Where{w, r.where()}}
	}
	return w
}

func (e *unaryExpr) where() Where {
	if e.Not != nil {
		return Not(e.Not.where())
	}
	if e.Primary.Group != nil {
		return e.Primary.Group.where()
	}
	return e.Primary.Condition.where()
}

func (c *condition) where() Where {
	switch {
	case c.Test.Null != nil:
		return IsNull(c.Field, !c.Test.Null.Not)
	case c.Test.In != nil:
		values := make([]any, 0, len(c.Test.In.Values))
		for _, v := range c.Test.In.Values {
			values = append(values, v.value())
		}
		return New(c.Field, OpIsIn, values)
	}

	value := c.Test.Comparison.Value.value()
	switch strings.ToUpper(c.Test.Comparison.Op) {
	case "=":
		return Eq(c.Field, value)
	case "!=", "<>":
		return Ne(c.Field, value)
	case ">":
		return Gt(c.Field, value)
	case ">=":
		return Gte(c.Field, value)
	case "<":
		return Lt(c.Field, value)
	case "<=":
		return Lte(c.Field, value)
	case "CONTAINS":
		return New(c.Field, OpContains, value)
	case "STARTSWITH":
		return New(c.Field, OpStartsWith, value)
	}
	return New(c.Field, OpEndsWith, value)
}

func (l *literal) value() any {
	switch {
	case l.True:
		return true
	case l.False:
		return false
	case l.Float != nil:
		return *l.Float
	case l.Int != nil:
		return *l.Int
	case l.String != nil:
		return *l.String
	}
	return nil
}

// String 返回条件的文本形式，可以被 Parse 解析回来
func (w Where) String() string {
	var b strings.Builder
	w.format(&b, false)
	return b.String()
}

func (w Where) format(b *strings.Builder, nested bool) {
	switch w.kind {
	case kindEmpty:
		return
	case kindLeaf:
		w.formatLeaf(b)
		return
	case kindNot:
		b.WriteString("NOT ")
		w.operands[0].format(b, true)
		return
	}

	sep := " AND "
	if w.kind == kindOr {
		sep = " OR "
	}
	if nested {
		b.WriteByte('(')
	}
	for i, o := range w.operands {
		if i > 0 {
			b.WriteString(sep)
		}
		o.format(b, true)
	}
	if nested {
		b.WriteByte(')')
	}
}

func (w Where) formatLeaf(b *strings.Builder) {
	b.WriteString(w.field)
	switch w.op {
	case OpIsNull:
		if isNull, _ := w.value.(bool); isNull {
			b.WriteString(" IS NULL")
		} else {
			b.WriteString(" IS NOT NULL")
		}
	case OpIsIn:
		values, _ := w.value.([]any)
		items := make([]string, len(values))
		for i, v := range values {
			items[i] = formatValue(v)
		}
		b.WriteString(" IN (" + strings.Join(items, ", ") + ")")
	default:
		b.WriteString(" " + w.op.String() + " " + formatValue(w.value))
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return strconv.Quote(x)
	case []byte:
		return strconv.Quote(string(x))
	case float64:
		return formatFloat(x, 64)
	case float32:
		return formatFloat(float64(x), 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x)
	case time.Time:
		return strconv.Quote(x.UTC().Format("2006-01-02 15:04:05.999999999"))
	case fmt.Stringer:
		return strconv.Quote(x.String())
	}
	return strconv.Quote(fmt.Sprint(v))
}

func formatFloat(f float64, bitSize int) string {
	s := strconv.FormatFloat(f, 'f', -1, bitSize)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
