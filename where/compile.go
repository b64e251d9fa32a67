package where

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/hatlonely/morm/dialect"
	"github.com/hatlonely/morm/field"
	"github.com/hatlonely/morm/meta"
	"github.com/pkg/errors"
)

var ErrLookup = errors.New("field lookup failed")

// Schema 编译时用于解析字段名，*meta.MetaModel 实现了该接口
type Schema interface {
	Lookup(name string) (*meta.Field, error)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Compile 将条件编译为 WHERE 子句（不含 WHERE 关键字）和绑定参数
// 参数按深度优先、从左到右的顺序排列；复合子条件加括号，叶子条件不加
// 占位符统一为 ?，由调用方按方言替换
func Compile(w Where, schema Schema, d dialect.Dialect) (string, []any, error) {
	c := &compiler{schema: schema, dialect: d}
	if err := c.compile(w, false); err != nil {
		return "", nil, err
	}
	return c.buf.String(), c.args, nil
}

type compiler struct {
	schema  Schema
	dialect dialect.Dialect
	buf     strings.Builder
	args    []any
}

func (c *compiler) compile(w Where, nested bool) error {
	switch w.kind {
	case kindEmpty:
		return nil
	case kindLeaf:
		return c.leaf(w)
	case kindNot:
		c.buf.WriteString("NOT ")
		return c.compile(w.operands[0], true)
	}

	sep := " AND "
	if w.kind == kindOr {
		sep = " OR "
	}
	if nested {
		c.buf.WriteByte('(')
	}
	for i, o := range w.operands {
		if i > 0 {
			c.buf.WriteString(sep)
		}
		if err := c.compile(o, true); err != nil {
			return err
		}
	}
	if nested {
		c.buf.WriteByte(')')
	}
	return nil
}

func (c *compiler) leaf(w Where) error {
	f, err := c.schema.Lookup(w.field)
	if err != nil {
		return errors.Wrap(ErrLookup, err.Error())
	}
	column := c.dialect.Quote(f.Column)

	switch w.op {
	case OpEquals, OpNotEquals, OpGreaterThan, OpGreaterOrEquals, OpLessThan, OpLessOrEquals:
		if w.value == nil && (w.op == OpEquals || w.op == OpNotEquals) {
			return c.null(column, w.op == OpEquals)
		}
		v, err := field.ToSQL(f.Type, w.value)
		if err != nil {
			return errors.WithMessagef(err, "field %q", w.field)
		}
		c.buf.WriteString(column + " " + opNames[w.op] + " ?")
		c.args = append(c.args, v)
	case OpStartsWith, OpEndsWith, OpContains:
		pattern, err := likePattern(w.op, w.value)
		if err != nil {
			return errors.WithMessagef(err, "field %q", w.field)
		}
		c.buf.WriteString(column + " LIKE ?" + c.dialect.LikeEscape())
		c.args = append(c.args, pattern)
	case OpIsIn:
		values, ok := w.value.([]any)
		if !ok {
			return errors.Wrapf(field.ErrConversion, "field %q: IN expects a list, got %T", w.field, w.value)
		}
		if len(values) == 0 {
			c.buf.WriteString("1 = 0")
			return nil
		}
		placeholders := make([]string, len(values))
		for i, value := range values {
			v, err := field.ToSQL(f.Type, value)
			if err != nil {
				return errors.WithMessagef(err, "field %q", w.field)
			}
			placeholders[i] = "?"
			c.args = append(c.args, v)
		}
		c.buf.WriteString(column + " IN (" + strings.Join(placeholders, ", ") + ")")
	case OpIsNull:
		isNull, ok := w.value.(bool)
		if !ok {
			return errors.Wrapf(field.ErrConversion, "field %q: IS NULL expects a bool, got %T", w.field, w.value)
		}
		return c.null(column, isNull)
	default:
		return errors.Wrapf(ErrLookup, "field %q: unknown operator %d", w.field, w.op)
	}
	return nil
}

func (c *compiler) null(column string, isNull bool) error {
	if isNull {
		c.buf.WriteString(column + " IS NULL")
	} else {
		c.buf.WriteString(column + " IS NOT NULL")
	}
	return nil
}

func likePattern(op Op, value any) (string, error) {
	var s string
	switch x := value.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	case fmt.Stringer:
		s = x.String()
	default:
		rv := reflect.ValueOf(value)
		if !rv.IsValid() || rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Slice || rv.Kind() == reflect.Map || rv.Kind() == reflect.Struct {
			return "", errors.Wrapf(field.ErrConversion, "cannot match %T with LIKE", value)
		}
		s = fmt.Sprint(value)
	}

	s = likeEscaper.Replace(s)
	switch op {
	case OpStartsWith:
		return s + "%", nil
	case OpEndsWith:
		return "%" + s, nil
	}
	return "%" + s + "%", nil
}
