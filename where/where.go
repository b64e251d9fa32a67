package where

import (
	"reflect"
)

// Op 比较运算符
type Op int

const (
	OpEquals Op = iota
	OpNotEquals
	OpGreaterThan
	OpGreaterOrEquals
	OpLessThan
	OpLessOrEquals
	OpStartsWith
	OpEndsWith
	OpContains
	OpIsIn
	OpIsNull
)

var opNames = map[Op]string{
	OpEquals:          "=",
	OpNotEquals:       "!=",
	OpGreaterThan:     ">",
	OpGreaterOrEquals: ">=",
	OpLessThan:        "<",
	OpLessOrEquals:    "<=",
	OpStartsWith:      "STARTSWITH",
	OpEndsWith:        "ENDSWITH",
	OpContains:        "CONTAINS",
	OpIsIn:            "IN",
	OpIsNull:          "IS NULL",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "Op(?)"
}

type kind uint8

const (
	kindEmpty kind = iota
	kindLeaf
	kindAnd
	kindOr
	kindNot
)

// Where 查询条件，不可变。零值表示空条件，编译后不产生 WHERE 子句
type Where struct {
	kind     kind
	field    string
	op       Op
	value    any
	operands []Where
}

// New 构造一个 (field, op, value) 叶子条件
func New(field string, op Op, value any) Where {
	return Where{kind: kindLeaf, field: field, op: op, value: value}
}

func Eq(field string, value any) Where  { return New(field, OpEquals, value) }
func Ne(field string, value any) Where  { return New(field, OpNotEquals, value) }
func Gt(field string, value any) Where  { return New(field, OpGreaterThan, value) }
func Gte(field string, value any) Where { return New(field, OpGreaterOrEquals, value) }
func Lt(field string, value any) Where  { return New(field, OpLessThan, value) }
func Lte(field string, value any) Where { return New(field, OpLessOrEquals, value) }

func Contains(field string, value string) Where   { return New(field, OpContains, value) }
func StartsWith(field string, value string) Where { return New(field, OpStartsWith, value) }
func EndsWith(field string, value string) Where   { return New(field, OpEndsWith, value) }

// IsNull isNull 为 true 时匹配 NULL，为 false 时匹配非 NULL
func IsNull(field string, isNull bool) Where {
	return New(field, OpIsNull, isNull)
}

// In 匹配取值在 values 中的行，只传一个切片时展开该切片
func In(field string, values ...any) Where {
	if len(values) == 1 {
		rv := reflect.ValueOf(values[0])
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
			values = make([]any, rv.Len())
			for i := range values {
				values[i] = rv.Index(i).Interface()
			}
		}
	}
	return New(field, OpIsIn, append([]any{}, values...))
}

// And 依次以 AND 组合，空条件被忽略
func And(ws ...Where) Where {
	return fold(kindAnd, ws)
}

// Or 依次以 OR 组合，空条件被忽略
func Or(ws ...Where) Where {
	return fold(kindOr, ws)
}

func Not(w Where) Where {
	if w.IsEmpty() {
		return w
	}
	return Where{kind: kindNot, operands: []Where{w}}
}

func (w Where) And(o Where) Where { return And(w, o) }
func (w Where) Or(o Where) Where  { return Or(w, o) }
func (w Where) Not() Where        { return Not(w) }

func (w Where) IsEmpty() bool {
	return w.kind == kindEmpty
}

// Field 叶子条件的字段名
func (w Where) Field() string { return w.field }

// Op 叶子条件的运算符
func (w Where) Op() Op { return w.op }

// Value 叶子条件的取值
func (w Where) Value() any { return w.value }

func fold(k kind, ws []Where) Where {
	var acc Where
	for _, w := range ws {
		switch {
		case w.IsEmpty():
		case acc.IsEmpty():
			acc = w
		default:
			acc = Where{kind: k, operands: []Where{acc, w}}
		}
	}
	return acc
}
