package field

import (
	"reflect"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrUnsupportedType = errors.New("unsupported field type")
	ErrConversion      = errors.New("value conversion failed")
)

// Type 字段的语义类型
type Type string

const (
	TypeBool      Type = "bool"
	TypeByteArray Type = "bytearray"
	TypeDate      Type = "date"
	TypeDateTime  Type = "datetime"
	TypeDouble    Type = "double"
	TypeInteger   Type = "integer"
	TypeLongLong  Type = "longlong"
	TypeString    Type = "string"
	TypeTime      Type = "time"
)

// Types 所有支持的类型，顺序固定
var Types = []Type{
	TypeBool, TypeByteArray, TypeDate, TypeDateTime, TypeDouble,
	TypeInteger, TypeLongLong, TypeString, TypeTime,
}

// ParseType 解析 tag 中的 type=xxx
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", errors.Wrapf(ErrUnsupportedType, "unknown type name %q", s)
}

var (
	timeType      = reflect.TypeOf(time.Time{})
	dateType      = reflect.TypeOf(Date{})
	timeOfDayType = reflect.TypeOf(TimeOfDay{})
	bytesType     = reflect.TypeOf([]byte(nil))
)

// TypeOf 根据 Go 类型推断字段类型，指针类型取其元素类型
func TypeOf(t reflect.Type) (Type, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t {
	case timeType:
		return TypeDateTime, nil
	case dateType:
		return TypeDate, nil
	case timeOfDayType:
		return TypeTime, nil
	}
	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		return TypeByteArray, nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return TypeBool, nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return TypeInteger, nil
	case reflect.Int, reflect.Int64, reflect.Uint32:
		return TypeLongLong, nil
	case reflect.Float32, reflect.Float64:
		return TypeDouble, nil
	case reflect.String:
		return TypeString, nil
	}

	return "", errors.Wrapf(ErrUnsupportedType, "go type %s", t)
}
