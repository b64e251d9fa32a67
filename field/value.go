package field

import (
	"database/sql/driver"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// 驱动返回的时间字符串可能的格式，按顺序尝试
var dateTimeFormats = []string{
	dateTimeLayout,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	dateLayout,
}

// ToSQL 将 Go 值转换为绑定到语句中的驱动值，nil 和 nil 指针转换为 NULL
func ToSQL(t Type, v any) (driver.Value, error) {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil, nil
	}

	switch t {
	case TypeBool:
		switch {
		case rv.Kind() == reflect.Bool:
			return rv.Bool(), nil
		case isInt(rv.Kind()):
			return rv.Int() != 0, nil
		}
	case TypeByteArray:
		switch {
		case rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8:
			if rv.IsNil() {
				return []byte{}, nil
			}
			return append([]byte{}, rv.Bytes()...), nil
		case rv.Kind() == reflect.String:
			return []byte(rv.String()), nil
		}
	case TypeDate:
		switch x := rv.Interface().(type) {
		case Date:
			if !x.Valid() {
				return nil, errors.Wrapf(ErrConversion, "invalid date %s", x)
			}
			return x.String(), nil
		case time.Time:
			if d := DateOf(x); d.Valid() {
				return d.String(), nil
			}
			return nil, errors.Wrapf(ErrConversion, "date of %s out of range", x)
		case string:
			d, err := ParseDate(x)
			if err != nil {
				return nil, err
			}
			return d.String(), nil
		}
	case TypeDateTime:
		switch x := rv.Interface().(type) {
		case time.Time:
			return x.UTC().Format(dateTimeLayout), nil
		case string:
			tm, err := parseDateTime(x)
			if err != nil {
				return nil, err
			}
			return tm.Format(dateTimeLayout), nil
		}
	case TypeDouble:
		switch {
		case isFloat(rv.Kind()):
			return rv.Float(), nil
		case isInt(rv.Kind()):
			return float64(rv.Int()), nil
		case isUint(rv.Kind()):
			return float64(rv.Uint()), nil
		}
	case TypeInteger, TypeLongLong:
		n, err := toInt64(rv)
		if err != nil {
			return nil, err
		}
		if t == TypeInteger && (n < math.MinInt32 || n > math.MaxInt32) {
			return nil, errors.Wrapf(ErrConversion, "%d overflows integer", n)
		}
		return n, nil
	case TypeString:
		switch {
		case rv.Kind() == reflect.String:
			return rv.String(), nil
		case rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8:
			return string(rv.Bytes()), nil
		}
	case TypeTime:
		switch x := rv.Interface().(type) {
		case TimeOfDay:
			return x.String(), nil
		case time.Time:
			return TimeOfDayOf(x).String(), nil
		case string:
			tod, err := ParseTimeOfDay(x)
			if err != nil {
				return nil, err
			}
			return tod.String(), nil
		}
	default:
		return nil, errors.Wrapf(ErrUnsupportedType, "type %q", t)
	}

	return nil, errors.Wrapf(ErrConversion, "cannot bind %s as %s", rv.Type(), t)
}

// FromSQL 将驱动扫描出的值转换为字段类型对应的 Go 值
// 返回值类型：bool, []byte, Date, time.Time(UTC), float64, int32, int64, string, TimeOfDay
func FromSQL(t Type, src any) (any, error) {
	if src == nil {
		return nil, nil
	}

	switch t {
	case TypeBool:
		switch x := src.(type) {
		case bool:
			return x, nil
		case []byte:
			return parseBool(string(x))
		case string:
			return parseBool(x)
		}
		if n, err := toInt64(reflect.ValueOf(src)); err == nil {
			return n != 0, nil
		}
	case TypeByteArray:
		switch x := src.(type) {
		case []byte:
			return append([]byte{}, x...), nil
		case string:
			return []byte(x), nil
		}
	case TypeDate:
		switch x := src.(type) {
		case time.Time:
			return DateOf(x), nil
		case []byte:
			return ParseDate(firstN(string(x), len(dateLayout)))
		case string:
			return ParseDate(firstN(x, len(dateLayout)))
		}
	case TypeDateTime:
		switch x := src.(type) {
		case time.Time:
			return x.UTC(), nil
		case []byte:
			return parseDateTime(string(x))
		case string:
			return parseDateTime(x)
		}
	case TypeDouble:
		switch x := src.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case []byte:
			return parseFloat(string(x))
		case string:
			return parseFloat(x)
		}
		if n, err := toInt64(reflect.ValueOf(src)); err == nil {
			return float64(n), nil
		}
	case TypeInteger, TypeLongLong:
		var n int64
		var err error
		switch x := src.(type) {
		case []byte:
			n, err = parseInt(string(x))
		case string:
			n, err = parseInt(x)
		default:
			n, err = toInt64(reflect.ValueOf(src))
		}
		if err != nil {
			return nil, err
		}
		if t == TypeLongLong {
			return n, nil
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, errors.Wrapf(ErrConversion, "%d overflows integer", n)
		}
		return int32(n), nil
	case TypeString:
		switch x := src.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		}
	case TypeTime:
		switch x := src.(type) {
		case time.Time:
			return TimeOfDayOf(x), nil
		case []byte:
			return ParseTimeOfDay(string(x))
		case string:
			return ParseTimeOfDay(x)
		}
	default:
		return nil, errors.Wrapf(ErrUnsupportedType, "type %q", t)
	}

	return nil, errors.Wrapf(ErrConversion, "cannot scan %T as %s", src, t)
}

// Assign 将驱动值转换后写入结构体字段，支持指针字段和 NULL
func Assign(dst reflect.Value, t Type, src any) error {
	if !dst.CanSet() {
		return errors.Wrapf(ErrConversion, "field of type %s is not settable", dst.Type())
	}

	val, err := FromSQL(t, src)
	if err != nil {
		return err
	}
	if val == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}

	target := dst
	if dst.Kind() == reflect.Ptr {
		target = reflect.New(dst.Type().Elem()).Elem()
	}

	rv := reflect.ValueOf(val)
	switch {
	case rv.Type().AssignableTo(target.Type()):
		target.Set(rv)
	case rv.Type().ConvertibleTo(target.Type()) && compatibleKinds(rv.Kind(), target.Kind()):
		target.Set(rv.Convert(target.Type()))
	default:
		return errors.Wrapf(ErrConversion, "cannot assign %s to %s", rv.Type(), target.Type())
	}

	if dst.Kind() == reflect.Ptr {
		dst.Set(target.Addr())
	}
	return nil
}

// compatibleKinds 拦截 reflect 允许但语义错误的转换，例如 int 到 string
func compatibleKinds(from, to reflect.Kind) bool {
	switch {
	case isInt(from):
		return isInt(to) || isUint(to)
	case isFloat(from):
		return isFloat(to)
	case from == reflect.String:
		return to == reflect.String
	}
	return from == to
}

func toInt64(rv reflect.Value) (int64, error) {
	switch {
	case isInt(rv.Kind()):
		return rv.Int(), nil
	case isUint(rv.Kind()):
		if rv.Uint() > math.MaxInt64 {
			return 0, errors.Wrapf(ErrConversion, "%d overflows bigint", rv.Uint())
		}
		return int64(rv.Uint()), nil
	case rv.Kind() == reflect.Bool:
		if rv.Bool() {
			return 1, nil
		}
		return 0, nil
	}
	if !rv.IsValid() {
		return 0, errors.Wrap(ErrConversion, "invalid value")
	}
	return 0, errors.Wrapf(ErrConversion, "cannot use %s as integer", rv.Type())
}

func parseDateTime(s string) (time.Time, error) {
	s = strings.TrimSuffix(s, "Z")
	var lastErr error
	for _, format := range dateTimeFormats {
		t, err := time.ParseInLocation(format, s, time.UTC)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, errors.Wrapf(ErrConversion, "parse datetime %q: %v", s, lastErr)
}

func parseBool(s string) (bool, error) {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, errors.Wrapf(ErrConversion, "parse bool %q", s)
	}
	return b, nil
}

func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrConversion, "parse integer %q", s)
	}
	return n, nil
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrConversion, "parse real %q", s)
	}
	return f, nil
}

func firstN(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
