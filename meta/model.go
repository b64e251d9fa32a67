package meta

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/hatlonely/morm/dialect"
	"github.com/hatlonely/morm/field"
	"github.com/pkg/errors"
)

var (
	ErrSchema       = errors.New("invalid model schema")
	ErrUnknownField = errors.New("unknown field")
)

const tagName = "orm"

// Tabler 模型可以实现该接口指定表名，否则使用类型名的小写形式
type Tabler interface {
	Table() string
}

var tablerType = reflect.TypeOf((*Tabler)(nil)).Elem()

// Field 模型字段的元数据
type Field struct {
	Name      string // Go 字段名
	Column    string // 列名
	Type      field.Type
	Index     []int // reflect 字段路径，嵌入结构体展开后为多级
	PK        bool
	Indexed   bool
	Unique    bool
	Nullable  bool
	MaxLength int
}

// ValueOf 从结构体值中取出该字段
func (f *Field) ValueOf(v reflect.Value) reflect.Value {
	return v.FieldByIndex(f.Index)
}

// MetaModel 模型类型的元数据，注册后不可变
type MetaModel struct {
	typ     reflect.Type
	table   string
	pk      *Field
	fields  []*Field
	columns map[string]*Field
	names   map[string]*Field
	dialect dialect.Dialect
}

func (m *MetaModel) Type() reflect.Type       { return m.typ }
func (m *MetaModel) Table() string            { return m.table }
func (m *MetaModel) PrimaryKey() *Field       { return m.pk }
func (m *MetaModel) Dialect() dialect.Dialect { return m.dialect }
func (m *MetaModel) Fields() []*Field         { return append([]*Field(nil), m.fields...) }

// Columns 所有列，主键在前
func (m *MetaModel) Columns() []*Field {
	return append([]*Field{m.pk}, m.fields...)
}

// Lookup 按列名或 Go 字段名查找字段，pk 是主键的别名
func (m *MetaModel) Lookup(name string) (*Field, error) {
	if name == "pk" {
		return m.pk, nil
	}
	if f, ok := m.columns[name]; ok {
		return f, nil
	}
	if f, ok := m.names[name]; ok {
		return f, nil
	}
	return nil, errors.Wrapf(ErrUnknownField, "%q in model %s", name, m.typ.Name())
}

// Elem 校验 instance 是指向该模型的非空指针，返回其指向的结构体
func (m *MetaModel) Elem(instance any) (reflect.Value, error) {
	rv := reflect.ValueOf(instance)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Type() != m.typ {
		return reflect.Value{}, errors.Wrapf(ErrSchema, "expected *%s, got %T", m.typ.Name(), instance)
	}
	return rv.Elem(), nil
}

// PK 读取实例的主键值
func (m *MetaModel) PK(v reflect.Value) int64 {
	pv := m.pk.ValueOf(v)
	if pv.CanInt() {
		return pv.Int()
	}
	return int64(pv.Uint())
}

// SetPK 写入实例的主键值
func (m *MetaModel) SetPK(v reflect.Value, id int64) {
	pv := m.pk.ValueOf(v)
	if pv.CanInt() {
		pv.SetInt(id)
		return
	}
	pv.SetUint(uint64(id))
}

func newMetaModel(t reflect.Type, d dialect.Dialect) (*MetaModel, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, errors.Wrapf(ErrSchema, "expected struct, got %s", t)
	}

	m := &MetaModel{
		typ:     t,
		table:   tableName(t),
		columns: map[string]*Field{},
		names:   map[string]*Field{},
		dialect: d,
	}

	fields, err := parseFields(t, nil)
	if err != nil {
		return nil, errors.WithMessagef(err, "model %s", t.Name())
	}

	for _, f := range fields {
		if _, ok := m.columns[f.Column]; ok {
			return nil, errors.Wrapf(ErrSchema, "model %s: duplicate column %q", t.Name(), f.Column)
		}
		m.columns[f.Column] = f
		m.names[f.Name] = f

		if !f.PK {
			continue
		}
		if m.pk != nil {
			return nil, errors.Wrapf(ErrSchema, "model %s: more than one primary key (%s, %s)", t.Name(), m.pk.Name, f.Name)
		}
		m.pk = f
	}

	if m.pk == nil {
		if f, ok := m.names["ID"]; ok && isKeyType(f) {
			f.PK = true
			if f.Column == "ID" {
				delete(m.columns, f.Column)
				f.Column = "id"
				m.columns[f.Column] = f
			}
			m.pk = f
		}
	}
	if m.pk == nil {
		return nil, errors.Wrapf(ErrSchema, "model %s: no primary key", t.Name())
	}
	if !isKeyType(m.pk) {
		return nil, errors.Wrapf(ErrSchema, "model %s: primary key %s must be an integer", t.Name(), m.pk.Name)
	}
	if f, ok := m.columns["pk"]; ok && !f.PK {
		return nil, errors.Wrapf(ErrSchema, "model %s: column name \"pk\" is reserved", t.Name())
	}

	for _, f := range fields {
		if !f.PK {
			m.fields = append(m.fields, f)
		}
	}

	return m, nil
}

func tableName(t reflect.Type) string {
	if reflect.PointerTo(t).Implements(tablerType) {
		if name := reflect.New(t).Interface().(Tabler).Table(); name != "" {
			return name
		}
	}
	return strings.ToLower(t.Name())
}

func isKeyType(f *Field) bool {
	return (f.Type == field.TypeInteger || f.Type == field.TypeLongLong) && !f.Nullable
}

// parseFields 按声明顺序展开字段，匿名嵌入的结构体会被拍平
func parseFields(t reflect.Type, index []int) ([]*Field, error) {
	var fields []*Field

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		tag := sf.Tag.Get(tagName)
		if tag == "-" {
			continue
		}

		path := append(append([]int(nil), index...), i)

		if sf.Anonymous && tag == "" {
			if _, err := field.TypeOf(sf.Type); err != nil {
				if sf.Type.Kind() != reflect.Struct {
					return nil, errors.Wrapf(ErrSchema, "embedded field %s must be a struct", sf.Name)
				}
				embedded, err := parseFields(sf.Type, path)
				if err != nil {
					return nil, err
				}
				fields = append(fields, embedded...)
				continue
			}
		}

		f, err := parseField(sf, tag)
		if err != nil {
			return nil, err
		}
		f.Index = path
		fields = append(fields, f)
	}

	return fields, nil
}

// parseField 解析 `orm:"column,pk,index,unique,null,max_length=N,type=x"`
func parseField(sf reflect.StructField, tag string) (*Field, error) {
	typ, err := field.TypeOf(sf.Type)
	if err != nil && !strings.Contains(tag, "type=") {
		return nil, errors.Wrapf(ErrSchema, "field %s: %v", sf.Name, err)
	}

	f := &Field{
		Name:     sf.Name,
		Column:   sf.Name,
		Type:     typ,
		Nullable: sf.Type.Kind() == reflect.Ptr,
	}

	options := strings.Split(tag, ",")
	if !strings.Contains(options[0], "=") {
		if column := strings.TrimSpace(options[0]); column != "" {
			f.Column = column
		}
		options = options[1:]
	}

	for _, part := range options {
		part = strings.TrimSpace(part)
		key, value, hasValue := strings.Cut(part, "=")
		switch key {
		case "":
		case "pk":
			f.PK = true
		case "index":
			f.Indexed = true
		case "unique":
			f.Unique = true
		case "null":
			f.Nullable = true
		case "max_length":
			n, err := strconv.Atoi(value)
			if !hasValue || err != nil || n <= 0 {
				return nil, errors.Wrapf(ErrSchema, "field %s: bad max_length %q", sf.Name, value)
			}
			f.MaxLength = n
		case "type":
			t, err := field.ParseType(value)
			if err != nil {
				return nil, errors.Wrapf(ErrSchema, "field %s: %v", sf.Name, err)
			}
			f.Type = t
		default:
			return nil, errors.Wrapf(ErrSchema, "field %s: unknown tag option %q", sf.Name, part)
		}
	}

	if f.MaxLength > 0 && f.Type != field.TypeString {
		return nil, errors.Wrapf(ErrSchema, "field %s: max_length only applies to strings", sf.Name)
	}

	return f, nil
}
