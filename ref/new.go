package ref

import (
	"reflect"
	"sync"

	"github.com/hatlonely/morm/cfg"
	"github.com/pkg/errors"
)

var ErrNotRegistered = errors.New("constructor not registered")

// TypeOptions 通过名字描述一个可插拔组件，Options 会被转换为构造函数的参数
type TypeOptions struct {
	Namespace string `cfg:"namespace"`
	Type      string `cfg:"type" validate:"required"`
	Options   any    `cfg:"options"`
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// 构造函数的形式固定为 func(*XxxOptions) (T, error)
type constructor struct {
	fn      reflect.Value
	options reflect.Type
}

func newConstructor(fn any) (*constructor, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return nil, errors.Errorf("constructor must be a function, got %T", fn)
	}
	ft := fv.Type()
	if ft.NumIn() != 1 || ft.In(0).Kind() != reflect.Ptr || ft.In(0).Elem().Kind() != reflect.Struct {
		return nil, errors.Errorf("constructor must take a single options struct pointer, got %s", ft)
	}
	if ft.NumOut() != 2 || !ft.Out(1).Implements(errorType) {
		return nil, errors.Errorf("constructor must return (T, error), got %s", ft)
	}
	return &constructor{fn: fv, options: ft.In(0).Elem()}, nil
}

func (c *constructor) new(options any) (any, error) {
	arg, err := c.convert(options)
	if err != nil {
		return nil, err
	}
	results := c.fn.Call([]reflect.Value{arg})
	if !results[1].IsNil() {
		return nil, results[1].Interface().(error)
	}
	return results[0].Interface(), nil
}

// convert nil 原样传给构造函数，*Options 和 Options 直接使用，其他配置数据按 cfg tag 解码并设置默认值
func (c *constructor) convert(options any) (reflect.Value, error) {
	pt := reflect.PointerTo(c.options)
	if options == nil {
		return reflect.Zero(pt), nil
	}

	switch ov := reflect.ValueOf(options); ov.Type() {
	case pt:
		return ov, nil
	case c.options:
		pv := reflect.New(c.options)
		pv.Elem().Set(ov)
		return pv, nil
	}

	pv := reflect.New(c.options)
	if err := cfg.Decode(options, pv.Interface()); err != nil {
		return reflect.Value{}, errors.WithMessagef(err, "convert options to %s", c.options)
	}
	if err := cfg.SetDefaults(pv.Interface()); err != nil {
		return reflect.Value{}, errors.WithMessagef(err, "set defaults for %s", c.options)
	}
	return pv, nil
}

var constructors sync.Map

func key(namespace string, type_ string) string {
	return namespace + ":" + type_
}

// Register 注册构造函数，同一个名字重复注册同一个函数是允许的
func Register(namespace string, type_ string, fn any) error {
	c, err := newConstructor(fn)
	if err != nil {
		return errors.WithMessagef(err, "register %s", key(namespace, type_))
	}

	if v, loaded := constructors.LoadOrStore(key(namespace, type_), c); loaded {
		if v.(*constructor).fn.Pointer() != c.fn.Pointer() {
			return errors.Errorf("constructor for %s already registered with a different function", key(namespace, type_))
		}
	}
	return nil
}

// RegisterT 以 T 的包路径和类型名作为名字注册
func RegisterT[T any](fn any) error {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.PkgPath() == "" || t.Name() == "" {
		return errors.Errorf("cannot name constructor for unnamed type %s", t)
	}
	return Register(t.PkgPath(), t.Name(), fn)
}

func MustRegisterT[T any](fn any) {
	if err := RegisterT[T](fn); err != nil {
		panic(err)
	}
}

func New(namespace string, type_ string, options any) (any, error) {
	v, ok := constructors.Load(key(namespace, type_))
	if !ok {
		return nil, errors.Wrapf(ErrNotRegistered, "%s", key(namespace, type_))
	}
	return v.(*constructor).new(options)
}

// NewWithOptions 根据 TypeOptions 创建组件并断言为 T，Namespace 为空时使用 defaultNamespace
func NewWithOptions[T any](defaultNamespace string, options *TypeOptions) (T, error) {
	var zero T
	if options == nil {
		return zero, errors.New("options is nil")
	}
	namespace := options.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}

	obj, err := New(namespace, options.Type, options.Options)
	if err != nil {
		return zero, err
	}
	result, ok := obj.(T)
	if !ok {
		return zero, errors.Errorf("%s created %T, not a %s",
			key(namespace, options.Type), obj, reflect.TypeOf((*T)(nil)).Elem())
	}
	return result, nil
}
