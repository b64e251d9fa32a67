package meta

import (
	"reflect"
	"sort"
	"sync"

	"github.com/hatlonely/morm/dialect"
	"github.com/pkg/errors"
)

// Registry 模型类型到元数据的缓存，并发安全
type Registry struct {
	dialect dialect.Dialect

	mu     sync.RWMutex
	models map[reflect.Type]*MetaModel
	tables map[string]*MetaModel
}

func NewRegistry(d dialect.Dialect) *Registry {
	if d == nil {
		d = dialect.SQLite
	}
	return &Registry{
		dialect: d,
		models:  map[reflect.Type]*MetaModel{},
		tables:  map[string]*MetaModel{},
	}
}

func (r *Registry) Dialect() dialect.Dialect {
	return r.dialect
}

// Register 注册模型类型，重复注册返回同一个 MetaModel
func Register[T any](r *Registry) (*MetaModel, error) {
	return r.RegisterType(reflect.TypeOf((*T)(nil)).Elem())
}

// Register v 可以是结构体、结构体指针或 reflect.Type
func (r *Registry) Register(v any) (*MetaModel, error) {
	if t, ok := v.(reflect.Type); ok {
		return r.RegisterType(t)
	}
	if v == nil {
		return nil, errors.Wrap(ErrSchema, "nil model")
	}
	return r.RegisterType(reflect.TypeOf(v))
}

func (r *Registry) RegisterType(t reflect.Type) (*MetaModel, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if m, ok := r.Lookup(t); ok {
		return m, nil
	}

	m, err := newMetaModel(t, r.dialect)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if exists, ok := r.models[t]; ok {
		return exists, nil
	}
	if exists, ok := r.tables[m.table]; ok {
		return nil, errors.Wrapf(ErrSchema, "table %q already registered by %s", m.table, exists.typ)
	}
	r.models[t] = m
	r.tables[m.table] = m

	return m, nil
}

func (r *Registry) Lookup(t reflect.Type) (*MetaModel, bool) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[t]
	return m, ok
}

// LookupTable 按表名查找已注册的模型
func (r *Registry) LookupTable(table string) (*MetaModel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.tables[table]
	return m, ok
}

// Models 所有已注册的模型，按表名排序
func (r *Registry) Models() []*MetaModel {
	r.mu.RLock()
	models := make([]*MetaModel, 0, len(r.models))
	for _, m := range r.models {
		models = append(models, m)
	}
	r.mu.RUnlock()

	sort.Slice(models, func(i, j int) bool {
		return models[i].table < models[j].table
	})
	return models
}
