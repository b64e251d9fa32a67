package orm

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrStore 数据库执行失败，具体错误通过 StoreError 携带
	ErrStore = errors.New("store operation failed")
	// ErrUnsaved 实例还没有主键
	ErrUnsaved = errors.New("instance is not saved")
)

// StoreError 记录失败的操作和语句，errors.Is(err, ErrStore) 为 true
type StoreError struct {
	Op    string
	Query string
	Err   error
}

func (e *StoreError) Error() string {
	if e.Query == "" {
		return fmt.Sprintf("orm %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("orm %s [%s]: %v", e.Op, e.Query, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

func storeError(op string, query string, err error) error {
	return &StoreError{Op: op, Query: query, Err: err}
}
