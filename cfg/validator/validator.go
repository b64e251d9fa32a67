package validator

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// 错误信息中使用 cfg tag 中的名字，和配置文件保持一致
		validate.RegisterTagNameFunc(func(sf reflect.StructField) string {
			if name := tagName(sf); name != "" {
				return name
			}
			return sf.Name
		})
	})
	return validate
}

// ValidateStruct 校验结构体，nil 或者非结构体直接通过
func ValidateStruct(object any) error {
	rv := reflect.ValueOf(object)
	for rv.IsValid() && rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return nil
	}

	return instance().Struct(rv.Interface())
}

func tagName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("cfg"), ",")
	if name == "-" {
		return ""
	}
	return name
}
