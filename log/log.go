package log

import (
	"sync/atomic"

	"github.com/hatlonely/morm/log/logger"
	"github.com/hatlonely/morm/ref"
)

var defaultLogger atomic.Value

func init() {
	// 默认向终端输出 text 格式日志
	slog, err := logger.NewSLogWithOptions(&logger.SLogOptions{
		Level:  "info",
		Format: "text",
	})
	if err != nil {
		panic("failed to initialize default logger: " + err.Error())
	}
	SetDefault(slog)
}

func Default() logger.Logger {
	return defaultLogger.Load().(*holder).logger
}

// SetDefault 替换默认 Logger，nil 时使用 Nop
func SetDefault(l logger.Logger) {
	if l == nil {
		l = logger.Nop()
	}
	defaultLogger.Store(&holder{logger: l})
}

// NewLoggerWithOptions 通过 ref 创建 Logger，Namespace 为空时使用 logger 包
// options 为 nil 时返回默认 Logger
func NewLoggerWithOptions(options *ref.TypeOptions) (logger.Logger, error) {
	if options == nil {
		return Default(), nil
	}
	return ref.NewWithOptions[logger.Logger](logger.Namespace, options)
}

// atomic.Value 要求存入的具体类型一致
type holder struct {
	logger logger.Logger
}
