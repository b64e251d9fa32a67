package writer

import (
	"io"

	"github.com/hatlonely/morm/ref"
)

const Namespace = "github.com/hatlonely/morm/log/writer"

func init() {
	ref.MustRegisterT[*ConsoleWriter](NewConsoleWriterWithOptions)
	ref.MustRegisterT[*FileWriter](NewFileWriterWithOptions)
	ref.MustRegisterT[*MultiWriter](NewMultiWriterWithOptions)
}

// Writer 日志输出器
type Writer interface {
	io.Writer
	io.Closer
}

// NewWriterWithOptions 通过 ref 创建输出器，Namespace 为空时使用本包
func NewWriterWithOptions(options *ref.TypeOptions) (Writer, error) {
	return ref.NewWithOptions[Writer](Namespace, options)
}
