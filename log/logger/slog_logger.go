package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/hatlonely/morm/log/writer"
	"github.com/hatlonely/morm/ref"
	"github.com/pkg/errors"
)

const Namespace = "github.com/hatlonely/morm/log/logger"

func init() {
	ref.MustRegisterT[*SLog](NewSLogWithOptions)
}

type SLogOptions struct {
	Level  string `cfg:"level" def:"info" validate:"omitempty,oneof=debug info warn error"`
	Format string `cfg:"format" def:"text" validate:"omitempty,oneof=text json"`

	// 为空时输出到标准输出
	Output *ref.TypeOptions `cfg:"output"`

	// 附加到每条日志的字段，例如 component
	Fields map[string]any `cfg:"fields"`

	// 优先于 Output，只能在代码中设置
	Writer io.Writer `cfg:"-"`
}

// SLog 基于 log/slog 的 Logger 实现
type SLog struct {
	slogger *slog.Logger
}

func NewSLogWithOptions(options *SLogOptions) (*SLog, error) {
	if options == nil {
		options = &SLogOptions{}
	}

	w, err := output(options)
	if err != nil {
		return nil, err
	}
	handler, err := newHandler(w, options.Level, options.Format)
	if err != nil {
		return nil, err
	}

	args := make([]any, 0, len(options.Fields)*2)
	for k, v := range options.Fields {
		args = append(args, k, v)
	}
	return &SLog{slogger: slog.New(handler).With(args...)}, nil
}

func output(options *SLogOptions) (io.Writer, error) {
	if options.Writer != nil {
		return options.Writer, nil
	}
	if options.Output == nil {
		return writer.NewConsoleWriterWithOptions(nil)
	}
	w, err := writer.NewWriterWithOptions(options.Output)
	if err != nil {
		return nil, errors.WithMessage(err, "create writer failed")
	}
	return w, nil
}

func newHandler(w io.Writer, level string, format string) (slog.Handler, error) {
	var lv slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lv = slog.LevelDebug
	case "", "info":
		lv = slog.LevelInfo
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		return nil, errors.Errorf("unknown level %q", level)
	}

	ho := &slog.HandlerOptions{Level: lv}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.NewTextHandler(w, ho), nil
	case "json":
		return slog.NewJSONHandler(w, ho), nil
	}
	return nil, errors.Errorf("unsupported format %q", format)
}

func (l *SLog) Debug(msg string, args ...any) { l.slogger.Debug(msg, args...) }
func (l *SLog) Info(msg string, args ...any)  { l.slogger.Info(msg, args...) }
func (l *SLog) Warn(msg string, args ...any)  { l.slogger.Warn(msg, args...) }
func (l *SLog) Error(msg string, args ...any) { l.slogger.Error(msg, args...) }

func (l *SLog) DebugContext(ctx context.Context, msg string, args ...any) {
	l.slogger.DebugContext(ctx, msg, args...)
}

func (l *SLog) InfoContext(ctx context.Context, msg string, args ...any) {
	l.slogger.InfoContext(ctx, msg, args...)
}

func (l *SLog) WarnContext(ctx context.Context, msg string, args ...any) {
	l.slogger.WarnContext(ctx, msg, args...)
}

func (l *SLog) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.slogger.ErrorContext(ctx, msg, args...)
}

func (l *SLog) With(args ...any) Logger {
	return &SLog{slogger: l.slogger.With(args...)}
}

func (l *SLog) WithGroup(name string) Logger {
	return &SLog{slogger: l.slogger.WithGroup(name)}
}
