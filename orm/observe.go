package orm

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type metrics struct {
	statements *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	cache      *prometheus.CounterVec
}

func newMetrics(name string, reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		statements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_statements_total",
				Help: "Total number of executed statements",
			},
			[]string{"operation", "table", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_statement_duration_seconds",
				Help:    "Duration of executed statements in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"operation", "table"},
		),
		cache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_cache_requests_total",
				Help: "Total number of query cache lookups",
			},
			[]string{"table", "result"},
		),
	}

	var err error
	if m.statements, err = register(reg, m.statements); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.cache, err = register(reg, m.cache); err != nil {
		return nil, err
	}
	return m, nil
}

// register 同名指标已注册时复用已有的收集器
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, errors.Wrap(err, "register metrics")
	}
	return c, nil
}

// observe 所有语句都经过这里：tracing span、指标和日志
func (db *DB) observe(ctx context.Context, op string, table string, query string, args []any, fn func(context.Context) error) error {
	start := time.Now()

	var span trace.Span
	if db.tracer != nil {
		ctx, span = db.tracer.Start(ctx, "orm."+op,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("component", db.name),
				attribute.String("db.system", db.dialect.Name()),
				attribute.String("db.operation", op),
				attribute.String("db.sql.table", table),
				attribute.String("db.statement", query),
			),
		)
		defer span.End()
	}

	err := fn(ctx)
	duration := time.Since(start)

	if span != nil {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	if db.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		db.metrics.statements.WithLabelValues(op, table, status).Inc()
		db.metrics.duration.WithLabelValues(op, table).Observe(duration.Seconds())
	}

	if err != nil {
		db.logger.WarnContext(ctx, "statement failed",
			"operation", op, "table", table, "sql", query, "args", args,
			"duration", duration, "error", err.Error())
	} else {
		db.logger.DebugContext(ctx, "statement executed",
			"operation", op, "table", table, "sql", query, "args", args,
			"duration", duration)
	}

	return err
}

func (db *DB) observeCache(table string, result string) {
	if db.metrics != nil {
		db.metrics.cache.WithLabelValues(table, result).Inc()
	}
}
