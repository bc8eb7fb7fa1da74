package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/tasklog/tasklog/internal/storage"
	"github.com/tasklog/tasklog/internal/types"
)

const storeScopeName = "github.com/tasklog/tasklog/storage"

// InstrumentedStore wraps a storage.Store with OTel tracing and metrics.
// Every method gets a span and is counted in tl.store.* metrics.
// Use WrapStore to create one; it returns the original store unchanged when
// telemetry is disabled.
type InstrumentedStore struct {
	inner     storage.Store
	tracer    trace.Tracer
	ops       metric.Int64Counter
	dur       metric.Float64Histogram
	errs      metric.Int64Counter
	taskGauge metric.Int64Gauge
}

// WrapStore returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is with zero overhead.
func WrapStore(s storage.Store) storage.Store {
	if !Enabled() {
		return s
	}
	m := Meter(storeScopeName)
	ops, _ := m.Int64Counter("tl.store.operations",
		metric.WithDescription("Total store operations executed"),
	)
	dur, _ := m.Float64Histogram("tl.store.operation.duration",
		metric.WithDescription("Store operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("tl.store.errors",
		metric.WithDescription("Total store operation errors"),
	)
	taskGauge, _ := m.Int64Gauge("tl.task.count",
		metric.WithDescription("Number of tasks in the store (snapshot from ListTasks)"),
	)
	return &InstrumentedStore{
		inner:     s,
		tracer:    Tracer(storeScopeName),
		ops:       ops,
		dur:       dur,
		errs:      errs,
		taskGauge: taskGauge,
	}
}

// op starts a span and records a metric for the named store operation.
func (s *InstrumentedStore) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("tl.operation", name)}, attrs...)
	ctx, span := s.tracer.Start(ctx, "store."+name, trace.WithAttributes(all...))
	s.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (s *InstrumentedStore) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	s.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

// ── Tasks ───────────────────────────────────────────────────────────────────

func (s *InstrumentedStore) ListTasks(ctx context.Context) ([]*types.Task, error) {
	ctx, span, t := s.op(ctx, "ListTasks")
	v, err := s.inner.ListTasks(ctx)
	if err == nil {
		span.SetAttributes(attribute.Int("tl.result.count", len(v)))
		s.taskGauge.Record(ctx, int64(len(v)))
	}
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStore) GetTask(ctx context.Context, id int) (*types.Task, error) {
	attrs := []attribute.KeyValue{attribute.Int("tl.task.id", id)}
	ctx, span, t := s.op(ctx, "GetTask", attrs...)
	v, err := s.inner.GetTask(ctx, id)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStore) NextID(ctx context.Context) (int, error) {
	ctx, span, t := s.op(ctx, "NextID")
	v, err := s.inner.NextID(ctx)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStore) Apply(ctx context.Context, muts ...storage.Mutation) error {
	attrs := []attribute.KeyValue{attribute.Int("tl.mutation.count", len(muts))}
	ctx, span, t := s.op(ctx, "Apply", attrs...)
	err := s.inner.Apply(ctx, muts...)
	s.done(ctx, span, t, err, attrs...)
	return err
}

// ── Configuration ────────────────────────────────────────────────────────────

func (s *InstrumentedStore) GetConfig(ctx context.Context, key string) (string, error) {
	attrs := []attribute.KeyValue{attribute.String("tl.config.key", key)}
	ctx, span, t := s.op(ctx, "GetConfig", attrs...)
	v, err := s.inner.GetConfig(ctx, key)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStore) SetConfig(ctx context.Context, key, value string) error {
	attrs := []attribute.KeyValue{attribute.String("tl.config.key", key)}
	ctx, span, t := s.op(ctx, "SetConfig", attrs...)
	err := s.inner.SetConfig(ctx, key, value)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) UnsetConfig(ctx context.Context, key string) error {
	attrs := []attribute.KeyValue{attribute.String("tl.config.key", key)}
	ctx, span, t := s.op(ctx, "UnsetConfig", attrs...)
	err := s.inner.UnsetConfig(ctx, key)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) ListConfig(ctx context.Context, prefix string) (map[string]string, error) {
	attrs := []attribute.KeyValue{attribute.String("tl.config.prefix", prefix)}
	ctx, span, t := s.op(ctx, "ListConfig", attrs...)
	v, err := s.inner.ListConfig(ctx, prefix)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}
