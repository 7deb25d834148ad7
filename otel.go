package moodlog

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/rbaliyan/moodlog"
)

// otelInstrumentation holds tracing and metrics for the service.
type otelInstrumentation struct {
	tracingEnabled bool
	tracer         trace.Tracer

	metricsEnabled bool

	addLatency    metric.Float64Histogram
	addCount      metric.Int64Counter
	addErrors     metric.Int64Counter
	deleteLatency metric.Float64Histogram
	deleteCount   metric.Int64Counter
	deleteErrors  metric.Int64Counter
	readLatency   metric.Float64Histogram
	readCount     metric.Int64Counter
	readErrors    metric.Int64Counter

	// Last computed trend slope per window, for dashboards.
	trendSlope metric.Float64Histogram

	consistencyErrors metric.Int64Counter
}

func newOtelInstrumentation(opts *options) (*otelInstrumentation, error) {
	o := &otelInstrumentation{
		tracingEnabled: opts.tracingEnabled,
		metricsEnabled: opts.metricsEnabled,
	}

	if opts.tracingEnabled {
		tp := opts.tracerProvider
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		o.tracer = tp.Tracer(instrumentationName)
	}

	if opts.metricsEnabled {
		mp := opts.meterProvider
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		if err := o.initMetrics(mp.Meter(instrumentationName)); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// instrument creates the duration histogram, call counter and error
// counter for one operation family.
func instrument(meter metric.Meter, name, what string) (metric.Float64Histogram, metric.Int64Counter, metric.Int64Counter, error) {
	latency, err := meter.Float64Histogram("moodlog."+name+".duration",
		metric.WithDescription("Duration of "+what+" operations"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, nil, nil, err
	}
	count, err := meter.Int64Counter("moodlog."+name+".count",
		metric.WithDescription("Number of "+what+" operations"))
	if err != nil {
		return nil, nil, nil, err
	}
	errs, err := meter.Int64Counter("moodlog."+name+".errors",
		metric.WithDescription("Number of "+what+" errors"))
	if err != nil {
		return nil, nil, nil, err
	}
	return latency, count, errs, nil
}

func (o *otelInstrumentation) initMetrics(meter metric.Meter) error {
	var err error
	if o.addLatency, o.addCount, o.addErrors, err = instrument(meter, "add", "record add"); err != nil {
		return err
	}
	if o.deleteLatency, o.deleteCount, o.deleteErrors, err = instrument(meter, "delete", "record delete"); err != nil {
		return err
	}
	if o.readLatency, o.readCount, o.readErrors, err = instrument(meter, "read", "journal read"); err != nil {
		return err
	}

	o.trendSlope, err = meter.Float64Histogram("moodlog.trend.slope",
		metric.WithDescription("Fitted OCD index slope per trend computation"))
	if err != nil {
		return err
	}

	o.consistencyErrors, err = meter.Int64Counter("moodlog.consistency.errors",
		metric.WithDescription("Number of record/bucket consistency violations"))
	return err
}

// startSpan starts a span when tracing is enabled and returns a function
// that ends it, recording err.
func (o *otelInstrumentation) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if !o.tracingEnabled || o.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := o.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

func (o *otelInstrumentation) recordAdd(ctx context.Context, duration time.Duration, state string, err error) {
	if !o.metricsEnabled {
		return
	}
	attrs := metric.WithAttributes(attribute.String("state", state))
	o.addLatency.Record(ctx, duration.Seconds(), attrs)
	o.addCount.Add(ctx, 1, attrs)
	if err != nil {
		o.addErrors.Add(ctx, 1, attrs)
	}
}

func (o *otelInstrumentation) recordDelete(ctx context.Context, duration time.Duration, bulk bool, err error) {
	if !o.metricsEnabled {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("bulk", bulk))
	o.deleteLatency.Record(ctx, duration.Seconds(), attrs)
	o.deleteCount.Add(ctx, 1, attrs)
	if err != nil {
		o.deleteErrors.Add(ctx, 1, attrs)
	}
	if _, ok := IsConsistencyError(err); ok {
		o.consistencyErrors.Add(ctx, 1)
	}
}

// recordRead covers list, window, trend and stats reads.
func (o *otelInstrumentation) recordRead(ctx context.Context, duration time.Duration, op string, err error) {
	if !o.metricsEnabled {
		return
	}
	attrs := metric.WithAttributes(attribute.String("operation", op))
	o.readLatency.Record(ctx, duration.Seconds(), attrs)
	o.readCount.Add(ctx, 1, attrs)
	if err != nil {
		o.readErrors.Add(ctx, 1, attrs)
	}
}

func (o *otelInstrumentation) recordTrend(ctx context.Context, slope float64, trend string) {
	if !o.metricsEnabled {
		return
	}
	o.trendSlope.Record(ctx, slope, metric.WithAttributes(attribute.String("trend", trend)))
}
