// Package otel wraps a snapshot.FileStore with OpenTelemetry tracing and
// metrics.
package otel

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rbaliyan/moodlog/snapshot"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/rbaliyan/moodlog/snapshot/otel"

// Store decorates a FileStore with spans and per-operation metrics.
type Store struct {
	backend snapshot.FileStore
	opts    options
	tracer  trace.Tracer

	duration metric.Float64Histogram
	calls    metric.Int64Counter
	errors   metric.Int64Counter
	bytes    metric.Int64Counter
}

var _ snapshot.FileStore = (*Store)(nil)

// New wraps backend.
func New(backend snapshot.FileStore, opts ...Option) (*Store, error) {
	o := options{
		tracingEnabled: true,
		metricsEnabled: true,
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store{backend: backend, opts: o}
	if o.tracingEnabled {
		s.tracer = o.tracerProvider.Tracer(instrumentationName)
	}
	if o.metricsEnabled {
		if err := s.initMetrics(o.meterProvider.Meter(instrumentationName)); err != nil {
			return nil, fmt.Errorf("init metrics: %w", err)
		}
	}
	return s, nil
}

func (s *Store) initMetrics(meter metric.Meter) error {
	var err error
	if s.duration, err = meter.Float64Histogram("snapshot.file.duration",
		metric.WithDescription("Duration of snapshot file operations"),
		metric.WithUnit("s")); err != nil {
		return err
	}
	if s.calls, err = meter.Int64Counter("snapshot.file.count",
		metric.WithDescription("Number of snapshot file operations")); err != nil {
		return err
	}
	if s.errors, err = meter.Int64Counter("snapshot.file.errors",
		metric.WithDescription("Number of failed snapshot file operations")); err != nil {
		return err
	}
	s.bytes, err = meter.Int64Counter("snapshot.file.bytes",
		metric.WithDescription("Bytes uploaded and loaded"),
		metric.WithUnit("By"))
	return err
}

// start opens a span for op and returns a finisher recording its outcome.
func (s *Store) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(err error, n int64)) {
	begin := time.Now()
	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, "snapshot.file."+op,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attrs...))
	}

	return ctx, func(err error, n int64) {
		opAttr := metric.WithAttributes(attribute.String("operation", op))
		if s.opts.metricsEnabled {
			s.duration.Record(ctx, time.Since(begin).Seconds(), opAttr)
			s.calls.Add(ctx, 1, opAttr)
			if err != nil {
				s.errors.Add(ctx, 1, opAttr)
			}
			if n > 0 {
				s.bytes.Add(ctx, n, opAttr)
			}
		}
		if span == nil {
			return
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int64("snapshot.bytes", n))
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// Upload records the upload and the bytes read from content.
func (s *Store) Upload(ctx context.Context, filename, contentType string, content io.Reader) (string, error) {
	ctx, finish := s.start(ctx, "upload", attribute.String("snapshot.filename", filename))
	cr := &countingReader{r: content}
	uri, err := s.backend.Upload(ctx, filename, contentType, cr)
	finish(err, cr.n)
	return uri, err
}

// Load records the load; the span ends when the returned reader is closed.
func (s *Store) Load(ctx context.Context, uri string) (io.ReadCloser, error) {
	ctx, finish := s.start(ctx, "load", attribute.String("snapshot.uri", uri))
	rc, err := s.backend.Load(ctx, uri)
	if err != nil {
		finish(err, 0)
		return nil, err
	}
	return &instrumentedReader{rc: rc, finish: finish}, nil
}

// Delete records the deletion.
func (s *Store) Delete(ctx context.Context, uri string) error {
	ctx, finish := s.start(ctx, "delete", attribute.String("snapshot.uri", uri))
	err := s.backend.Delete(ctx, uri)
	finish(err, 0)
	return err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

type instrumentedReader struct {
	rc     io.ReadCloser
	n      int64
	err    error
	finish func(error, int64)
	closed bool
}

func (r *instrumentedReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	r.n += int64(n)
	if err != nil && err != io.EOF {
		r.err = err
	}
	return n, err
}

func (r *instrumentedReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.rc.Close()
	if r.err == nil {
		r.err = err
	}
	r.finish(r.err, r.n)
	return err
}
