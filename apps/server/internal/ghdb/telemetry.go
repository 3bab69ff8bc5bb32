package ghdb

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrName = "github.com/tilsley/stockroom/ghdb"

type instruments struct {
	tracer   trace.Tracer
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newInstruments() *instruments {
	m := otel.Meter(instrName)

	requests, _ := m.Int64Counter("stockroom.github.requests",
		metric.WithDescription("GitHub database operations by outcome"))
	duration, _ := m.Float64Histogram("stockroom.github.duration",
		metric.WithDescription("GitHub database operation duration in milliseconds"),
		metric.WithUnit("ms"))

	return &instruments{
		tracer:   otel.Tracer(instrName),
		requests: requests,
		duration: duration,
	}
}

// observe starts a span for op and returns a func that ends it and records
// the request counter and duration histogram.
func (in *instruments) observe(ctx context.Context, op, path string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := in.tracer.Start(ctx, "ghdb."+op,
		trace.WithAttributes(attribute.String("ghdb.path", path)))

	return ctx, func(err error) {
		attrs := metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("outcome", outcome(err)),
		)
		in.requests.Add(ctx, 1, attrs)
		in.duration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
