package bootstrap

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("youspent.bootstrap")

// Bring-up outcomes used as the "outcome" label.
const (
	outcomeOK        = "ok"
	outcomeRecovered = "recovered"
	outcomeFailed    = "failed"
)

type metrics struct {
	runs       *prometheus.CounterVec
	duration   prometheus.Histogram
	recoveries prometheus.Counter
	seeded     prometheus.Counter
}

// newMetrics builds the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "youspent",
			Subsystem: "bootstrap",
			Name:      "runs_total",
			Help:      "Total store bring-up attempts by outcome",
		}, []string{"outcome"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "youspent",
			Subsystem: "bootstrap",
			Name:      "duration_seconds",
			Help:      "Duration of store bring-up including recovery",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		recoveries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "youspent",
			Subsystem: "bootstrap",
			Name:      "recoveries_total",
			Help:      "Total recreate-and-retry cycles",
		}),
		seeded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "youspent",
			Subsystem: "bootstrap",
			Name:      "seeded_types_total",
			Help:      "Total default expense types inserted",
		}),
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
