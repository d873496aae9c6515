package trace

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// OTelSink bridges the simulation trace stream onto an OpenTelemetry
// tracer. Each trace event becomes a zero-duration span carrying the
// virtual timestamp and message metadata as attributes, so sim runs can
// be inspected in standard tracing UIs.
type OTelSink struct {
	tracer oteltrace.Tracer
}

// NewOTelSink builds a sink emitting through the named tracer of the
// globally installed provider. Call observability.InitTracing first to
// install one.
func NewOTelSink(tracerName string) *OTelSink {
	if tracerName == "" {
		tracerName = "virtualtime-simulator"
	}
	return &OTelSink{tracer: otel.Tracer(tracerName)}
}

// Append implements Sink.
func (s *OTelSink) Append(ev Event) {
	_, span := s.tracer.Start(context.Background(), fmt.Sprintf("%s %s->%s", ev.Kind, ev.From, ev.To))
	span.SetAttributes(
		attribute.Int64("sim.time", ev.Timestamp),
		attribute.String("sim.from", ev.From),
		attribute.String("sim.to", ev.To),
		attribute.String("sim.kind", string(ev.Kind)),
		attribute.String("sim.payload", fmt.Sprintf("%v", ev.Payload)),
	)
	span.End()
}
