package cli

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// newTracerProvider samples root spans at ratio and logs every failed span
// with its trace id. Exporters can be added by registering further span
// processors on the returned provider.
func newTracerProvider(ratio float64, logger *slog.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithResource(sdkresource.NewSchemaless(
			attribute.String("service.name", "marketplace-service"),
		)),
		sdktrace.WithSpanProcessor(&failedSpanLogger{logger: logger}),
	)
}

// failedSpanLogger writes a warning for each span that ended in error.
type failedSpanLogger struct {
	logger *slog.Logger
}

func (p *failedSpanLogger) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *failedSpanLogger) OnEnd(s sdktrace.ReadOnlySpan) {
	if s.Status().Code != codes.Error {
		return
	}
	args := []any{
		"span", s.Name(),
		"traceId", s.SpanContext().TraceID().String(),
		"duration", s.EndTime().Sub(s.StartTime()),
		"err", s.Status().Description,
	}
	for _, kv := range s.Attributes() {
		args = append(args, string(kv.Key), kv.Value.Emit())
	}
	p.logger.Warn("span failed", args...)
}

func (p *failedSpanLogger) Shutdown(context.Context) error   { return nil }
func (p *failedSpanLogger) ForceFlush(context.Context) error { return nil }
