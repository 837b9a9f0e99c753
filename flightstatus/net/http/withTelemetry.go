package http

import (
	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/LerianStudio/lib-flightstatus/flightstatus"
	libOpentelemetry "github.com/LerianStudio/lib-flightstatus/flightstatus/opentelemetry"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/opentelemetry/metrics"
)

// WithTelemetry opens one server span per request, links it to any upstream
// trace found in the headers, and stores the tracer and metrics factory in
// the user context for handlers to pick up.
func WithTelemetry(tracer trace.Tracer, factory *metrics.MetricsFactory) fiber.Handler {
	if tracer == nil {
		tracer = otel.Tracer("flightstatus.http")
	}

	return func(c *fiber.Ctx) error {
		ctx := setRequestHeaderID(c)

		_, _, requestID, _ := flightstatus.NewTrackingFromContext(ctx)
		ctx = flightstatus.ContextWithSpanAttributes(ctx,
			attribute.String("app.request.request_id", requestID),
		)

		c.SetUserContext(ctx)
		ctx = libOpentelemetry.ExtractHTTPContext(c)

		// c.Route() is not reliable inside Use middleware, so the span is
		// named after the raw path.
		ctx, span := tracer.Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.path", c.Path()),
				attribute.String("http.host", c.Hostname()),
			),
		)
		defer span.End()

		ctx = flightstatus.ContextWithTracer(ctx, tracer)
		if factory != nil {
			ctx = flightstatus.ContextWithMetricFactory(ctx, factory)
		}

		c.SetUserContext(ctx)

		err := c.Next()

		span.SetAttributes(attribute.Int("http.status_code", c.Response().StatusCode()))

		return err
	}
}
