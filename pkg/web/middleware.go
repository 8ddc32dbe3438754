package web

import (
	"github.com/gofiber/fiber/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowboard/flowboard/pkg/otelhelper"
)

// TraceMiddleware records one span per request. A nil tracer disables
// tracing without a second code path in the handlers.
func TraceMiddleware(tracer trace.Tracer) fiber.Handler {
	return func(c fiber.Ctx) error {
		if tracer == nil {
			return c.Next()
		}

		attrs := []attribute.KeyValue{
			attribute.String(otelhelper.RouteKey, c.Path()),
			attribute.String("http.method", c.Method()),
		}

		if workflowID := c.Params("id"); workflowID != "" {
			attrs = append(attrs, attribute.String(otelhelper.WorkflowIDKey, workflowID))
		}

		_, span := otelhelper.StartSpan(c.Context(), tracer, c.Method()+" "+c.Path(), attrs...)
		defer span.End()

		err := c.Next()
		if err != nil {
			otelhelper.SetError(span, err)
		}

		span.SetAttributes(attribute.Int("http.status_code", c.Response().StatusCode()))

		return err
	}
}
