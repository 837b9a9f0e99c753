package runtime

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrPanic is the sentinel wrapped into errors recorded on spans for
// recovered panics.
var ErrPanic = errors.New("panic")

// PanicSpanEventName is the span event name used for recovered panics.
const PanicSpanEventName = "panic.recovered"

// maxStackAttrLen bounds the stack trace attribute so span payloads stay small.
const maxStackAttrLen = 4096

// RecordPanicToSpan records a recovered panic on the active span in ctx, if
// any. It adds a panic.recovered event, records the panic as an error, and
// sets the span status to Error. No-op when the span is not recording.
func RecordPanicToSpan(ctx context.Context, panicValue any, stack []byte, goroutineName string) {
	recordPanic(ctx, panicValue, stack, "", goroutineName)
}

// RecordPanicToSpanWithComponent is like RecordPanicToSpan but also tags the
// event with a panic.component attribute.
func RecordPanicToSpanWithComponent(
	ctx context.Context,
	panicValue any,
	stack []byte,
	component, goroutineName string,
) {
	recordPanic(ctx, panicValue, stack, component, goroutineName)
}

func recordPanic(ctx context.Context, panicValue any, stack []byte, component, goroutineName string) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("panic.value", formatPanicValue(panicValue)),
		attribute.String("panic.stack", truncateStack(stack)),
		attribute.String("panic.goroutine_name", goroutineName),
	}

	if component != "" {
		attrs = append(attrs, attribute.String("panic.component", component))
	}

	span.AddEvent(PanicSpanEventName, trace.WithAttributes(attrs...))
	span.RecordError(fmt.Errorf("%w: %v", ErrPanic, panicValue))
	span.SetStatus(codes.Error, "panic recovered in "+goroutineName)
}

func truncateStack(stack []byte) string {
	s := string(stack)
	if len(s) > maxStackAttrLen {
		return s[:maxStackAttrLen] + "\n...[truncated]"
	}

	return s
}

func formatPanicValue(value any) string {
	if value == nil {
		return "<nil>"
	}

	switch val := value.(type) {
	case string:
		return val
	case error:
		return val.Error()
	default:
		return fmt.Sprintf("%v", value)
	}
}
