package flightstatus

import (
	"context"
	"sync"
	"testing"

	"github.com/LerianStudio/lib-flightstatus/flightstatus/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

func TestCloneContextValues(t *testing.T) {
	t.Parallel()

	t.Run("nil context value returns empty non-nil struct", func(t *testing.T) {
		t.Parallel()

		clone := cloneContextValues(context.Background())

		require.NotNil(t, clone)
		assert.Empty(t, clone.HeaderID)
		assert.Nil(t, clone.Logger)
		assert.Nil(t, clone.Tracer)
		assert.Nil(t, clone.MetricFactory)
		assert.Nil(t, clone.AttrBag)
	})

	t.Run("context with wrong type returns empty non-nil struct", func(t *testing.T) {
		t.Parallel()

		ctx := context.WithValue(context.Background(), CustomContextKey, "not-a-struct")
		clone := cloneContextValues(ctx)

		require.NotNil(t, clone)
		assert.Empty(t, clone.HeaderID)
	})

	t.Run("preserves existing values", func(t *testing.T) {
		t.Parallel()

		nopLogger := &log.NopLogger{}
		tracer := otel.Tracer("test-clone")

		original := &CustomContextKeyValue{
			HeaderID: "hdr-abc",
			Logger:   nopLogger,
			Tracer:   tracer,
		}
		ctx := context.WithValue(context.Background(), CustomContextKey, original)

		clone := cloneContextValues(ctx)

		require.NotNil(t, clone)
		assert.Equal(t, "hdr-abc", clone.HeaderID)
		assert.Equal(t, nopLogger, clone.Logger)
		assert.Equal(t, tracer, clone.Tracer)
	})

	t.Run("deep-copies AttrBag so mutating clone does not affect original", func(t *testing.T) {
		t.Parallel()

		original := &CustomContextKeyValue{
			HeaderID: "hdr-deep",
			AttrBag: []attribute.KeyValue{
				attribute.String("flight.id", "AA123"),
				attribute.String("provider", "flightaware"),
			},
		}
		ctx := context.WithValue(context.Background(), CustomContextKey, original)

		clone := cloneContextValues(ctx)

		require.Len(t, clone.AttrBag, 2)
		assert.Equal(t, original.AttrBag, clone.AttrBag)

		clone.AttrBag[0] = attribute.String("flight.id", "MUTATED")
		clone.AttrBag = append(clone.AttrBag, attribute.String("extra", "added"))

		assert.Equal(t, "AA123", original.AttrBag[0].Value.AsString())
		assert.Len(t, original.AttrBag, 2)
	})
}

func TestCloneContextValues_Concurrent(t *testing.T) {
	t.Parallel()

	// Two goroutines derive independent contexts from the same parent and
	// mutate their own AttrBag without data races.
	original := &CustomContextKeyValue{
		HeaderID: "hdr-concurrent",
		AttrBag: []attribute.KeyValue{
			attribute.String("shared", "value"),
		},
	}
	parentCtx := context.WithValue(context.Background(), CustomContextKey, original)

	const goroutines = 50

	var wg sync.WaitGroup

	wg.Add(goroutines)

	for i := range goroutines {
		go func(id int) {
			defer wg.Done()

			clone := cloneContextValues(parentCtx)

			clone.AttrBag = append(clone.AttrBag, attribute.Int("goroutine", id))
			clone.HeaderID = "modified"
		}(i)
	}

	wg.Wait()

	assert.Equal(t, "hdr-concurrent", original.HeaderID)
	assert.Len(t, original.AttrBag, 1)
	assert.Equal(t, "value", original.AttrBag[0].Value.AsString())
}

func TestContextSetters_DoNotShareState(t *testing.T) {
	t.Parallel()

	base := ContextWithHeaderID(context.Background(), "base-id")

	withLogger := ContextWithLogger(base, &log.NopLogger{})
	withTracer := ContextWithTracer(base, otel.Tracer("other"))

	baseValues, ok := base.Value(CustomContextKey).(*CustomContextKeyValue)
	require.True(t, ok)
	assert.Nil(t, baseValues.Logger, "sibling context must not leak logger into base")
	assert.Nil(t, baseValues.Tracer, "sibling context must not leak tracer into base")

	loggerValues, ok := withLogger.Value(CustomContextKey).(*CustomContextKeyValue)
	require.True(t, ok)
	assert.NotNil(t, loggerValues.Logger)
	assert.Equal(t, "base-id", loggerValues.HeaderID)

	tracerValues, ok := withTracer.Value(CustomContextKey).(*CustomContextKeyValue)
	require.True(t, ok)
	assert.NotNil(t, tracerValues.Tracer)
	assert.Nil(t, tracerValues.Logger)
}

func TestNewTrackingFromContext(t *testing.T) {
	t.Parallel()

	t.Run("empty context provides functional defaults", func(t *testing.T) {
		t.Parallel()

		logger, tracer, headerID, factory := NewTrackingFromContext(context.Background())

		assert.NotNil(t, logger)
		assert.NotNil(t, tracer)
		assert.NotEmpty(t, headerID)
		assert.True(t, IsUUID(headerID))
		assert.NotNil(t, factory)
	})

	t.Run("carried components are preserved", func(t *testing.T) {
		t.Parallel()

		nopLogger := &log.NopLogger{}

		ctx := ContextWithLogger(context.Background(), nopLogger)
		ctx = ContextWithHeaderID(ctx, "req-42")

		logger, _, headerID, factory := NewTrackingFromContext(ctx)

		assert.Equal(t, nopLogger, logger)
		assert.Equal(t, "req-42", headerID)
		assert.NotNil(t, factory)
	})

	t.Run("whitespace header id falls back to generated uuid", func(t *testing.T) {
		t.Parallel()

		ctx := ContextWithHeaderID(context.Background(), "   ")

		_, _, headerID, _ := NewTrackingFromContext(ctx)

		assert.True(t, IsUUID(headerID))
	})
}

func TestAttributesFromContext(t *testing.T) {
	t.Parallel()

	t.Run("empty context returns nil", func(t *testing.T) {
		t.Parallel()

		assert.Nil(t, AttributesFromContext(context.Background()))
	})

	t.Run("returns copy of attr bag", func(t *testing.T) {
		t.Parallel()

		ctx := ContextWithSpanAttributes(context.Background(),
			attribute.String("flight.id", "UA456"),
			attribute.String("flight.date", "2025-03-01"),
		)

		attrs := AttributesFromContext(ctx)
		require.Len(t, attrs, 2)

		attrs[0] = attribute.String("flight.id", "CHANGED")

		again := AttributesFromContext(ctx)
		assert.Equal(t, "UA456", again[0].Value.AsString())
	})

	t.Run("ReplaceAttributes resets the bag", func(t *testing.T) {
		t.Parallel()

		ctx := ContextWithSpanAttributes(context.Background(),
			attribute.String("a", "1"),
			attribute.String("b", "2"),
		)
		ctx = ReplaceAttributes(ctx, attribute.String("c", "3"))

		attrs := AttributesFromContext(ctx)
		require.Len(t, attrs, 1)
		assert.Equal(t, "c", string(attrs[0].Key))
	})
}
