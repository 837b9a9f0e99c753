package http

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/LerianStudio/lib-flightstatus/flightstatus"
	constant "github.com/LerianStudio/lib-flightstatus/flightstatus/constants"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/failover"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/log"
	libOpentelemetry "github.com/LerianStudio/lib-flightstatus/flightstatus/opentelemetry"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/provider"
)

// maxBatchItems bounds one batch request. Larger workloads should page.
const maxBatchItems = 256

// Ping returns HTTP Status 200 with response "pong".
func Ping(c *fiber.Ctx) error {
	return c.SendString("pong")
}

// Version returns HTTP Status 200 with given version.
func Version(c *fiber.Ctx) error {
	return OK(c, fiber.Map{
		"version":     flightstatus.GetenvOrDefault("VERSION", "0.0.0"),
		"requestDate": time.Now().UTC(),
	})
}

// FiberErrorHandler is the canonical Fiber error handler. It uses the
// structured logger from the request context and renders every error
// through the shared ErrorResponse contract.
func FiberErrorHandler(c *fiber.Ctx, err error) error {
	ctx := c.UserContext()
	if ctx != nil {
		span := trace.SpanFromContext(ctx)
		libOpentelemetry.HandleSpanError(span, "handler error", err)
	}

	// Routing errors (404s and friends) render without the error log.
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return RenderError(c, err)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	logger := flightstatus.NewLoggerFromContext(ctx)
	logger.Log(ctx, log.LevelError, "handler error",
		log.String("method", c.Method()),
		log.String("path", c.Path()),
		log.Err(err),
	)

	return RenderError(c, err)
}

// StatusHandler serves flight-status resolution over one batch Coordinator.
type StatusHandler struct {
	Coordinator *failover.Coordinator
}

// GetFlightStatus resolves one flight-day.
//
//	GET /v1/flights/:flight/status?date=YYYY-MM-DD
//
// Fresh and stale records both answer 200; stale ones carry "stale": true.
// When every provider failed the response is a 502 listing each provider's
// terminal failure kind.
func (h *StatusHandler) GetFlightStatus(c *fiber.Ctx) error {
	ctx := c.UserContext()
	logger, tracer, _, _ := flightstatus.NewTrackingFromContext(ctx)

	flight := strings.TrimSpace(c.Params("flight"))
	if flight == "" {
		return BadRequestError(c, "invalid_flight", "flight identifier is required")
	}

	date, err := parseDate(c.Query("date"))
	if err != nil {
		return BadRequestError(c, "invalid_date", err.Error())
	}

	ctx, span := tracer.Start(ctx, "handler.get_flight_status")
	defer span.End()

	span.SetAttributes(
		attribute.String(constant.AttrPrefixFlight+"id", constant.SanitizeMetricLabel(flight)),
		attribute.String(constant.AttrPrefixFlight+"date", date.Format(dateLayout)),
	)

	record, err := h.Coordinator.Resolve(ctx, flight, date)
	if err != nil {
		libOpentelemetry.HandleSpanError(span, "resolve failed", err)

		logger.Log(ctx, log.LevelWarn, "flight status resolution failed",
			log.String("flight_id", flight),
			log.String("departure_date", date.Format(dateLayout)),
			log.Err(err),
		)

		return RenderError(c, err)
	}

	return OK(c, record)
}

type batchRequestBody struct {
	Requests   []batchItemRequest `json:"requests"`
	DeadlineMS int64              `json:"deadline_ms"`
}

type batchItemRequest struct {
	Flight string `json:"flight"`
	Date   string `json:"date"`
}

type batchItemResult struct {
	Flight string                       `json:"flight"`
	Date   string                       `json:"date"`
	Record *provider.FlightStatusRecord `json:"record,omitempty"`
	Error  *batchItemError              `json:"error,omitempty"`
}

type batchItemError struct {
	Message   string                          `json:"message"`
	Providers map[string]provider.FailureKind `json:"providers,omitempty"`
}

type batchResponse struct {
	Results   []batchItemResult `json:"results"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// BatchFlightStatus resolves many flight-days in one call.
//
//	POST /v1/flights/status/batch
//	{"requests": [{"flight": "AA123", "date": "2025-03-01"}, ...], "deadline_ms": 1500}
//
// The response is always 200 once the body validates: each item carries its
// own record or error, results in request order, and one item's failure
// never fails the batch.
func (h *StatusHandler) BatchFlightStatus(c *fiber.Ctx) error {
	ctx := c.UserContext()
	logger, tracer, _, _ := flightstatus.NewTrackingFromContext(ctx)

	var body batchRequestBody
	if err := c.BodyParser(&body); err != nil {
		return BadRequestError(c, "invalid_body", "request body must be JSON")
	}

	if len(body.Requests) == 0 {
		return BadRequestError(c, "empty_batch", "requests must not be empty")
	}

	if len(body.Requests) > maxBatchItems {
		return WriteError(c, fiber.StatusRequestEntityTooLarge, "batch_too_large",
			fmt.Sprintf("batch size %d exceeds the limit of %d", len(body.Requests), maxBatchItems))
	}

	requests := make([]failover.BatchRequest, 0, len(body.Requests))

	for i, item := range body.Requests {
		flight := strings.TrimSpace(item.Flight)
		if flight == "" {
			return BadRequestError(c, "invalid_flight",
				fmt.Sprintf("requests[%d]: flight identifier is required", i))
		}

		date, err := parseDate(item.Date)
		if err != nil {
			return BadRequestError(c, "invalid_date", fmt.Sprintf("requests[%d]: %v", i, err))
		}

		requests = append(requests, failover.BatchRequest{FlightID: flight, DepartureDate: date})
	}

	ctx, span := tracer.Start(ctx, "handler.batch_flight_status")
	defer span.End()

	span.SetAttributes(attribute.Int("batch.requests", len(requests)))

	opts := failover.BatchOptions{}
	if body.DeadlineMS > 0 {
		opts.Deadline = time.Duration(body.DeadlineMS) * time.Millisecond
	}

	results := h.Coordinator.ResolveAll(ctx, requests, opts)

	response := batchResponse{Results: make([]batchItemResult, 0, len(results))}

	for _, result := range results {
		item := batchItemResult{
			Flight: result.Request.FlightID,
			Date:   result.Request.DepartureDate.Format(dateLayout),
		}

		if result.Err != nil {
			item.Error = newBatchItemError(result.Err)
			response.Failed++
		} else {
			item.Record = result.Record
			response.Succeeded++
		}

		response.Results = append(response.Results, item)
	}

	if response.Failed > 0 {
		logger.Log(ctx, log.LevelWarn, "batch resolved with failures",
			log.Int("succeeded", response.Succeeded),
			log.Int("failed", response.Failed),
		)
	}

	return OK(c, response)
}

// newBatchItemError flattens one item's terminal error; provider-exhaustion
// failures keep their per-provider kinds.
func newBatchItemError(err error) *batchItemError {
	item := &batchItemError{Message: err.Error()}

	var aggregate *provider.AggregateFailure
	if errors.As(err, &aggregate) {
		item.Providers = aggregate.Kinds()
	}

	return item
}

// parseDate parses the wire date format, rejecting blanks.
func parseDate(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, errors.New("date is required (YYYY-MM-DD)")
	}

	date, err := time.Parse(dateLayout, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}

	return date, nil
}
