package http

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/LerianStudio/lib-flightstatus/flightstatus/provider"
)

// dateLayout is the wire format for departure dates.
const dateLayout = "2006-01-02"

// ErrorResponse provides a consistent error structure for API responses.
type ErrorResponse struct {
	// HTTP status code
	Code int `json:"code"`
	// Error type identifier
	Title string `json:"title"`
	// Human-readable error message
	Message string `json:"message"`
}

// Error allows ErrorResponse to satisfy the error interface.
func (e ErrorResponse) Error() string {
	return e.Message
}

// AggregateFailureResponse is the wire shape for a resolution that exhausted
// every provider: one terminal failure kind per attempted provider.
type AggregateFailureResponse struct {
	Code          int                             `json:"code"`
	Title         string                          `json:"title"`
	Message       string                          `json:"message"`
	FlightID      string                          `json:"flight_id"`
	DepartureDate string                          `json:"departure_date"`
	Providers     map[string]provider.FailureKind `json:"providers"`
}

// NewAggregateFailureResponse maps an exhausted resolution onto its 502
// body.
func NewAggregateFailureResponse(aggregate *provider.AggregateFailure) AggregateFailureResponse {
	return AggregateFailureResponse{
		Code:          fiber.StatusBadGateway,
		Title:         "all_providers_failed",
		Message:       aggregate.Error(),
		FlightID:      aggregate.FlightID,
		DepartureDate: aggregate.DepartureDate.Format(dateLayout),
		Providers:     aggregate.Kinds(),
	}
}

// JSONResponse sends a custom status code and body as a JSON response.
func JSONResponse(c *fiber.Ctx, status int, s any) error {
	return c.Status(status).JSON(s)
}

// OK sends an HTTP 200 OK response with a custom body.
func OK(c *fiber.Ctx, s any) error {
	return c.Status(http.StatusOK).JSON(s)
}

// WriteError writes a structured error response using the ErrorResponse
// schema. This is the canonical way to write error responses and ensures
// consistency across all handlers.
func WriteError(c *fiber.Ctx, status int, title, message string) error {
	return JSONResponse(c, status, ErrorResponse{
		Code:    status,
		Title:   title,
		Message: message,
	})
}

// BadRequestError writes a 400 Bad Request error response.
func BadRequestError(c *fiber.Ctx, title, message string) error {
	return WriteError(c, fiber.StatusBadRequest, title, message)
}

// NotFoundError writes a 404 Not Found error response.
func NotFoundError(c *fiber.Ctx, title, message string) error {
	return WriteError(c, fiber.StatusNotFound, title, message)
}

// ServiceUnavailableError writes a 503 Service Unavailable response.
// It always returns a generic message to avoid leaking internal details.
func ServiceUnavailableError(c *fiber.Ctx) error {
	return WriteError(c, fiber.StatusServiceUnavailable, "service_unavailable", "service unavailable")
}

// RenderError writes all transport errors through a single, stable contract.
func RenderError(c *fiber.Ctx, err error) error {
	if err == nil {
		return nil
	}

	var aggregate *provider.AggregateFailure
	if errors.As(err, &aggregate) {
		return JSONResponse(c, fiber.StatusBadGateway, NewAggregateFailureResponse(aggregate))
	}

	var presp *ErrorResponse
	if errors.As(err, &presp) {
		return renderErrorResponse(c, *presp)
	}

	var responseErr ErrorResponse
	if errors.As(err, &responseErr) {
		return renderErrorResponse(c, responseErr)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return WriteError(c, fiberErr.Code, "request_failed", fiberErr.Message)
	}

	return WriteError(c, fiber.StatusInternalServerError, "request_failed", "An internal error occurred")
}

func renderErrorResponse(c *fiber.Ctx, resp ErrorResponse) error {
	status := fiber.StatusInternalServerError
	if resp.Code >= http.StatusContinue && resp.Code <= 599 {
		status = resp.Code
	}

	title := resp.Title
	if title == "" {
		title = "request_failed"
	}

	message := resp.Message
	if message == "" {
		message = http.StatusText(status)
	}

	return WriteError(c, status, title, message)
}
