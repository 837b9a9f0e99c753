package http

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LerianStudio/lib-flightstatus/flightstatus/provider"
)

func renderThrough(t *testing.T, err error) *ErrorResponse {
	t.Helper()

	app := fiber.New()
	app.Get("/err", func(c *fiber.Ctx) error {
		return RenderError(c, err)
	})

	resp, testErr := app.Test(httptest.NewRequest(fiber.MethodGet, "/err", nil), -1)
	require.NoError(t, testErr)

	var body ErrorResponse
	decodeJSON(t, resp, &body)

	return &body
}

func TestRenderError_Nil(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Get("/err", func(c *fiber.Ctx) error {
		return RenderError(c, nil)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/err", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRenderError_ErrorResponse(t *testing.T) {
	t.Parallel()

	body := renderThrough(t, &ErrorResponse{
		Code:    fiber.StatusNotFound,
		Title:   "not_found",
		Message: "no such flight",
	})

	assert.Equal(t, fiber.StatusNotFound, body.Code)
	assert.Equal(t, "not_found", body.Title)
	assert.Equal(t, "no such flight", body.Message)
}

func TestRenderError_ErrorResponseValue(t *testing.T) {
	t.Parallel()

	body := renderThrough(t, ErrorResponse{Code: fiber.StatusConflict, Title: "conflict"})

	assert.Equal(t, fiber.StatusConflict, body.Code)
	assert.Equal(t, "conflict", body.Title)
	// Empty messages fall back to the standard status text.
	assert.Equal(t, "Conflict", body.Message)
}

func TestRenderError_ClampsInvalidCode(t *testing.T) {
	t.Parallel()

	body := renderThrough(t, &ErrorResponse{Code: 9999, Message: "weird"})

	assert.Equal(t, fiber.StatusInternalServerError, body.Code)
	assert.Equal(t, "request_failed", body.Title)
}

func TestRenderError_FiberError(t *testing.T) {
	t.Parallel()

	body := renderThrough(t, fiber.NewError(fiber.StatusMethodNotAllowed, "method not allowed"))

	assert.Equal(t, fiber.StatusMethodNotAllowed, body.Code)
	assert.Equal(t, "request_failed", body.Title)
	assert.Equal(t, "method not allowed", body.Message)
}

func TestRenderError_UnknownError(t *testing.T) {
	t.Parallel()

	body := renderThrough(t, errors.New("boom"))

	assert.Equal(t, fiber.StatusInternalServerError, body.Code)
	assert.Equal(t, "request_failed", body.Title)
	assert.Equal(t, "An internal error occurred", body.Message)
}

func TestRenderError_AggregateFailure(t *testing.T) {
	t.Parallel()

	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	aggregate := provider.NewAggregateFailure("AA123", date, []provider.AttemptFailure{
		{Provider: "flightaware", Kind: provider.FailureTimeout},
		{Provider: "aviationstack", Kind: provider.FailureRateLimited},
	}, nil)

	app := fiber.New()
	app.Get("/err", func(c *fiber.Ctx) error {
		return RenderError(c, aggregate)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/err", nil), -1)
	require.NoError(t, err)

	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	var body AggregateFailureResponse
	decodeJSON(t, resp, &body)

	assert.Equal(t, fiber.StatusBadGateway, body.Code)
	assert.Equal(t, "all_providers_failed", body.Title)
	assert.Equal(t, "AA123", body.FlightID)
	assert.Equal(t, "2025-03-01", body.DepartureDate)
	assert.Equal(t, provider.FailureTimeout, body.Providers["flightaware"])
	assert.Equal(t, provider.FailureRateLimited, body.Providers["aviationstack"])
	assert.Contains(t, body.Message, "all providers failed for AA123")
}

func TestWriteError_Helpers(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Get("/bad", func(c *fiber.Ctx) error {
		return BadRequestError(c, "invalid_input", "bad input")
	})
	app.Get("/missing", func(c *fiber.Ctx) error {
		return NotFoundError(c, "not_found", "nothing here")
	})
	app.Get("/down", ServiceUnavailableError)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/bad", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body ErrorResponse
	decodeJSON(t, resp, &body)
	assert.Equal(t, "invalid_input", body.Title)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/missing", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	decodeJSON(t, resp, &body)
	assert.Equal(t, "not_found", body.Title)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/down", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	decodeJSON(t, resp, &body)
	assert.Equal(t, "service_unavailable", body.Title)
}

func TestErrorResponse_Error(t *testing.T) {
	t.Parallel()

	err := ErrorResponse{Code: 400, Title: "invalid_date", Message: "date must be YYYY-MM-DD"}

	assert.Equal(t, "date must be YYYY-MM-DD", err.Error())
}
