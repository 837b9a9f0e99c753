package http

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/LerianStudio/lib-flightstatus/flightstatus"
	constant "github.com/LerianStudio/lib-flightstatus/flightstatus/constants"
	"github.com/LerianStudio/lib-flightstatus/flightstatus/log"
)

// RequestInfo is a struct design to store http access log data.
type RequestInfo struct {
	Method        string
	Username      string
	URI           string
	Referer       string
	RemoteAddress string
	Status        int
	Date          time.Time
	Duration      time.Duration
	UserAgent     string
	TraceID       string
	Protocol      string
	Size          int
}

// NewRequestInfo creates an instance of RequestInfo from the incoming
// request. Call it after setRequestHeaderID so TraceID is populated.
func NewRequestInfo(c *fiber.Ctx) *RequestInfo {
	username := "-"

	referer := c.Get(fiber.HeaderReferer)
	if referer == "" {
		referer = "-"
	}

	return &RequestInfo{
		Method:        c.Method(),
		URI:           c.OriginalURL(),
		Username:      username,
		Referer:       referer,
		UserAgent:     c.Get(constant.HeaderUserAgent),
		RemoteAddress: c.IP(),
		Protocol:      c.Protocol(),
		Date:          time.Now().UTC(),
		TraceID:       c.Get(constant.HeaderID),
	}
}

// FinishRequestInfo sets the request duration and the response data to the
// RequestInfo.
func (r *RequestInfo) FinishRequestInfo(c *fiber.Ctx) {
	r.Duration = time.Now().UTC().Sub(r.Date)
	r.Status = c.Response().StatusCode()
	r.Size = len(c.Response().Body())
}

// CLFString produces a log entry format similar to Common Log Format (CLF).
func (r *RequestInfo) CLFString() string {
	return strings.Join([]string{
		r.RemoteAddress,
		"-",
		r.Username,
		`"` + r.Method,
		r.URI,
		r.Protocol + `"`,
		strconv.Itoa(r.Status),
		strconv.Itoa(r.Size),
	}, " ")
}

func (r *RequestInfo) String() string {
	return r.CLFString()
}

type logMiddleware struct {
	Logger log.Logger
}

// LogMiddlewareOption customizes the access log middleware.
type LogMiddlewareOption func(l *logMiddleware)

// WithCustomLogger is a functional option for logMiddleware.
func WithCustomLogger(logger log.Logger) LogMiddlewareOption {
	return func(l *logMiddleware) {
		l.Logger = logger
	}
}

func buildOpts(opts ...LogMiddlewareOption) *logMiddleware {
	mid := &logMiddleware{
		Logger: &log.NopLogger{},
	}

	for _, opt := range opts {
		opt(mid)
	}

	return mid
}

// WithHTTPLogging is a middleware to log access to http server. It propagates
// a request-scoped logger carrying the request id through the user context so
// handlers log under the same correlation key.
func WithHTTPLogging(opts ...LogMiddlewareOption) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/health" || c.Path() == "/ping" {
			return c.Next()
		}

		ctx := setRequestHeaderID(c)
		info := NewRequestInfo(c)

		mid := buildOpts(opts...)
		logger := mid.Logger.With(log.String(constant.HeaderID, info.TraceID))
		c.SetUserContext(flightstatus.ContextWithLogger(ctx, logger))

		err := c.Next()

		info.FinishRequestInfo(c)
		logger.Log(c.UserContext(), log.LevelInfo, info.CLFString())

		return err
	}
}

// setRequestHeaderID ensures every request carries an X-Request-Id, minting a
// fresh one when the caller did not send it, and echoes it on the response.
func setRequestHeaderID(c *fiber.Ctx) context.Context {
	headerID := strings.TrimSpace(c.Get(constant.HeaderID))
	if headerID == "" {
		headerID = uuid.New().String()
		c.Request().Header.Set(constant.HeaderID, headerID)
	}

	c.Set(constant.HeaderID, headerID)

	return flightstatus.ContextWithHeaderID(c.UserContext(), headerID)
}
