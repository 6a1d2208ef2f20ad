package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Context keys the ingest gateway sets so request logs carry message
// routing context alongside the HTTP fields.
const (
	IngestEndpointKey = "ingest_endpoint"
	IngestRoutesKey   = "ingest_routes"
)

// Logger emits one structured line per request. Ingest requests
// additionally carry the resolved endpoint id and fan-out width when
// the gateway recorded them on the context.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			err := next(c)

			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			}
			evt = evt.
				Str("request_id", RequestIDFrom(c)).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", c.Response().Status).
				Int64("bytes_out", c.Response().Size).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP())
			if ep, ok := c.Get(IngestEndpointKey).(string); ok {
				evt = evt.Str("endpoint_id", ep)
			}
			if n, ok := c.Get(IngestRoutesKey).(int); ok {
				evt = evt.Int("routes", n)
			}
			evt.Msg("request")

			return err
		}
	}
}
