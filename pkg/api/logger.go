package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLogger logs each request once it has been handled. Successful requests
// are logged at debug level as map clients poll the location endpoints often.
func NewLogger() fiber.Handler {
	logger := log.With().Str("component", "web-api").Logger()

	return func(c *fiber.Ctx) error {
		startTime := time.Now()
		err := c.Next()

		msg := "HTTP Request"
		if err != nil {
			msg = err.Error()
		}

		code := c.Response().StatusCode()
		if fiberErr, ok := err.(*fiber.Error); ok {
			code = fiberErr.Code
		}

		ipAddress := c.IP()
		if cloudflareConnectingIP := c.Get("CF-Connecting-IP", ""); cloudflareConnectingIP != "" {
			ipAddress = cloudflareConnectingIP
		}

		var event *zerolog.Event
		switch {
		case code >= fiber.StatusInternalServerError:
			event = logger.Error()
		case code >= fiber.StatusBadRequest:
			event = logger.Warn()
		default:
			event = logger.Debug()
		}

		event.
			Int("status", code).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("route", c.Route().Path).
			Str("ip", ipAddress).
			Dur("latency", time.Since(startTime)).
			Msg(msg)

		return err
	}
}
