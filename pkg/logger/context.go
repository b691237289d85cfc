package logger

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const RequestIDKey = "X-Request-ID"

// FromContext returns the logger for the current request. A logger placed
// on the context by middleware wins; otherwise the global logger is tagged
// with the request ID so checkout and restock log lines stay correlatable.
func FromContext(c echo.Context) *zap.Logger {
	if scoped, ok := c.Get("logger").(*zap.Logger); ok {
		return scoped
	}

	requestID, ok := c.Get(RequestIDKey).(string)
	if !ok {
		requestID = c.Request().Header.Get(RequestIDKey)
	}
	if requestID == "" {
		requestID = "unknown"
	}

	return GetLogger().With(zap.String("request_id", requestID))
}
