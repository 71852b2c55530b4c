package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

const requestLoggerKey = "requestLogger"

// quietRoutes 不写访问日志，探活与抓取过于频繁。
var quietRoutes = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// SlogLoggerMiddleware 给每个请求挂一个 slog.Logger，带上 correlation_id 与（开启追踪时的）trace_id，
// 请求结束后按状态码分级写访问日志。
func SlogLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		log := logger.With(
			slog.String("correlation_id", GetCorrelationID(c)),
			slog.String("method", c.Request.Method),
			slog.String("route", route),
		)
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			log = log.With(slog.String("trace_id", sc.TraceID().String()))
		}
		c.Set(requestLoggerKey, log)

		start := time.Now()
		c.Next()

		if quietRoutes[route] {
			return
		}
		status := c.Writer.Status()
		attrs := []slog.Attr{
			slog.Int("status", status),
			slog.Int("bytes", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
		}
		if userID, ok := c.Get(UserIDKey); ok {
			attrs = append(attrs, slog.Any("user_id", userID))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}
		log.LogAttrs(c.Request.Context(), levelFor(status), "request completed", attrs...)
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// LoggerFromContext 返回请求级 logger，未经过中间件时退回 slog.Default()。
func LoggerFromContext(c *gin.Context) *slog.Logger {
	if log, ok := c.Value(requestLoggerKey).(*slog.Logger); ok {
		return log
	}
	return slog.Default()
}
