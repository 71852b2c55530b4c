package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	correlationIDKey    = "correlationID"
	correlationIDHeader = "X-Correlation-ID"
	// 反向代理常用的请求 ID，客户端未带 Correlation ID 时沿用它
	requestIDHeader = "X-Request-ID"
)

// acceptableID 要求长度不超过 128，且只含可见 ASCII。
func acceptableID(id string) bool {
	return id != "" && len(id) <= 128 && strings.IndexFunc(id, func(r rune) bool {
		return r <= ' ' || r > '~'
	}) < 0
}

// CorrelationIDMiddleware 确定本次请求的 Correlation ID 并回写到响应头，异步任务也会携带它。
func CorrelationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		for _, h := range []string{correlationIDHeader, requestIDHeader} {
			if v := c.GetHeader(h); acceptableID(v) {
				id = v
				break
			}
		}
		c.Set(correlationIDKey, id)
		c.Header(correlationIDHeader, id)
		c.Next()
	}
}

// GetCorrelationID 返回当前请求的 Correlation ID。
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(correlationIDKey)
}
