package middleware

import "github.com/gin-gonic/gin"

const errorDetailsKey = "errorDetails"

// ErrorDetailsMiddleware 控制错误响应是否附带原始错误信息，仅开发环境开启。
func ErrorDetailsMiddleware(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(errorDetailsKey, enabled)
		c.Next()
	}
}

// ErrorDetailsEnabled 返回当前请求是否允许暴露错误细节。
func ErrorDetailsEnabled(c *gin.Context) bool {
	return c.GetBool(errorDetailsKey)
}
