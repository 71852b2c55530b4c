package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequirePasswordChangeCompletedMiddleware 在临时密码改掉之前拦截业务接口。
// 只看访问令牌里的标记，不逐个请求查库；改密后签发的新令牌不再带该标记。
func RequirePasswordChangeCompletedMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetBool(MustChangePasswordKey) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "password change required"})
			return
		}
		c.Next()
	}
}
