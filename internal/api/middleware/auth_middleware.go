package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resumate/internal/auth"
)

const (
	// UserIDKey 是 gin 上下文中当前用户 ID 的键。
	UserIDKey = "userID"
	// MustChangePasswordKey 记录访问令牌中的改密标记。
	MustChangePasswordKey = "mustChangePassword"
)

// AccessVerifier 校验访问令牌并返回会话，由 auth.Issuer 实现。
type AccessVerifier interface {
	VerifyAccess(token string) (auth.Session, error)
}

// AuthMiddleware 要求 Bearer 访问令牌，并将 userID 与改密标记注入上下文。
func AuthMiddleware(verifier AccessVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, found := strings.Cut(strings.TrimSpace(c.GetHeader("Authorization")), " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
			return
		}

		session, err := verifier.VerifyAccess(strings.TrimSpace(token))
		if err != nil || session.UserID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
			return
		}

		c.Set(UserIDKey, session.UserID)
		c.Set(MustChangePasswordKey, session.MustChangePassword)
		c.Next()
	}
}
