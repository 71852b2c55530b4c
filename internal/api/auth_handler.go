package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"resumate/internal/api/middleware"
	"resumate/internal/auth"
)

const refreshCookie = "refresh_token"

// AuthHandler 把账号操作暴露为 HTTP 接口；刷新令牌走 HttpOnly Cookie。
type AuthHandler struct {
	accounts     *auth.Accounts
	cookieDomain string
}

// NewAuthHandler 构造认证处理器。
func NewAuthHandler(accounts *auth.Accounts, cookieDomain string) *AuthHandler {
	return &AuthHandler{accounts: accounts, cookieDomain: strings.TrimSpace(cookieDomain)}
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Email    string `json:"email" binding:"omitempty,email,max=255"`
	FullName string `json:"full_name" binding:"max=255"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type userResponse struct {
	ID       uint    `json:"id"`
	Username string  `json:"username"`
	Email    string  `json:"email"`
	FullName *string `json:"full_name"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required,min=8,max=72"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=NewPassword"`
}

type tokenResponse struct {
	AccessToken        string `json:"access_token"`
	TokenType          string `json:"token_type"`
	ExpiresIn          int    `json:"expires_in"`
	MustChangePassword bool   `json:"must_change_password"`
}

// authFailure 将账号错误映射为状态码，其余交给 respondError。
func authFailure(c *gin.Context, err error) {
	logger := middleware.LoggerFromContext(c)
	switch {
	case errors.Is(err, auth.ErrUsernameTaken):
		Conflict(c, "username already taken")
	case errors.Is(err, auth.ErrRateLimited):
		Error(c, http.StatusTooManyRequests, "rate limit exceeded")
	case errors.Is(err, auth.ErrLocked):
		Error(c, http.StatusTooManyRequests, "account temporarily locked")
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrSessionRevoked):
		logger.Info("authentication rejected", slog.Any("error", err))
		Unauthorized(c)
	default:
		respondError(c, err)
	}
}

// Register 创建新账号。
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.accounts.Register(c.Request.Context(), auth.Registration{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		authFailure(c, err)
		return
	}
	middleware.LoggerFromContext(c).Info("user registered", slog.Uint64("user_id", uint64(user.ID)))
	OK(c, http.StatusCreated, userResponse{ID: user.ID, Username: user.Username, Email: user.Email, FullName: user.FullName})
}

// Login 校验口令并返回令牌对。
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	pair, err := h.accounts.Login(c.Request.Context(), c.ClientIP(), req.Username, req.Password)
	if err != nil {
		authFailure(c, err)
		return
	}
	h.issue(c, pair)
}

// Refresh 轮换刷新令牌。
func (h *AuthHandler) Refresh(c *gin.Context) {
	pair, err := h.accounts.Refresh(c.Request.Context(), h.refreshToken(c))
	if err != nil {
		authFailure(c, err)
		return
	}
	h.issue(c, pair)
}

// Logout 吊销刷新令牌并清除 Cookie。
func (h *AuthHandler) Logout(c *gin.Context) {
	token := h.refreshToken(c)
	if token == "" {
		BadRequest(c, "refresh token missing")
		return
	}
	if err := h.accounts.Logout(c.Request.Context(), token); err != nil {
		authFailure(c, err)
		return
	}
	h.setCookie(c, "", -1)
	OK(c, http.StatusOK, gin.H{"logged_out": true})
}

// ChangePassword 修改密码并重新签发令牌。
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	cookie, _ := c.Cookie(refreshCookie)
	pair, err := h.accounts.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword, cookie)
	if err != nil {
		authFailure(c, err)
		return
	}
	h.issue(c, pair)
}

func (h *AuthHandler) issue(c *gin.Context, pair auth.TokenPair) {
	h.setCookie(c, pair.RefreshToken, int(time.Until(pair.RefreshExpiresAt).Seconds()))
	OK(c, http.StatusOK, tokenResponse{
		AccessToken:        pair.AccessToken,
		TokenType:          "Bearer",
		ExpiresIn:          int(pair.AccessExpiresIn.Seconds()),
		MustChangePassword: pair.MustChangePassword,
	})
}

// refreshToken 优先读 Cookie，其次读请求体中的 refresh_token。
func (h *AuthHandler) refreshToken(c *gin.Context) string {
	if token, err := c.Cookie(refreshCookie); err == nil && token != "" {
		return token
	}
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&body); err == nil {
		return body.RefreshToken
	}
	return ""
}

func (h *AuthHandler) setCookie(c *gin.Context, value string, maxAge int) {
	secure := c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https")
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookie, value, maxAge, "/", h.cookieDomain, secure, true)
}
