package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"resumate/internal/api/middleware"
	"resumate/internal/errcode"
)

// OK 返回统一的成功响应。
func OK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// Error 返回统一的失败响应。
func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "message": msg})
}

func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
}

func Unauthorized(c *gin.Context)           { Error(c, http.StatusUnauthorized, "unauthorized") }
func BadRequest(c *gin.Context, msg string) { Error(c, http.StatusBadRequest, msg) }
func NotFound(c *gin.Context, msg string)   { Error(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)   { Error(c, http.StatusConflict, msg) }
func Internal(c *gin.Context, msg string)   { Error(c, http.StatusInternalServerError, msg) }

// respondError 将领域错误映射为 HTTP 状态码，并用请求日志记录原始错误。
// 开发环境下附带 details 字段。
func respondError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "internal error"

	var verr *errcode.ValidationError
	var uerr *errcode.UpstreamError
	switch {
	case errors.As(err, &verr):
		status, msg = http.StatusBadRequest, verr.Error()
	case errors.Is(err, errcode.ErrValidation):
		status, msg = http.StatusBadRequest, "invalid request"
	case errors.Is(err, errcode.ErrNotFound):
		status, msg = http.StatusNotFound, "resource not found"
	case errors.As(err, &uerr):
		status, msg = http.StatusBadGateway, "resume generation service failed"
	case errors.Is(err, errcode.ErrTransaction):
		msg = "failed to save curated resume"
	}

	logger := middleware.LoggerFromContext(c)
	if status >= http.StatusInternalServerError {
		attrs := []any{slog.Any("error", err)}
		if uerr != nil {
			attrs = append(attrs, slog.Int("upstream_status", uerr.Status), slog.String("upstream_body", uerr.Body))
		}
		logger.Error(msg, attrs...)
	} else {
		logger.Info("request rejected", slog.Int("status", status), slog.Any("error", err))
	}

	body := gin.H{"success": false, "message": msg}
	if middleware.ErrorDetailsEnabled(c) {
		body["details"] = err.Error()
	}
	c.JSON(status, body)
}

// userIDFromContext 读取 AuthMiddleware 注入的用户 ID。
func userIDFromContext(c *gin.Context) (uint, bool) {
	value, exists := c.Get(middleware.UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok && id > 0
}

// pathID 解析正整数路径参数。
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 0)
	if err != nil || id == 0 {
		BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// bindJSON 解析请求体，失败时直接写入 400 响应。
func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		middleware.LoggerFromContext(c).Info("invalid request body", slog.Any("error", err))
		BadRequest(c, "invalid request body")
		return false
	}
	return true
}
