package errcode

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation 表示输入在访问存储前被拒绝。
	ErrValidation = errors.New("validation failed")
	// ErrNotFound 同时覆盖记录不存在和属于其他用户两种情况。
	ErrNotFound = errors.New("not found or unauthorized")
	// ErrUpstream 表示调用简历生成服务失败。
	ErrUpstream = errors.New("upstream service error")
	// ErrTransaction 表示多行写入已回滚。
	ErrTransaction = errors.New("transaction failed")
)

// ValidationError 指出出错的字段。
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid 构造 ValidationError。
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Required 构造缺少字段的 ValidationError。
func Required(field string) error {
	return &ValidationError{Field: field, Message: "is required"}
}

// UpstreamError 保留上游状态码与响应体便于排查。Status 为 0 表示请求没有得到响应。
type UpstreamError struct {
	Status int
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Err != nil && e.Status == 0:
		return fmt.Sprintf("resume generation service unreachable: %v", e.Err)
	case e.Err != nil:
		return fmt.Sprintf("resume generation service invalid response (status %d): %v", e.Status, e.Err)
	default:
		return fmt.Sprintf("resume generation service status %d: %s", e.Status, strings.TrimSpace(e.Body))
	}
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrUpstream, e.Err}
	}
	return []error{ErrUpstream}
}

// TransactionError 包装回滚写入中失败的那条语句。
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() []error { return []error{ErrTransaction, e.Err} }

// CodeOf 把错误映射为数字错误码。
func CodeOf(err error) int {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, ErrValidation):
		return Validation
	case errors.Is(err, ErrNotFound):
		return NotFound
	case errors.Is(err, ErrUpstream):
		return Upstream
	default:
		return SystemError
	}
}
