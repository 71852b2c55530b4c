package storage

import (
	"errors"

	"github.com/minio/minio-go/v7"
)

// IsNoSuchKey 判断错误链中是否有 MinIO 的对象不存在响应。
func IsNoSuchKey(err error) bool {
	var resp minio.ErrorResponse
	if !errors.As(err, &resp) {
		return false
	}
	return resp.Code == "NoSuchKey" || resp.Code == "NotFound"
}
