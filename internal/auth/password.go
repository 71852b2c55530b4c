package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"resumate/internal/errcode"
)

// bcrypt 只取前 72 字节，超长口令直接拒绝，不做截断。
const maxPasswordBytes = 72

// HashPassword 返回口令的 bcrypt 哈希。
func HashPassword(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", errcode.Invalid("password", "must be at most 72 bytes")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPasswordHash 判断口令与哈希是否匹配。
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
