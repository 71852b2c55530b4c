// Package master 存储用户的主简历：技能、教育经历、简历条目及要点。
// 所有查询都按用户过滤，他人的记录一律报 errcode.ErrNotFound。
package master

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"resumate/internal/errcode"
)

// Store 是主简历数据的存储入口。
type Store struct {
	db *gorm.DB
}

// NewStore 包装 gorm 句柄。
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// first 按 id 和所有者读取一行到 dest。
func first(db *gorm.DB, dest any, id, userID uint) error {
	err := db.Where("id = ? AND user_id = ?", id, userID).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errcode.ErrNotFound
	}
	return err
}

// nullable 去掉首尾空白，空串返回 nil。
func nullable(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01"}

// parseDate 接受 YYYY-MM-DD、RFC 3339 或 YYYY-MM，空白返回 nil。
func parseDate(field string, s *string) (*time.Time, error) {
	v := nullable(s)
	if v == nil {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, *v); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d, nil
		}
	}
	return nil, errcode.Invalid(field, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", *v))
}
