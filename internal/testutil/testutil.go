// Package testutil 为各包测试提供基于 sqlite 的夹具。
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"resumate/internal/database"
)

// DB 打开一个独立的内存 sqlite 库并完成迁移。
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("unwrap sqlite: %v", err)
	}
	// 只用一个连接：既保住共享内存库，也让写入串行
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return db
}

// SeedUser 插入一个账号。
func SeedUser(tb testing.TB, db *gorm.DB, username string) *database.User {
	tb.Helper()
	u := &database.User{Username: username, Email: username + "@example.com", PasswordHash: "pw"}
	if err := db.WithContext(context.Background()).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

// SeedItem 插入一条带要点的主简历条目。
func SeedItem(tb testing.TB, db *gorm.DB, userID uint, itemType, title, organization string, points ...string) *database.ResumeItem {
	tb.Helper()
	item := &database.ResumeItem{
		UserID:   userID,
		ItemType: itemType,
		Title:    title,
	}
	if organization != "" {
		item.Organization = &organization
	}
	if err := db.Create(item).Error; err != nil {
		tb.Fatalf("seed item: %v", err)
	}
	for i, content := range points {
		p := database.ResumeItemPoint{
			ResumeItemID: item.ID,
			UserID:       userID,
			Content:      content,
			DisplayOrder: i,
		}
		if err := db.Create(&p).Error; err != nil {
			tb.Fatalf("seed point: %v", err)
		}
		item.Points = append(item.Points, p)
	}
	return item
}

// Date 解析 YYYY-MM-DD。
func Date(tb testing.TB, s string) *time.Time {
	tb.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		tb.Fatalf("parse date %q: %v", s, err)
	}
	return &d
}

// Count 返回 model 的行数，可附加过滤条件。
func Count(tb testing.TB, db *gorm.DB, model any, query string, args ...any) int64 {
	tb.Helper()
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		tb.Fatalf("count: %v", err)
	}
	return n
}
