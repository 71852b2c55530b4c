package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"resumate/internal/curated"
)

// 统一的 WebSocket 消息协议（通过 Redis Pub/Sub 转发给前端）。
// 注意：这里的字段名与前端解析保持一致。
type GenerationNotifyMessage struct {
	Type            string                `json:"type"`
	Status          string                `json:"status"`
	CuratedResumeID uint                  `json:"curated_resume_id,omitempty"`
	CorrelationID   string                `json:"correlation_id"`
	ErrorCode       int                   `json:"error_code"`
	ErrorMessage    string                `json:"error_message"`
	Skipped         []curated.SkippedItem `json:"skipped,omitempty"`
}

const (
	notifyTypeGeneration = "curated_generation"
	statusCompleted      = "completed"
	statusFailed         = "failed"
)

// Publisher 是 Redis 发布能力的最小接口。
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// NotifyChannel 返回用户的通知频道名，与 WebSocket 订阅端一致。
func NotifyChannel(userID uint) string {
	return fmt.Sprintf("user_notify:%d", userID)
}

func publishNotify(ctx context.Context, pub Publisher, userID uint, msg GenerationNotifyMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notify message: %w", err)
	}
	if err := pub.Publish(ctx, NotifyChannel(userID), data).Err(); err != nil {
		return fmt.Errorf("publish notify message: %w", err)
	}
	return nil
}
