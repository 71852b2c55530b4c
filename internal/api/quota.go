package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisRateCounter 是计数限流所需的 Redis 子集。
type redisRateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// hourlyQuota 以 UTC 整点为窗口对每个用户计数。
type hourlyQuota struct {
	counter redisRateCounter
	prefix  string
	limit   int
	now     func() time.Time
}

func newHourlyQuota(counter redisRateCounter, prefix string, limit int) *hourlyQuota {
	return &hourlyQuota{counter: counter, prefix: prefix, limit: limit, now: time.Now}
}

// take 记一次使用，超过上限时返回 false。计数器不可用或未配置上限时放行。
func (q *hourlyQuota) take(ctx context.Context, userID uint) (bool, error) {
	if q == nil || q.counter == nil || q.limit <= 0 {
		return true, nil
	}
	key := fmt.Sprintf("%s:%d:%s", q.prefix, userID, q.now().UTC().Format("2006010215"))
	used, err := q.counter.Incr(ctx, key).Result()
	if err != nil {
		return true, err
	}
	if used == 1 {
		// 首次计数时设置过期，窗口结束后自动清理
		_ = q.counter.Expire(ctx, key, time.Hour).Err()
	}
	return used <= int64(q.limit), nil
}
