package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"resumate/internal/database"
	"resumate/internal/errcode"
)

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLocked             = errors.New("account temporarily locked")
	ErrRateLimited        = errors.New("too many login attempts")
	ErrSessionRevoked     = errors.New("session revoked")
)

// LoginPolicy 限制口令猜测，零值表示关闭对应检查。
type LoginPolicy struct {
	AttemptsPerHour int
	LockThreshold   int
	LockTTL         time.Duration
}

// Accounts 负责注册与令牌生命周期。登录限流和刷新令牌吊销依赖 redis，客户端为 nil 时跳过。
type Accounts struct {
	db     *gorm.DB
	tokens *Issuer
	redis  redis.UniversalClient
	policy LoginPolicy
}

// NewAccounts 构造账号服务。
func NewAccounts(db *gorm.DB, tokens *Issuer, redisClient redis.UniversalClient, policy LoginPolicy) *Accounts {
	return &Accounts{db: db, tokens: tokens, redis: redisClient, policy: policy}
}

// Registration 是注册请求。MustChangePassword 用于管理员代建账号：首次登录后必须改密。
type Registration struct {
	Username           string
	Email              string
	FullName           string
	Password           string
	MustChangePassword bool
}

func revokedKey(jti string) string      { return "auth:refresh:revoked:" + jti }
func lockKey(username string) string    { return "lock:login:" + username }
func failureKey(username string) string { return "lock:login:fail:" + username }

// Register 创建账号，口令以 bcrypt 存储。
func (a *Accounts) Register(ctx context.Context, r Registration) (*database.User, error) {
	username := strings.TrimSpace(r.Username)
	if username == "" {
		return nil, errcode.Required("username")
	}

	var n int64
	if err := a.db.WithContext(ctx).Model(&database.User{}).Where("username = ?", username).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("lookup username: %w", err)
	}
	if n > 0 {
		return nil, ErrUsernameTaken
	}

	hash, err := HashPassword(r.Password)
	if err != nil {
		return nil, err
	}
	user := database.User{
		Username:     username,
		Email:              strings.TrimSpace(r.Email),
		PasswordHash:       hash,
		MustChangePassword: r.MustChangePassword,
	}
	if name := strings.TrimSpace(r.FullName); name != "" {
		user.FullName = &name
	}
	if err := a.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// throttle 按 ip+用户名统计本小时的尝试次数，并检查锁定状态。
func (a *Accounts) throttle(ctx context.Context, ip, username string) error {
	if a.redis == nil {
		return nil
	}
	if a.policy.AttemptsPerHour > 0 {
		key := fmt.Sprintf("rate:login:%s:%s:%s", ip, username, time.Now().UTC().Format("2006010215"))
		var attempts *redis.IntCmd
		// 计数键按小时分桶，每次命中都刷新 TTL 也无妨
		if _, err := a.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			attempts = pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, time.Hour)
			return nil
		}); err == nil && attempts.Val() > int64(a.policy.AttemptsPerHour) {
			return ErrRateLimited
		}
	}
	if ttl, err := a.redis.TTL(ctx, lockKey(username)).Result(); err == nil && ttl > 0 {
		return ErrLocked
	}
	return nil
}

func (a *Accounts) recordFailure(ctx context.Context, username string) {
	if a.redis == nil || a.policy.LockThreshold <= 0 {
		return
	}
	key := failureKey(username)
	failures, err := a.redis.Incr(ctx, key).Result()
	if err != nil {
		return
	}
	if failures == 1 {
		_ = a.redis.Expire(ctx, key, a.policy.LockTTL).Err()
	}
	if failures >= int64(a.policy.LockThreshold) {
		_ = a.redis.Set(ctx, lockKey(username), "1", a.policy.LockTTL).Err()
	}
}

// Login 校验口令并签发令牌对。
func (a *Accounts) Login(ctx context.Context, clientIP, username, password string) (TokenPair, error) {
	username = strings.TrimSpace(username)
	folded := strings.ToLower(username)
	if err := a.throttle(ctx, clientIP, folded); err != nil {
		return TokenPair{}, err
	}

	var user database.User
	err := a.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		a.recordFailure(ctx, folded)
		return TokenPair{}, ErrInvalidCredentials
	case err != nil:
		return TokenPair{}, fmt.Errorf("load user: %w", err)
	}
	if !CheckPasswordHash(password, user.PasswordHash) {
		a.recordFailure(ctx, folded)
		return TokenPair{}, ErrInvalidCredentials
	}

	if a.redis != nil {
		_ = a.redis.Del(ctx, failureKey(folded)).Err()
	}
	return a.tokens.Issue(Session{UserID: user.ID, MustChangePassword: user.MustChangePassword})
}

// revoke 把刷新令牌加入黑名单，直到其自然过期。
func (a *Accounts) revoke(ctx context.Context, claims *Claims) error {
	if a.redis == nil {
		return nil
	}
	ttl := a.tokens.RefreshTTL()
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}
	if err := a.redis.Set(ctx, revokedKey(claims.ID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// liveRefresh 解析刷新令牌并拒绝已吊销的。
func (a *Accounts) liveRefresh(ctx context.Context, token string) (*Claims, error) {
	claims, err := a.tokens.Parse(token, KindRefresh)
	if err != nil {
		return nil, err
	}
	if a.redis != nil {
		n, err := a.redis.Exists(ctx, revokedKey(claims.ID)).Result()
		if err != nil {
			return nil, fmt.Errorf("check refresh revocation: %w", err)
		}
		if n > 0 {
			return nil, ErrSessionRevoked
		}
	}
	return claims, nil
}

// Refresh 轮换刷新令牌：吊销传入的令牌并签发新的令牌对。
func (a *Accounts) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := a.liveRefresh(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}

	// 改密标记以库中当前值为准，不沿用旧令牌
	var user database.User
	if err := a.db.WithContext(ctx).Select("id", "must_change_password").First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, fmt.Errorf("load user: %w", err)
	}

	pair, err := a.tokens.Issue(Session{UserID: user.ID, MustChangePassword: user.MustChangePassword})
	if err != nil {
		return TokenPair{}, err
	}
	if err := a.revoke(ctx, claims); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Logout 吊销刷新令牌。
func (a *Accounts) Logout(ctx context.Context, refreshToken string) error {
	claims, err := a.tokens.Parse(refreshToken, KindRefresh)
	if err != nil {
		return err
	}
	return a.revoke(ctx, claims)
}

// ChangePassword 校验当前口令后更新口令并清除改密标记。
// 传入的刷新令牌会被吊销，随后签发新的令牌对。
func (a *Accounts) ChangePassword(ctx context.Context, userID uint, current, next, refreshToken string) (TokenPair, error) {
	if next == current {
		return TokenPair{}, errcode.Invalid("new_password", "must differ from the current password")
	}

	var user database.User
	if err := a.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, fmt.Errorf("load user: %w", err)
	}
	if !CheckPasswordHash(current, user.PasswordHash) {
		return TokenPair{}, ErrInvalidCredentials
	}

	hash, err := HashPassword(next)
	if err != nil {
		return TokenPair{}, err
	}
	if err := a.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"password_hash":        hash,
		"must_change_password": false,
	}).Error; err != nil {
		return TokenPair{}, fmt.Errorf("update password: %w", err)
	}

	if refreshToken != "" {
		if claims, err := a.tokens.Parse(refreshToken, KindRefresh); err == nil && claims.UserID == userID {
			if err := a.revoke(ctx, claims); err != nil {
				return TokenPair{}, err
			}
		}
	}
	return a.tokens.Issue(Session{UserID: userID})
}

// ResetPassword 供运维使用：不校验旧口令直接覆盖，并要求下次登录后改密。
// 已签发的刷新令牌在过期前仍然有效。
func (a *Accounts) ResetPassword(ctx context.Context, username, password string) (*database.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errcode.Required("username")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	var user database.User
	if err := a.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %q: %w", username, errcode.ErrNotFound)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := a.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"password_hash":        hash,
		"must_change_password": true,
	}).Error; err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	return &user, nil
}
