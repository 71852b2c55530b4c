package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"resumate/internal/api/middleware"
	"resumate/internal/worker"
)

const (
	wsAuthTimeout  = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 5 * time.Second
)

// WsHandler 推送异步生成结果：客户端首条消息携带访问令牌，之后转发 user_notify:<id> 频道的消息。
type WsHandler struct {
	redis    redis.UniversalClient
	verifier middleware.AccessVerifier
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewWsHandler 构造 WebSocket 处理器。allowedOrigins 为空时只接受同源连接。
func NewWsHandler(redisClient redis.UniversalClient, verifier middleware.AccessVerifier, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	return &WsHandler{
		redis:    redisClient,
		verifier: verifier,
		logger:   logger,
		upgrader: websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if len(allowed) > 0 {
			return slices.Contains(allowed, origin)
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

type wsAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

var errWsAuth = errors.New("websocket authentication failed")

// HandleConnection 完成鉴权后持续转发通知，直到任一方断开。
func (h *WsHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写回了错误响应
		h.logger.Warn("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	log := middleware.LoggerFromContext(c).With(slog.String("client_ip", c.ClientIP()))

	userID, err := h.authenticate(conn)
	if err != nil {
		log.Warn("websocket rejected", slog.Any("error", err))
		return
	}
	log = log.With(slog.Uint64("user_id", uint64(userID)))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// 客户端消息只用于探测断开
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := h.forward(ctx, conn, userID); err != nil && ctx.Err() == nil {
		log.Info("websocket closed", slog.Any("error", err))
		return
	}
	log.Info("websocket closed")
}

// authenticate 读取首条消息，要求 {"type":"auth","token":<access token>}。
func (h *WsHandler) authenticate(conn *websocket.Conn) (uint, error) {
	_ = conn.SetReadDeadline(time.Now().Add(wsAuthTimeout))

	var msg wsAuthMessage
	if err := conn.ReadJSON(&msg); err != nil {
		closeWs(conn, websocket.ClosePolicyViolation, "invalid auth payload")
		return 0, fmt.Errorf("%w: %v", errWsAuth, err)
	}
	if msg.Type != "auth" || msg.Token == "" {
		closeWs(conn, websocket.ClosePolicyViolation, "auth required")
		return 0, fmt.Errorf("%w: first message must be auth", errWsAuth)
	}
	session, err := h.verifier.VerifyAccess(msg.Token)
	if err != nil {
		closeWs(conn, websocket.ClosePolicyViolation, "unauthorized")
		return 0, fmt.Errorf("%w: %v", errWsAuth, err)
	}
	if session.MustChangePassword {
		closeWs(conn, websocket.ClosePolicyViolation, "password change required")
		return 0, fmt.Errorf("%w: password change required", errWsAuth)
	}

	_ = conn.SetReadDeadline(time.Time{})
	return session.UserID, nil
}

// forward 订阅用户频道，把消息原样写给客户端，并定时发送 ping。
func (h *WsHandler) forward(ctx context.Context, conn *websocket.Conn, userID uint) error {
	pubsub := h.redis.Subscribe(ctx, worker.NotifyChannel(userID))
	defer pubsub.Close()

	messages := pubsub.Channel()
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return errors.New("notification channel closed")
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return fmt.Errorf("write notification: %w", err)
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return fmt.Errorf("write ping: %w", err)
			}
		}
	}
}

func closeWs(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteTimeout))
}
