package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"cvbuilder/internal/api/middleware"
	"cvbuilder/internal/auth"
	"cvbuilder/internal/tasks"
)

const (
	wsAuthTimeout  = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteWait    = 5 * time.Second
)

// NotificationSource 订阅某个用户的通知流；ctx 结束时通道关闭。
type NotificationSource interface {
	Subscribe(ctx context.Context, userID uint) (<-chan string, error)
}

// RedisNotificationSource 从 Redis Pub/Sub 读取 worker 推送的快照状态。
type RedisNotificationSource struct {
	client *redis.Client
}

func NewRedisNotificationSource(client *redis.Client) *RedisNotificationSource {
	return &RedisNotificationSource{client: client}
}

func (s *RedisNotificationSource) Subscribe(ctx context.Context, userID uint) (<-chan string, error) {
	pubsub := s.client.Subscribe(ctx, tasks.UserNotifyChannel(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", tasks.UserNotifyChannel(userID), err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// WsHandler 在 WebSocket 上转发当前用户的通知。
// 连接建立后第一条消息必须是 {"type":"auth","token":"<access token>"}。
type WsHandler struct {
	source         NotificationSource
	tokens         *auth.AuthService
	upgrader       websocket.Upgrader
	allowedOrigins []string
	authTimeout    time.Duration
	pingInterval   time.Duration
}

// NewWsHandler 构造 WebSocket 处理器；allowedOrigins 为空时只接受同源请求。
func NewWsHandler(source NotificationSource, tokens *auth.AuthService, allowedOrigins []string) *WsHandler {
	h := &WsHandler{
		source:         source,
		tokens:         tokens,
		allowedOrigins: allowedOrigins,
		authTimeout:    wsAuthTimeout,
		pingInterval:   wsPingInterval,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

type wsAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

func (h *WsHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(h.allowedOrigins) == 0 {
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
	for _, allowed := range h.allowedOrigins {
		if strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return true
		}
	}
	return false
}

// GET /v1/ws
func (h *WsHandler) HandleConnection(c *gin.Context) {
	log := middleware.LoggerFromContext(c)
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	userID, err := h.authenticate(conn)
	if err != nil {
		log.Info("websocket authentication failed", slog.Any("error", err))
		return
	}
	log = log.With(slog.Uint64("user_id", uint64(userID)))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	messages, err := h.source.Subscribe(ctx, userID)
	if err != nil {
		log.Error("subscribe notifications failed", slog.Any("error", err))
		writeClose(conn, websocket.CloseInternalServerErr, "subscribe failed")
		return
	}

	// 客户端只需保持连接；读循环用于感知断开并处理控制帧。
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("websocket connection closed")
			return
		case payload, ok := <-messages:
			if !ok {
				writeClose(conn, websocket.CloseGoingAway, "stream closed")
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
				log.Info("write notification failed", slog.Any("error", err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				log.Info("write ping failed", slog.Any("error", err))
				return
			}
		}
	}
}

func (h *WsHandler) authenticate(conn *websocket.Conn) (uint, error) {
	_ = conn.SetReadDeadline(time.Now().Add(h.authTimeout))

	var msg wsAuthMessage
	if err := conn.ReadJSON(&msg); err != nil {
		writeClose(conn, websocket.ClosePolicyViolation, "invalid auth payload")
		return 0, fmt.Errorf("read auth message: %w", err)
	}
	if msg.Type != "auth" || msg.Token == "" {
		writeClose(conn, websocket.ClosePolicyViolation, "auth required")
		return 0, errors.New("first message is not an auth message")
	}

	claims, err := h.tokens.ValidateToken(msg.Token, auth.TokenTypeAccess)
	if err != nil {
		writeClose(conn, websocket.ClosePolicyViolation, "unauthorized")
		return 0, fmt.Errorf("validate token: %w", err)
	}
	if claims.MustChangePassword {
		writeClose(conn, websocket.ClosePolicyViolation, "password change required")
		return 0, errors.New("password change required")
	}

	_ = conn.SetReadDeadline(time.Time{})
	return claims.UserID, nil
}

func writeClose(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(wsWriteWait))
}
