package middleware

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"cvbuilder/internal/auth"
	"cvbuilder/internal/errcode"
)

const (
	userIDKey             = "userID"
	mustChangePasswordKey = "mustChangePassword"
)

// AuthMiddleware 校验 Bearer 访问令牌，将 userID 与改密标记注入上下文。
func AuthMiddleware(tokens *auth.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			AbortWithError(c, errcode.Unauthorized("authentication credentials were not provided"))
			return
		}

		claims, err := tokens.ValidateToken(raw, auth.TokenTypeAccess)
		if err != nil {
			LoggerFromContext(c).Info("access token rejected", slog.Any("error", err))
			AbortWithError(c, errcode.Unauthorized("invalid or expired token"))
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set(mustChangePasswordKey, claims.MustChangePassword)
		setRequestLogger(c, LoggerFromContext(c).With(slog.Uint64("user_id", uint64(claims.UserID))))
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// UserID 返回已认证用户的 ID。
func UserID(c *gin.Context) (uint, bool) {
	value, exists := c.Get(userIDKey)
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok && id != 0
}
