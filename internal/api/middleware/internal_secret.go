package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"cvbuilder/internal/errcode"
)

const internalSecretHeader = "X-Internal-Secret"

// InternalSecretMiddleware 保护内部端点（如 /metrics），密钥只接受 Header 传递。
func InternalSecretMiddleware(secret string) gin.HandlerFunc {
	secret = strings.TrimSpace(secret)
	return func(c *gin.Context) {
		if secret == "" {
			AbortWithError(c, errcode.Forbidden("internal endpoint is disabled"))
			return
		}
		token := strings.TrimSpace(c.GetHeader(internalSecretHeader))
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			AbortWithError(c, errcode.Unauthorized("unauthorized"))
			return
		}
		c.Next()
	}
}
