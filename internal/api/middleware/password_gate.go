package middleware

import (
	"github.com/gin-gonic/gin"

	"cvbuilder/internal/errcode"
)

// RequirePasswordChangeCompletedMiddleware 阻止仍持有初始密码的账号访问业务接口。
// 只读取 access token 中的 must_change_password 声明，不查库。
func RequirePasswordChangeCompletedMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if mustChange, ok := c.Get(mustChangePasswordKey); ok {
			if v, ok := mustChange.(bool); ok && v {
				AbortWithError(c, errcode.Forbidden("password change required"))
				return
			}
		}
		c.Next()
	}
}
