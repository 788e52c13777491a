package middleware

import (
	"log/slog"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"cvbuilder/internal/errcode"
)

// Recovery 捕获 handler 中的 panic，记录堆栈后返回通用 500。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				LoggerFromContext(c).Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
				)
				if c.Writer.Written() {
					c.Abort()
					return
				}
				c.AbortWithStatusJSON(errcode.CodeUnexpected.HTTPStatus(), ErrorBody{
					Error: errcode.ErrUnexpected.Message,
					Code:  string(errcode.CodeUnexpected),
				})
			}
		}()
		c.Next()
	}
}
