package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"cvbuilder/internal/errcode"
)

// ErrorBody 是所有错误响应的统一形状。
type ErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// AbortWithError 按错误码写出响应并终止后续处理。
// UNEXPECTED 的原因只进日志，响应体固定为通用信息。
func AbortWithError(c *gin.Context, err error) {
	e := errcode.From(err)
	status := e.Code.HTTPStatus()
	if e.Code == errcode.CodeUnexpected {
		LoggerFromContext(c).Error("request failed", slog.Any("error", err))
		c.AbortWithStatusJSON(status, ErrorBody{
			Error: errcode.ErrUnexpected.Message,
			Code:  string(errcode.CodeUnexpected),
		})
		return
	}
	c.AbortWithStatusJSON(status, ErrorBody{Error: e.Message, Code: string(e.Code), Details: e.Details})
}
