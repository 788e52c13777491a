package api

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"cvbuilder/internal/api/middleware"
	"cvbuilder/internal/errcode"
	"cvbuilder/internal/validation"
)

// RespondError 把领域错误写成统一的错误响应。
func RespondError(c *gin.Context, err error) {
	middleware.AbortWithError(c, err)
}

// bindJSON 解析请求体并执行结构体校验，解析失败一律视为 VALIDATION。
func bindJSON(c *gin.Context, v *validation.Validator, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return decodeError(err)
	}
	return v.Validate(dst)
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.Is(err, io.EOF):
		return errcode.Validation("request body is required", nil)
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return errcode.Validation("validation failed", map[string]any{
			"fields": map[string]string{field: "has invalid type"},
		})
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return errcode.Validation("malformed JSON body", nil)
	default:
		return errcode.Validation("invalid request body", nil)
	}
}

// pathID 解析路径中的数字 ID；非法值按不存在处理。
func pathID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errcode.NotFound("not found")
	}
	return uint(id), nil
}

func callerID(c *gin.Context) (uint, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, errcode.Unauthorized("unauthorized")
	}
	return id, nil
}
