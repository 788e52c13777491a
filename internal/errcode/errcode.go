package errcode

import (
	"errors"
	"fmt"
	"net/http"
)

// Code 是机器可读的错误分类。
// 错误码约定：
// - VALIDATION：入参形状/枚举不合法（400）
// - UNAUTHORIZED：未登录或令牌无效（401）
// - FORBIDDEN：已登录但无权执行（403）
// - NOT_FOUND：资源不存在，或出于防枚举目的被屏蔽（404）
// - CONFLICT：唯一约束冲突等（409）
// - RATE_LIMITED：触发限流或账号临时锁定（429）
// - UNEXPECTED：未处理的系统错误（500，对外只返回通用信息）
type Code string

const (
	CodeValidation   Code = "VALIDATION"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeRateLimited  Code = "RATE_LIMITED"
	CodeUnexpected   Code = "UNEXPECTED"
)

// HTTPStatus 返回错误码对应的 HTTP 状态码。
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error 是带错误码、消息和可选细节的领域错误。
type Error struct {
	Code    Code
	Message string
	Details any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is 按错误码匹配，便于 errors.Is(err, errcode.ErrNotFound)。
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// 哨兵错误，仅用于 errors.Is 比较。
var (
	ErrValidation   = &Error{Code: CodeValidation, Message: "validation error"}
	ErrUnauthorized = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrForbidden    = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrNotFound     = &Error{Code: CodeNotFound, Message: "not found"}
	ErrConflict     = &Error{Code: CodeConflict, Message: "conflict"}
	ErrRateLimited  = &Error{Code: CodeRateLimited, Message: "rate limit exceeded"}
	ErrUnexpected   = &Error{Code: CodeUnexpected, Message: "internal error"}
)

func Validation(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

func RateLimited(msg string) *Error {
	return &Error{Code: CodeRateLimited, Message: msg}
}

// Unexpected 包装底层故障；cause 只进日志，不会出现在响应体中。
func Unexpected(msg string, cause error) *Error {
	return &Error{Code: CodeUnexpected, Message: msg, cause: cause}
}

// From 将任意错误归一为 *Error，未知错误视为 UNEXPECTED。
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Unexpected("internal error", err)
}
