package resume

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// shareTokenAttempts 限制唯一索引冲突时的重试次数。
const shareTokenAttempts = 3

// NewShareToken 生成 21 位 URL 安全的随机令牌（crypto/rand）。
func NewShareToken() (string, error) {
	token, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate share token: %w", err)
	}
	return token, nil
}

// ShareURL 拼接分享链接；baseURL 为空时返回相对路径。
func ShareURL(baseURL, token string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/share/" + token
}
