package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"cvbuilder/internal/tasks"
)

// 快照状态通过 Redis Pub/Sub 推送给简历所有者，字段名与前端解析保持一致。
const (
	SnapshotPublished = "published"
	SnapshotRemoved   = "removed"
	SnapshotFailed    = "error"
)

// SnapshotNotifyMessage 是发布到 user_notify:<owner_id> 的消息体。
type SnapshotNotifyMessage struct {
	Status        string `json:"status"`
	ResumeID      uint   `json:"resume_id"`
	ShareID       string `json:"share_id"`
	ObjectKey     string `json:"object_key,omitempty"`
	CorrelationID string `json:"correlation_id"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// Publisher 是 redis.Client 的 Publish 子集。
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

func publishNotify(ctx context.Context, pub Publisher, ownerID uint, msg SnapshotNotifyMessage) error {
	if pub == nil || ownerID == 0 {
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := tasks.UserNotifyChannel(ownerID)
	if err := pub.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}
