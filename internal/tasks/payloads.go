package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypePublicSnapshot = "public:snapshot"
)

// UserNotifyChannel 是 worker 向某个用户推送任务状态的 Redis 频道。
func UserNotifyChannel(userID uint) string {
	return fmt.Sprintf("user_notify:%d", userID)
}

// PublicSnapshotPayload 描述重新发布公开快照所需的最小信息。
// 快照内容由 worker 在执行时读取最新数据生成，payload 不携带简历内容。
type PublicSnapshotPayload struct {
	ResumeID      uint   `json:"resume_id"`
	OwnerID       uint   `json:"owner_id"`
	ShareID       string `json:"share_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewPublicSnapshotTask 构造公开快照任务。
func NewPublicSnapshotTask(p PublicSnapshotPayload) (*asynq.Task, error) {
	if p.ResumeID == 0 || p.ShareID == "" {
		return nil, fmt.Errorf("public snapshot task requires resume_id and share_id")
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePublicSnapshot, payload), nil
}

// ParsePublicSnapshotPayload 解析任务负载。
func ParsePublicSnapshotPayload(t *asynq.Task) (PublicSnapshotPayload, error) {
	var p PublicSnapshotPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return PublicSnapshotPayload{}, fmt.Errorf("unmarshal %s payload: %w", t.Type(), err)
	}
	if p.ResumeID == 0 || p.ShareID == "" {
		return PublicSnapshotPayload{}, fmt.Errorf("%s payload missing resume_id or share_id", t.Type())
	}
	return p, nil
}
