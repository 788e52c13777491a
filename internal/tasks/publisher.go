package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"cvbuilder/internal/logging"
	"cvbuilder/internal/resume"
)

const snapshotMaxRetry = 5

// Enqueuer 是 *asynq.Client 的最小子集。
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// SnapshotPublisher 将公开快照任务投递到 asynq，实现 resume.SnapshotPublisher。
type SnapshotPublisher struct {
	client Enqueuer
}

func NewSnapshotPublisher(client Enqueuer) *SnapshotPublisher {
	return &SnapshotPublisher{client: client}
}

func (p *SnapshotPublisher) PublishSnapshot(ctx context.Context, ref resume.SnapshotRef) error {
	task, err := NewPublicSnapshotTask(PublicSnapshotPayload{
		ResumeID:      ref.ResumeID,
		OwnerID:       ref.OwnerID,
		ShareID:       ref.ShareID,
		CorrelationID: logging.CorrelationID(ctx),
	})
	if err != nil {
		return err
	}
	info, err := p.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(snapshotMaxRetry),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", TypePublicSnapshot, err)
	}
	logging.FromContext(ctx).Debug("public snapshot enqueued",
		slog.String("task_id", info.ID),
		slog.Uint64("resume_id", uint64(ref.ResumeID)),
	)
	return nil
}
