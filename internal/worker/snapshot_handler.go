package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"cvbuilder/internal/errcode"
	"cvbuilder/internal/logging"
	"cvbuilder/internal/resume"
	"cvbuilder/internal/storage"
	"cvbuilder/internal/tasks"
)

// SnapshotSource 提供某份简历当前的公开投影。
type SnapshotSource interface {
	PublicSnapshot(ctx context.Context, resumeID uint) (resume.PublicView, string, error)
}

// ObjectStore 是快照落盘所需的对象存储操作。
type ObjectStore interface {
	PutObject(ctx context.Context, objectKey string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, objectKey string) error
}

// SnapshotTaskHandler 消费 public:snapshot 任务：把公开投影写入对象存储，
// 简历已删除或不再分享时删除旧快照。
type SnapshotTaskHandler struct {
	source   SnapshotSource
	store    ObjectStore
	notifier Publisher
	logger   *slog.Logger
}

func NewSnapshotTaskHandler(source SnapshotSource, store ObjectStore, notifier Publisher, logger *slog.Logger) *SnapshotTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotTaskHandler{source: source, store: store, notifier: notifier, logger: logger}
}

// ProcessTask 实现 asynq.Handler。
func (h *SnapshotTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	payload, err := tasks.ParsePublicSnapshotPayload(t)
	if err != nil {
		h.logger.Error("invalid snapshot payload", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("resume_id", uint64(payload.ResumeID)),
		slog.String("share_id", payload.ShareID),
	)
	ctx = logging.WithLogger(ctx, log)
	ctx = logging.WithCorrelationID(ctx, payload.CorrelationID)

	msg := SnapshotNotifyMessage{
		ResumeID:      payload.ResumeID,
		ShareID:       payload.ShareID,
		CorrelationID: payload.CorrelationID,
	}
	defer func() {
		if retErr == nil || !isFinalAsynqAttempt(ctx) {
			return
		}
		msg.Status = SnapshotFailed
		msg.ErrorMessage = strings.TrimSpace(retErr.Error())
		if err := publishNotify(ctx, h.notifier, payload.OwnerID, msg); err != nil {
			log.Error("publish snapshot error notification failed", slog.Any("error", err))
		}
	}()

	view, shareID, err := h.source.PublicSnapshot(ctx, payload.ResumeID)
	switch {
	case errors.Is(err, errcode.ErrNotFound):
		key := storage.PublicSnapshotKey(payload.ShareID)
		if err := h.store.DeleteObject(ctx, key); err != nil {
			log.Error("remove stale snapshot failed", slog.Any("error", err))
			return err
		}
		log.Info("public snapshot removed")
		msg.Status = SnapshotRemoved
		msg.ObjectKey = key
		h.notify(ctx, log, payload.OwnerID, msg)
		return nil
	case err != nil:
		log.Error("load public projection failed", slog.Any("error", err))
		return err
	}

	// 令牌一经分配不会变化；若不一致说明任务早于分享前投递，按当前令牌发布。
	if shareID != payload.ShareID {
		log.Warn("share id changed since enqueue", slog.String("current_share_id", shareID))
		msg.ShareID = shareID
	}

	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("%w: marshal snapshot: %v", asynq.SkipRetry, err)
	}
	key := storage.PublicSnapshotKey(shareID)
	if err := h.store.PutObject(ctx, key, data, "application/json"); err != nil {
		log.Error("upload snapshot failed", slog.Any("error", err))
		if storage.IsMissingBucket(err) {
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		return err
	}

	log.Info("public snapshot published", slog.String("object_key", key), slog.Int("bytes", len(data)))
	msg.Status = SnapshotPublished
	msg.ObjectKey = key
	h.notify(ctx, log, payload.OwnerID, msg)
	return nil
}

func (h *SnapshotTaskHandler) notify(ctx context.Context, log *slog.Logger, ownerID uint, msg SnapshotNotifyMessage) {
	if err := publishNotify(ctx, h.notifier, ownerID, msg); err != nil {
		log.Warn("publish snapshot notification failed", slog.Any("error", err))
	}
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
