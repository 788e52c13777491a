package resume

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"cvbuilder/internal/logging"
)

// Options 配置 Service 的可选协作者；零值可用。
type Options struct {
	Cache        PublicCache
	Publisher    SnapshotPublisher
	ShareBaseURL string
	// NewToken 默认为 NewShareToken，测试可替换。
	NewToken func() (string, error)
}

// Service 实现简历聚合、分区与样式的全部读写，所有私有操作都经过 Policy。
type Service struct {
	db           *gorm.DB
	policy       *Policy
	cache        PublicCache
	publisher    SnapshotPublisher
	shareBaseURL string
	newToken     func() (string, error)
}

// NewService 构造 Service。
func NewService(db *gorm.DB, opts Options) *Service {
	s := &Service{
		db:           db,
		policy:       NewPolicy(NewGormOwnerResolver(db)),
		cache:        opts.Cache,
		publisher:    opts.Publisher,
		shareBaseURL: opts.ShareBaseURL,
		newToken:     opts.NewToken,
	}
	if s.cache == nil {
		s.cache = nopCache{}
	}
	if s.publisher == nil {
		s.publisher = nopPublisher{}
	}
	if s.newToken == nil {
		s.newToken = NewShareToken
	}
	return s
}

// Policy 暴露访问策略，供 handler 之外的调用方复用。
func (s *Service) Policy() *Policy {
	return s.policy
}

// afterMutation 在已分享简历发生变化后失效缓存并发布快照。失败只记日志。
func (s *Service) afterMutation(ctx context.Context, own Ownership) {
	if own.ShareID == nil {
		return
	}
	shareID := *own.ShareID
	log := logging.FromContext(ctx).With(
		slog.Uint64("resume_id", uint64(own.ResumeID)),
		slog.String("share_id", shareID),
	)
	if err := s.cache.Invalidate(ctx, shareID); err != nil {
		log.Warn("invalidate public cache failed", slog.Any("error", err))
	}
	ref := SnapshotRef{ResumeID: own.ResumeID, OwnerID: own.OwnerID, ShareID: shareID}
	if err := s.publisher.PublishSnapshot(ctx, ref); err != nil {
		log.Warn("enqueue public snapshot failed", slog.Any("error", err))
	}
}
