package resume

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"cvbuilder/internal/database"
	"cvbuilder/internal/errcode"
	"cvbuilder/internal/logging"
	"cvbuilder/internal/metrics"
)

// ResumeInput 是创建简历的入参。
type ResumeInput struct {
	Title        string
	TemplateName *string
}

// ResumePatch 是更新简历的入参；nil 表示未提供。
type ResumePatch struct {
	Title        *string
	TemplateName *string
}

// CreateResume 在同一事务中创建简历及其默认样式。
func (s *Service) CreateResume(ctx context.Context, callerID uint, in ResumeInput) (ResumeView, error) {
	title, err := normalizeTitle(in.Title)
	if err != nil {
		return ResumeView{}, err
	}
	template := DefaultTemplateName
	if in.TemplateName != nil && strings.TrimSpace(*in.TemplateName) != "" {
		template = strings.TrimSpace(*in.TemplateName)
	}
	if err := checkLength("template_name", template, maxTemplateNameLen); err != nil {
		return ResumeView{}, err
	}

	row := database.Resume{
		UserID:       callerID,
		Title:        title,
		TemplateName: template,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		style, err := EnsureDefaultStyle(tx, row.ID)
		if err != nil {
			return err
		}
		row.Style = &style
		return nil
	})
	if err != nil {
		return ResumeView{}, errcode.Unexpected("create resume", err)
	}

	logging.FromContext(ctx).Info("resume created",
		slog.Uint64("resume_id", uint64(row.ID)),
		slog.String("template_name", row.TemplateName),
	)
	return newResumeView(row)
}

// ListResumes 返回 caller 的简历摘要，按更新时间倒序。
func (s *Service) ListResumes(ctx context.Context, callerID uint) ([]ResumeSummary, error) {
	var rows []database.Resume
	if err := s.db.WithContext(ctx).
		Select("id", "title", "template_name", "updated_at").
		Where("user_id = ?", callerID).
		Order("updated_at DESC").
		Order("id DESC").
		Find(&rows).Error; err != nil {
		return nil, errcode.Unexpected("list resumes", err)
	}
	items := make([]ResumeSummary, 0, len(rows))
	for _, r := range rows {
		items = append(items, ResumeSummary{
			ID:           r.ID,
			Title:        r.Title,
			TemplateName: r.TemplateName,
			UpdatedAt:    r.UpdatedAt,
		})
	}
	return items, nil
}

// GetResume 返回包含样式与有序分区的完整简历。
func (s *Service) GetResume(ctx context.Context, callerID, resumeID uint) (ResumeView, error) {
	if _, err := s.policy.AuthorizeResume(ctx, callerID, resumeID); err != nil {
		return ResumeView{}, err
	}
	row, err := s.loadAggregate(ctx, "id = ?", resumeID)
	if err != nil {
		return ResumeView{}, err
	}
	return newResumeView(row)
}

// UpdateResume 修改标题或模板；partial 为 false 时 title 必填。
func (s *Service) UpdateResume(ctx context.Context, callerID, resumeID uint, patch ResumePatch, partial bool) (ResumeView, error) {
	own, err := s.policy.AuthorizeResume(ctx, callerID, resumeID)
	if err != nil {
		return ResumeView{}, err
	}
	if !partial && patch.Title == nil {
		return ResumeView{}, errcode.Validation("missing required fields", map[string]any{
			"fields": map[string]string{"title": "is required"},
		})
	}

	updates := map[string]any{}
	if patch.Title != nil {
		title, err := normalizeTitle(*patch.Title)
		if err != nil {
			return ResumeView{}, err
		}
		updates["title"] = title
	}
	if patch.TemplateName != nil {
		template := strings.TrimSpace(*patch.TemplateName)
		if template == "" {
			template = DefaultTemplateName
		}
		if err := checkLength("template_name", template, maxTemplateNameLen); err != nil {
			return ResumeView{}, err
		}
		updates["template_name"] = template
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).
			Model(&database.Resume{ID: resumeID}).
			Updates(updates).Error; err != nil {
			return ResumeView{}, errcode.Unexpected("update resume", err)
		}
		s.afterMutation(ctx, own)
	}

	row, err := s.loadAggregate(ctx, "id = ?", resumeID)
	if err != nil {
		return ResumeView{}, err
	}
	return newResumeView(row)
}

// DeleteResume 级联删除简历、样式与全部分区。
func (s *Service) DeleteResume(ctx context.Context, callerID, resumeID uint) error {
	own, err := s.policy.AuthorizeResume(ctx, callerID, resumeID)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("resume_id = ?", resumeID).Delete(&database.Section{}).Error; err != nil {
			return err
		}
		if err := tx.Where("resume_id = ?", resumeID).Delete(&database.Style{}).Error; err != nil {
			return err
		}
		return tx.Delete(&database.Resume{}, resumeID).Error
	})
	if err != nil {
		return errcode.Unexpected("delete resume", err)
	}
	logging.FromContext(ctx).Info("resume deleted", slog.Uint64("resume_id", uint64(resumeID)))
	s.afterMutation(ctx, own)
	return nil
}

// ShareResume 签发（或返回已有的）分享令牌。
// 令牌一经分配不会轮换；并发分享时只有一个条件更新生效，其余请求读回胜者的令牌。
func (s *Service) ShareResume(ctx context.Context, callerID, resumeID uint) (ShareResult, error) {
	own, err := s.policy.AuthorizeResume(ctx, callerID, resumeID)
	if err != nil {
		return ShareResult{}, err
	}
	if own.ShareID != nil {
		metrics.ShareIssued(true)
		return s.shareResult(*own.ShareID), nil
	}

	log := logging.FromContext(ctx).With(slog.Uint64("resume_id", uint64(resumeID)))
	for attempt := 0; attempt < shareTokenAttempts; attempt++ {
		token, err := s.newToken()
		if err != nil {
			return ShareResult{}, errcode.Unexpected("generate share token", err)
		}

		res := s.db.WithContext(ctx).
			Model(&database.Resume{}).
			Where("id = ? AND share_id IS NULL", resumeID).
			Update("share_id", token)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				log.Warn("share token collision, retrying", slog.Int("attempt", attempt+1))
				continue
			}
			return ShareResult{}, errcode.Unexpected("assign share token", res.Error)
		}

		if res.RowsAffected == 1 {
			metrics.ShareIssued(false)
			log.Info("resume shared")
			ref := SnapshotRef{ResumeID: resumeID, OwnerID: own.OwnerID, ShareID: token}
			if err := s.publisher.PublishSnapshot(ctx, ref); err != nil {
				log.Warn("enqueue public snapshot failed", slog.Any("error", err))
			}
			return s.shareResult(token), nil
		}

		// 条件更新未命中：另一请求已经分配了令牌，读回即可。
		winner, err := s.policy.AuthorizeResume(ctx, callerID, resumeID)
		if err != nil {
			return ShareResult{}, err
		}
		if winner.ShareID != nil {
			metrics.ShareIssued(true)
			return s.shareResult(*winner.ShareID), nil
		}
	}
	return ShareResult{}, errcode.Conflict("could not allocate a unique share token")
}

// GetPublic 按分享令牌读取公开投影，不做所有权校验。
func (s *Service) GetPublic(ctx context.Context, shareID string) (PublicView, error) {
	shareID = strings.TrimSpace(shareID)
	if shareID == "" {
		return PublicView{}, errcode.NotFound("resume not found")
	}
	log := logging.FromContext(ctx)

	cached, err := s.cache.Get(ctx, shareID)
	if err != nil {
		log.Warn("read public cache failed", slog.Any("error", err))
	}
	if cached != nil {
		metrics.PublicViewed(true)
		return *cached, nil
	}

	row, err := s.loadAggregate(ctx, "share_id = ?", shareID)
	if err != nil {
		return PublicView{}, err
	}
	view, err := newPublicView(row)
	if err != nil {
		return PublicView{}, err
	}
	if err := s.cache.Set(ctx, shareID, view); err != nil {
		log.Warn("write public cache failed", slog.Any("error", err))
	}
	metrics.PublicViewed(false)
	return view, nil
}

// PublicSnapshot 按简历 ID 构建公开投影，供 worker 使用；未分享或已删除时返回 NOT_FOUND。
func (s *Service) PublicSnapshot(ctx context.Context, resumeID uint) (PublicView, string, error) {
	row, err := s.loadAggregate(ctx, "id = ?", resumeID)
	if err != nil {
		return PublicView{}, "", err
	}
	if row.ShareID == nil {
		return PublicView{}, "", errcode.NotFound("resume is not shared")
	}
	view, err := newPublicView(row)
	if err != nil {
		return PublicView{}, "", err
	}
	return view, *row.ShareID, nil
}

func (s *Service) shareResult(token string) ShareResult {
	return ShareResult{ShareID: token, ShareURL: ShareURL(s.shareBaseURL, token)}
}

func (s *Service) loadAggregate(ctx context.Context, query string, arg any) (database.Resume, error) {
	var row database.Resume
	err := s.db.WithContext(ctx).
		Preload("Style").
		Preload("Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC").Order("id ASC")
		}).
		Where(query, arg).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.Resume{}, errcode.NotFound("resume not found")
		}
		return database.Resume{}, errcode.Unexpected("load resume", err)
	}
	if row.Style == nil {
		style, err := EnsureDefaultStyle(s.db.WithContext(ctx), row.ID)
		if err != nil {
			return database.Resume{}, errcode.Unexpected("ensure default style", err)
		}
		row.Style = &style
	}
	return row, nil
}

func normalizeTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", errcode.Validation("title is required", map[string]any{
			"fields": map[string]string{"title": "is required"},
		})
	}
	if err := checkLength("title", title, maxTitleLen); err != nil {
		return "", err
	}
	return title, nil
}
