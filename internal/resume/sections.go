package resume

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"cvbuilder/internal/database"
	"cvbuilder/internal/errcode"
	"cvbuilder/internal/logging"
	"cvbuilder/internal/metrics"
)

// SectionInput 是创建分区的入参；Content 与 Order 可省略。
type SectionInput struct {
	Type    string
	Content json.RawMessage
	Order   *int
}

// SectionPatch 是更新分区的入参；nil 表示未提供。
// Content 为字面量 null 时视为提供了非法内容。
type SectionPatch struct {
	Type    *string
	Content json.RawMessage
	Order   *int
}

// CreateSection 在简历末尾（或指定位置）追加一个分区。
// 未提供内容时按类型生成空骨架；未提供顺序时取 max(order)+1。
func (s *Service) CreateSection(ctx context.Context, callerID, resumeID uint, in SectionInput) (SectionView, error) {
	sectionType, err := ParseSectionType(in.Type)
	if err != nil {
		return SectionView{}, err
	}
	content, err := ParseContent(in.Content)
	if err != nil {
		return SectionView{}, err
	}
	if content == nil {
		content = DefaultContent(sectionType)
	}
	if in.Order != nil && *in.Order < 1 {
		return SectionView{}, invalidOrder()
	}
	data, err := content.JSON()
	if err != nil {
		return SectionView{}, err
	}

	own, err := s.policy.AuthorizeResume(ctx, callerID, resumeID)
	if err != nil {
		return SectionView{}, err
	}

	row := database.Section{
		ResumeID: resumeID,
		Type:     string(sectionType),
		Content:  data,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.Order != nil {
			row.Order = *in.Order
		} else {
			// 读后写没有串行化，并发创建可能得到相同的 order，这是允许的。
			next, err := nextSectionOrder(tx, resumeID)
			if err != nil {
				return err
			}
			row.Order = next
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return SectionView{}, errcode.Unexpected("create section", err)
	}

	metrics.SectionCreated(row.Type)
	logging.FromContext(ctx).Info("section created",
		slog.Uint64("resume_id", uint64(resumeID)),
		slog.Uint64("section_id", uint64(row.ID)),
		slog.String("type", row.Type),
		slog.Int("order", row.Order),
	)
	s.afterMutation(ctx, own)
	return newSectionView(row)
}

// GetSection 返回单个分区。
func (s *Service) GetSection(ctx context.Context, callerID, sectionID uint) (SectionView, error) {
	if _, err := s.policy.AuthorizeSection(ctx, callerID, sectionID); err != nil {
		return SectionView{}, err
	}
	row, err := s.loadSection(ctx, sectionID)
	if err != nil {
		return SectionView{}, err
	}
	return newSectionView(row)
}

// ListSections 按 order 升序返回简历下的全部分区。
func (s *Service) ListSections(ctx context.Context, callerID, resumeID uint) ([]SectionView, error) {
	if _, err := s.policy.AuthorizeResume(ctx, callerID, resumeID); err != nil {
		return nil, err
	}
	rows, err := listSections(s.db.WithContext(ctx), resumeID)
	if err != nil {
		return nil, err
	}
	return newSectionViews(rows)
}

// UpdateSection 更新分区；partial 为 false 时 type、content、order 均为必填。
func (s *Service) UpdateSection(ctx context.Context, callerID, sectionID uint, patch SectionPatch, partial bool) (SectionView, error) {
	own, err := s.policy.AuthorizeSection(ctx, callerID, sectionID)
	if err != nil {
		return SectionView{}, err
	}

	if !partial {
		missing := map[string]string{}
		if patch.Type == nil {
			missing["type"] = "is required"
		}
		if len(patch.Content) == 0 {
			missing["content"] = "is required"
		}
		if patch.Order == nil {
			missing["order"] = "is required"
		}
		if len(missing) > 0 {
			return SectionView{}, errcode.Validation("missing required fields", map[string]any{"fields": missing})
		}
	}

	updates := map[string]any{}
	if patch.Type != nil {
		sectionType, err := ParseSectionType(*patch.Type)
		if err != nil {
			return SectionView{}, err
		}
		updates["type"] = string(sectionType)
	}
	if len(patch.Content) > 0 {
		content, err := ParseContent(patch.Content)
		if err != nil {
			return SectionView{}, err
		}
		if content == nil {
			return SectionView{}, invalidContent
		}
		data, err := content.JSON()
		if err != nil {
			return SectionView{}, err
		}
		updates["content"] = data
	}
	if patch.Order != nil {
		if *patch.Order < 1 {
			return SectionView{}, invalidOrder()
		}
		updates["position"] = *patch.Order
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).
			Model(&database.Section{}).
			Where("id = ?", sectionID).
			Updates(updates).Error; err != nil {
			return SectionView{}, errcode.Unexpected("update section", err)
		}
		s.afterMutation(ctx, own)
	}

	row, err := s.loadSection(ctx, sectionID)
	if err != nil {
		return SectionView{}, err
	}
	return newSectionView(row)
}

// DeleteSection 删除分区。
func (s *Service) DeleteSection(ctx context.Context, callerID, sectionID uint) error {
	own, err := s.policy.AuthorizeSection(ctx, callerID, sectionID)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Delete(&database.Section{}, sectionID)
	if res.Error != nil {
		return errcode.Unexpected("delete section", res.Error)
	}
	if res.RowsAffected == 0 {
		return errcode.NotFound("section not found")
	}
	logging.FromContext(ctx).Info("section deleted",
		slog.Uint64("resume_id", uint64(own.ResumeID)),
		slog.Uint64("section_id", uint64(sectionID)),
	)
	s.afterMutation(ctx, own)
	return nil
}

func (s *Service) loadSection(ctx context.Context, sectionID uint) (database.Section, error) {
	var row database.Section
	if err := s.db.WithContext(ctx).Take(&row, sectionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.Section{}, errcode.NotFound("section not found")
		}
		return database.Section{}, errcode.Unexpected("load section", err)
	}
	return row, nil
}

func nextSectionOrder(tx *gorm.DB, resumeID uint) (int, error) {
	var current int
	if err := tx.Model(&database.Section{}).
		Where("resume_id = ?", resumeID).
		Select("COALESCE(MAX(position), 0)").
		Scan(&current).Error; err != nil {
		return 0, err
	}
	return current + 1, nil
}

func listSections(db *gorm.DB, resumeID uint) ([]database.Section, error) {
	var rows []database.Section
	if err := db.Where("resume_id = ?", resumeID).
		Order("position ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, errcode.Unexpected("list sections", err)
	}
	return rows, nil
}

func invalidOrder() error {
	return errcode.Validation("order must be a positive integer", map[string]any{"field": "order"})
}
