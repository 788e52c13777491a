package resume

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"cvbuilder/internal/database"
	"cvbuilder/internal/errcode"
)

// StylePatch 是样式更新入参；nil 表示未提供。
type StylePatch struct {
	PrimaryColor *string
	FontFamily   *string
	FontSize     *int
}

// EnsureDefaultStyle 为缺少样式的简历创建默认样式，已存在时不做任何修改。
// tx 通常是创建简历的同一事务。
func EnsureDefaultStyle(tx *gorm.DB, resumeID uint) (database.Style, error) {
	style := database.Style{}
	err := tx.Where(database.Style{ResumeID: resumeID}).
		Attrs(database.Style{
			PrimaryColor: DefaultPrimaryColor,
			FontFamily:   DefaultFontFamily,
			FontSize:     DefaultFontSize,
		}).
		FirstOrCreate(&style).Error
	if err != nil {
		return database.Style{}, err
	}
	return style, nil
}

// GetStyle 返回简历样式。
func (s *Service) GetStyle(ctx context.Context, callerID, resumeID uint) (StyleView, error) {
	if _, err := s.policy.AuthorizeResume(ctx, callerID, resumeID); err != nil {
		return StyleView{}, err
	}
	style, err := s.loadStyle(ctx, resumeID)
	if err != nil {
		return StyleView{}, err
	}
	return *newStyleView(&style), nil
}

// UpdateStyle 更新样式；partial 为 false 时三个字段均为必填。
// 只做类型层面的约束，外加 font_size 必须为正数。
func (s *Service) UpdateStyle(ctx context.Context, callerID, resumeID uint, patch StylePatch, partial bool) (StyleView, error) {
	own, err := s.policy.AuthorizeResume(ctx, callerID, resumeID)
	if err != nil {
		return StyleView{}, err
	}

	if !partial {
		missing := map[string]string{}
		if patch.PrimaryColor == nil {
			missing["primary_color"] = "is required"
		}
		if patch.FontFamily == nil {
			missing["font_family"] = "is required"
		}
		if patch.FontSize == nil {
			missing["font_size"] = "is required"
		}
		if len(missing) > 0 {
			return StyleView{}, errcode.Validation("missing required fields", map[string]any{"fields": missing})
		}
	}

	updates := map[string]any{}
	if patch.PrimaryColor != nil {
		if err := checkLength("primary_color", *patch.PrimaryColor, maxPrimaryColorLen); err != nil {
			return StyleView{}, err
		}
		updates["primary_color"] = *patch.PrimaryColor
	}
	if patch.FontFamily != nil {
		if err := checkLength("font_family", *patch.FontFamily, maxFontFamilyLen); err != nil {
			return StyleView{}, err
		}
		updates["font_family"] = *patch.FontFamily
	}
	if patch.FontSize != nil {
		if *patch.FontSize < 1 {
			return StyleView{}, errcode.Validation("font_size must be a positive integer", map[string]any{"field": "font_size"})
		}
		updates["font_size"] = *patch.FontSize
	}

	style, err := s.loadStyle(ctx, resumeID)
	if err != nil {
		return StyleView{}, err
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&style).Updates(updates).Error; err != nil {
			return StyleView{}, errcode.Unexpected("update style", err)
		}
		s.afterMutation(ctx, own)
		if style, err = s.loadStyle(ctx, resumeID); err != nil {
			return StyleView{}, err
		}
	}
	return *newStyleView(&style), nil
}

// loadStyle 读取样式；历史数据缺失时补建默认值，保证简历总有样式。
func (s *Service) loadStyle(ctx context.Context, resumeID uint) (database.Style, error) {
	var style database.Style
	err := s.db.WithContext(ctx).Where("resume_id = ?", resumeID).Take(&style).Error
	switch {
	case err == nil:
		return style, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		style, err = EnsureDefaultStyle(s.db.WithContext(ctx), resumeID)
		if err != nil {
			return database.Style{}, errcode.Unexpected("ensure default style", err)
		}
		return style, nil
	default:
		return database.Style{}, errcode.Unexpected("load style", err)
	}
}
