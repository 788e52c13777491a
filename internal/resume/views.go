package resume

import (
	"time"

	"cvbuilder/internal/database"
	"cvbuilder/internal/errcode"
)

// SectionView 是分区的对外表示。
type SectionView struct {
	ID      uint        `json:"id"`
	Type    SectionType `json:"type"`
	Content Content     `json:"content"`
	Order   int         `json:"order"`
}

// StyleView 是样式的对外表示。
type StyleView struct {
	ID           uint   `json:"id"`
	PrimaryColor string `json:"primary_color"`
	FontFamily   string `json:"font_family"`
	FontSize     int    `json:"font_size"`
}

// ResumeView 是所有者看到的完整简历。
type ResumeView struct {
	ID           uint          `json:"id"`
	Title        string        `json:"title"`
	TemplateName string        `json:"template_name"`
	ShareID      *string       `json:"share_id"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Sections     []SectionView `json:"sections"`
	Style        *StyleView    `json:"style"`
}

// ResumeSummary 是列表页使用的精简字段。
type ResumeSummary struct {
	ID           uint      `json:"id"`
	Title        string    `json:"title"`
	TemplateName string    `json:"template_name"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PublicView 是公开分享的投影：不含所有者、时间戳与分享令牌。
type PublicView struct {
	ID           uint          `json:"id"`
	Title        string        `json:"title"`
	TemplateName string        `json:"template_name"`
	Sections     []SectionView `json:"sections"`
	Style        *StyleView    `json:"style"`
}

// ShareResult 是分享操作的返回值。
type ShareResult struct {
	ShareID  string `json:"share_id"`
	ShareURL string `json:"share_url"`
}

func newSectionView(row database.Section) (SectionView, error) {
	var content Content
	if len(row.Content) > 0 {
		if err := decodeJSON(row.Content, &content); err != nil {
			return SectionView{}, errcode.Unexpected("decode section content", err)
		}
	}
	if content == nil {
		content = Content{}
	}
	return SectionView{
		ID:      row.ID,
		Type:    SectionType(row.Type),
		Content: content,
		Order:   row.Order,
	}, nil
}

func newSectionViews(rows []database.Section) ([]SectionView, error) {
	views := make([]SectionView, 0, len(rows))
	for _, row := range rows {
		view, err := newSectionView(row)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func newStyleView(row *database.Style) *StyleView {
	if row == nil {
		return nil
	}
	return &StyleView{
		ID:           row.ID,
		PrimaryColor: row.PrimaryColor,
		FontFamily:   row.FontFamily,
		FontSize:     row.FontSize,
	}
}

func newResumeView(row database.Resume) (ResumeView, error) {
	sections, err := newSectionViews(row.Sections)
	if err != nil {
		return ResumeView{}, err
	}
	return ResumeView{
		ID:           row.ID,
		Title:        row.Title,
		TemplateName: row.TemplateName,
		ShareID:      row.ShareID,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		Sections:     sections,
		Style:        newStyleView(row.Style),
	}, nil
}

func newPublicView(row database.Resume) (PublicView, error) {
	sections, err := newSectionViews(row.Sections)
	if err != nil {
		return PublicView{}, err
	}
	return PublicView{
		ID:           row.ID,
		Title:        row.Title,
		TemplateName: row.TemplateName,
		Sections:     sections,
		Style:        newStyleView(row.Style),
	}, nil
}
