package resume

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"cvbuilder/internal/database"
	"cvbuilder/internal/errcode"
)

// Ownership 描述一条记录归属的简历及其所有者。
type Ownership struct {
	ResumeID uint
	OwnerID  uint
	ShareID  *string
}

// OwnerResolver 将 Resume/Section 解析到其所有者，供 Policy 统一鉴权。
// 记录不存在时返回 errcode.ErrNotFound。
type OwnerResolver interface {
	ResumeOwner(ctx context.Context, resumeID uint) (Ownership, error)
	SectionOwner(ctx context.Context, sectionID uint) (Ownership, error)
}

// GormOwnerResolver 基于 gorm 查询所有权。
type GormOwnerResolver struct {
	db *gorm.DB
}

func NewGormOwnerResolver(db *gorm.DB) *GormOwnerResolver {
	return &GormOwnerResolver{db: db}
}

func (r *GormOwnerResolver) ResumeOwner(ctx context.Context, resumeID uint) (Ownership, error) {
	var row database.Resume
	err := r.db.WithContext(ctx).
		Select("id", "user_id", "share_id").
		Where("id = ?", resumeID).
		Take(&row).Error
	if err != nil {
		return Ownership{}, lookupError(err, "resume not found")
	}
	return Ownership{ResumeID: row.ID, OwnerID: row.UserID, ShareID: row.ShareID}, nil
}

func (r *GormOwnerResolver) SectionOwner(ctx context.Context, sectionID uint) (Ownership, error) {
	var row struct {
		ResumeID uint
		UserID   uint
		ShareID  *string
	}
	err := r.db.WithContext(ctx).
		Table("sections").
		Select("sections.resume_id, resumes.user_id, resumes.share_id").
		Joins("JOIN resumes ON resumes.id = sections.resume_id").
		Where("sections.id = ?", sectionID).
		Take(&row).Error
	if err != nil {
		return Ownership{}, lookupError(err, "section not found")
	}
	return Ownership{ResumeID: row.ResumeID, OwnerID: row.UserID, ShareID: row.ShareID}, nil
}

func lookupError(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errcode.NotFound(msg)
	}
	return errcode.Unexpected("resolve ownership", err)
}

// Policy 将私有读写限定在简历所有者范围内。
// 非所有者与记录不存在返回同一个 NOT_FOUND，避免跨租户探测。
type Policy struct {
	resolver OwnerResolver
}

func NewPolicy(resolver OwnerResolver) *Policy {
	return &Policy{resolver: resolver}
}

// AuthorizeResume 校验 caller 是否拥有该简历。
func (p *Policy) AuthorizeResume(ctx context.Context, callerID, resumeID uint) (Ownership, error) {
	own, err := p.resolver.ResumeOwner(ctx, resumeID)
	return p.check(own, err, callerID, "resume not found")
}

// AuthorizeSection 校验 caller 是否拥有分区所属的简历。
func (p *Policy) AuthorizeSection(ctx context.Context, callerID, sectionID uint) (Ownership, error) {
	own, err := p.resolver.SectionOwner(ctx, sectionID)
	return p.check(own, err, callerID, "section not found")
}

func (p *Policy) check(own Ownership, err error, callerID uint, msg string) (Ownership, error) {
	if err != nil {
		if errors.Is(err, errcode.ErrNotFound) {
			return Ownership{}, errcode.NotFound(msg)
		}
		return Ownership{}, err
	}
	if callerID == 0 || own.OwnerID != callerID {
		return Ownership{}, errcode.NotFound(msg)
	}
	return own, nil
}
