package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示系统中的账号信息。
type User struct {
	gorm.Model
	Username           string   `gorm:"uniqueIndex;size:150"`
	Email              string   `gorm:"uniqueIndex;size:254"`
	FirstName          string   `gorm:"size:150"`
	LastName           string   `gorm:"size:150"`
	PasswordHash       string   `gorm:"size:255"`
	MustChangePassword bool     `gorm:"default:false"`
	Resumes            []Resume `gorm:"constraint:OnDelete:CASCADE"`
}

// Resume 表示用户创建的一份简历；Style 与 Sections 由其独占。
// ShareID 为空表示未分享；一旦分配即保持不变。
type Resume struct {
	ID           uint    `gorm:"primaryKey"`
	UserID       uint    `gorm:"index;not null"`
	Title        string  `gorm:"size:255;not null"`
	TemplateName string  `gorm:"size:50;not null;default:classic"`
	ShareID      *string `gorm:"uniqueIndex;size:64"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Style    *Style    `gorm:"constraint:OnDelete:CASCADE"`
	Sections []Section `gorm:"constraint:OnDelete:CASCADE"`
}

// Style 是简历的一对一样式配置。
type Style struct {
	ID           uint   `gorm:"primaryKey"`
	ResumeID     uint   `gorm:"uniqueIndex;not null"`
	PrimaryColor string `gorm:"size:32;not null"`
	FontFamily   string `gorm:"size:100;not null"`
	FontSize     int    `gorm:"not null"`
}

// Section 是简历中的一个有序、带类型的内容块，Content 只保证是 JSON 对象。
// Order 在同一简历内“建议唯一”，并发创建可能产生并列值；列名用 position 避开 SQL 关键字。
type Section struct {
	ID       uint           `gorm:"primaryKey"`
	ResumeID uint           `gorm:"index;not null"`
	Type     string         `gorm:"size:20;not null"`
	Content  datatypes.JSON `gorm:"not null"`
	Order    int            `gorm:"column:position;index;not null"`
}

// AllModels 返回需要迁移的全部模型，供 api、worker 与测试共用。
func AllModels() []any {
	return []any{&User{}, &Resume{}, &Style{}, &Section{}}
}
