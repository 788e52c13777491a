package resume

import (
	"strings"
	"unicode/utf8"

	"cvbuilder/internal/errcode"
)

// SectionType 是简历分区的封闭枚举。
type SectionType string

const (
	SectionExperience SectionType = "experience"
	SectionEducation  SectionType = "education"
	SectionSkills     SectionType = "skills"
	SectionProjects   SectionType = "projects"
	SectionSummary    SectionType = "summary"
	SectionContact    SectionType = "contact"
	SectionCustom     SectionType = "custom"
)

var sectionTypes = []SectionType{
	SectionExperience,
	SectionEducation,
	SectionSkills,
	SectionProjects,
	SectionSummary,
	SectionContact,
	SectionCustom,
}

// SectionTypes 返回全部合法分区类型（固定顺序的副本）。
func SectionTypes() []SectionType {
	out := make([]SectionType, len(sectionTypes))
	copy(out, sectionTypes)
	return out
}

// Valid 判断类型是否属于枚举。
func (t SectionType) Valid() bool {
	for _, candidate := range sectionTypes {
		if t == candidate {
			return true
		}
	}
	return false
}

// ParseSectionType 校验类型；失败时错误细节列出全部合法选项。
func ParseSectionType(raw string) (SectionType, error) {
	t := SectionType(strings.TrimSpace(raw))
	if t.Valid() {
		return t, nil
	}
	options := make([]string, 0, len(sectionTypes))
	for _, candidate := range sectionTypes {
		options = append(options, string(candidate))
	}
	return "", errcode.Validation("invalid section type", map[string]any{
		"field":         "type",
		"value":         raw,
		"valid_options": options,
	})
}

// 与数据库列宽一致的长度上限。
const (
	maxTitleLen        = 255
	maxTemplateNameLen = 50
	maxPrimaryColorLen = 32
	maxFontFamilyLen   = 100
)

func checkLength(field, value string, limit int) error {
	if utf8.RuneCountInString(value) > limit {
		return errcode.Validation(field+" is too long", map[string]any{"field": field, "max_length": limit})
	}
	return nil
}

const (
	DefaultTemplateName = "classic"
	DefaultPrimaryColor = "#000000"
	DefaultFontFamily   = "Inter"
	DefaultFontSize     = 10
)

// TemplateNames 是前端已实现的模板目录。template_name 本身不受此约束。
var TemplateNames = []string{
	"classic",
	"modern",
	"minimalist",
	"creative",
	"executive",
	"professional",
	"dynamic",
}
