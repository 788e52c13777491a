package resume

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"gorm.io/datatypes"

	"cvbuilder/internal/errcode"
)

// Content 是分区内容：任意 JSON 对象，顶层不能是数组或标量。
type Content map[string]any

// defaultContent 为每种分区类型生成空骨架。每次调用返回新对象，调用方可自由修改。
var defaultContent = map[SectionType]func() Content{
	SectionContact: func() Content {
		return Content{
			"name":     "",
			"title":    "",
			"email":    "",
			"phone":    "",
			"address":  "",
			"linkedin": "",
			"website":  "",
			"location": "",
		}
	},
	SectionSummary:    func() Content { return Content{"text": ""} },
	SectionExperience: itemsSkeleton,
	SectionEducation:  itemsSkeleton,
	SectionSkills:     itemsSkeleton,
	SectionProjects:   itemsSkeleton,
	SectionCustom: func() Content {
		return Content{"title": "", "content": "", "text": ""}
	},
}

func itemsSkeleton() Content {
	return Content{"items": []any{}}
}

// DefaultContent 返回给定类型的默认内容骨架。
func DefaultContent(t SectionType) Content {
	if factory, ok := defaultContent[t]; ok {
		return factory()
	}
	return Content{}
}

var invalidContent = errcode.Validation("content must be a JSON object", map[string]any{"field": "content"})

// ParseContent 只做“是否为对象”的校验，不做结构校验。
// 空输入或 JSON null 返回 (nil, nil)，由调用方决定是否套用默认值。
func ParseContent(raw json.RawMessage) (Content, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '{' {
		return nil, invalidContent
	}
	var content Content
	if err := decodeJSON(trimmed, &content); err != nil {
		return nil, invalidContent
	}
	if content == nil {
		content = Content{}
	}
	return content, nil
}

// decodeJSON 保留数字字面量（json.Number），避免大整数经 float64 丢失精度。
func decodeJSON(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

// JSON 序列化为存储用的 datatypes.JSON。
func (c Content) JSON() (datatypes.JSON, error) {
	if c == nil {
		return datatypes.JSON("{}"), nil
	}
	data, err := json.Marshal(map[string]any(c))
	if err != nil {
		return nil, errcode.Unexpected("encode section content", err)
	}
	return datatypes.JSON(data), nil
}
