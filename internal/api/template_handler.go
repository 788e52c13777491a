package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cvbuilder/internal/resume"
)

// TemplateHandler 返回前端可选的模板目录。
type TemplateHandler struct{}

func NewTemplateHandler() *TemplateHandler {
	return &TemplateHandler{}
}

type templateItem struct {
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

// GET /v1/templates
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	items := make([]templateItem, 0, len(resume.TemplateNames))
	for _, name := range resume.TemplateNames {
		items = append(items, templateItem{Name: name, IsDefault: name == resume.DefaultTemplateName})
	}
	c.JSON(http.StatusOK, items)
}
