package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cvbuilder/internal/resume"
	"cvbuilder/internal/validation"
)

// StyleHandler 读写简历的一对一样式。
type StyleHandler struct {
	resumes  *resume.Service
	validate *validation.Validator
}

func NewStyleHandler(resumes *resume.Service, v *validation.Validator) *StyleHandler {
	return &StyleHandler{resumes: resumes, validate: v}
}

type styleRequest struct {
	PrimaryColor *string `json:"primary_color"`
	FontFamily   *string `json:"font_family"`
	FontSize     *int    `json:"font_size"`
}

// GET /v1/resumes/:id/style
func (h *StyleHandler) GetStyle(c *gin.Context) {
	userID, err := callerID(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	resumeID, err := pathID(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	view, err := h.resumes.GetStyle(c.Request.Context(), userID, resumeID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateStyle 处理 PUT 与 PATCH /v1/resumes/:id/style。
func (h *StyleHandler) UpdateStyle(partial bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := callerID(c)
		if err != nil {
			RespondError(c, err)
			return
		}
		resumeID, err := pathID(c, "id")
		if err != nil {
			RespondError(c, err)
			return
		}
		var req styleRequest
		if err := bindJSON(c, h.validate, &req); err != nil {
			RespondError(c, err)
			return
		}

		patch := resume.StylePatch{PrimaryColor: req.PrimaryColor, FontFamily: req.FontFamily, FontSize: req.FontSize}
		view, err := h.resumes.UpdateStyle(c.Request.Context(), userID, resumeID, patch, partial)
		if err != nil {
			RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}
