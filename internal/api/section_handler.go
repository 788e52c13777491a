package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"cvbuilder/internal/resume"
	"cvbuilder/internal/validation"
)

// SectionHandler 负责分区的增删改查。
type SectionHandler struct {
	resumes  *resume.Service
	validate *validation.Validator
}

func NewSectionHandler(resumes *resume.Service, v *validation.Validator) *SectionHandler {
	return &SectionHandler{resumes: resumes, validate: v}
}

// content 保留原始 JSON，由 resume.ParseContent 判定形状。
type sectionRequest struct {
	Type    *string         `json:"type"`
	Content json.RawMessage `json:"content"`
	Order   *int            `json:"order"`
}

// GET /v1/resumes/:id/sections
func (h *SectionHandler) ListSections(c *gin.Context) {
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
	items, err := h.resumes.ListSections(c.Request.Context(), userID, resumeID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// POST /v1/resumes/:id/sections
func (h *SectionHandler) CreateSection(c *gin.Context) {
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
	var req sectionRequest
	if err := bindJSON(c, h.validate, &req); err != nil {
		RespondError(c, err)
		return
	}

	in := resume.SectionInput{Content: req.Content, Order: req.Order}
	if req.Type != nil {
		in.Type = *req.Type
	}
	view, err := h.resumes.CreateSection(c.Request.Context(), userID, resumeID, in)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GET /v1/sections/:id
func (h *SectionHandler) GetSection(c *gin.Context) {
	userID, err := callerID(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	view, err := h.resumes.GetSection(c.Request.Context(), userID, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateSection 处理 PUT 与 PATCH /v1/sections/:id。
func (h *SectionHandler) UpdateSection(partial bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := callerID(c)
		if err != nil {
			RespondError(c, err)
			return
		}
		id, err := pathID(c, "id")
		if err != nil {
			RespondError(c, err)
			return
		}
		var req sectionRequest
		if err := bindJSON(c, h.validate, &req); err != nil {
			RespondError(c, err)
			return
		}

		patch := resume.SectionPatch{Type: req.Type, Content: req.Content, Order: req.Order}
		view, err := h.resumes.UpdateSection(c.Request.Context(), userID, id, patch, partial)
		if err != nil {
			RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// DELETE /v1/sections/:id
func (h *SectionHandler) DeleteSection(c *gin.Context) {
	userID, err := callerID(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	if err := h.resumes.DeleteSection(c.Request.Context(), userID, id); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
