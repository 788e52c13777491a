package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cvbuilder/internal/resume"
	"cvbuilder/internal/validation"
)

// ResumeHandler 负责简历聚合与分享相关的 API。
type ResumeHandler struct {
	resumes  *resume.Service
	validate *validation.Validator
}

// NewResumeHandler 构造 ResumeHandler。
func NewResumeHandler(resumes *resume.Service, v *validation.Validator) *ResumeHandler {
	return &ResumeHandler{resumes: resumes, validate: v}
}

type resumeRequest struct {
	Title        *string `json:"title"`
	TemplateName *string `json:"template_name"`
}

// GET /v1/resumes
func (h *ResumeHandler) ListResumes(c *gin.Context) {
	userID, err := callerID(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	items, err := h.resumes.ListResumes(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// POST /v1/resumes
// 创建简历，同一事务内生成默认样式。
func (h *ResumeHandler) CreateResume(c *gin.Context) {
	userID, err := callerID(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	var req resumeRequest
	if err := bindJSON(c, h.validate, &req); err != nil {
		RespondError(c, err)
		return
	}

	in := resume.ResumeInput{TemplateName: req.TemplateName}
	if req.Title != nil {
		in.Title = *req.Title
	}
	view, err := h.resumes.CreateResume(c.Request.Context(), userID, in)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GET /v1/resumes/:id
func (h *ResumeHandler) GetResume(c *gin.Context) {
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
	view, err := h.resumes.GetResume(c.Request.Context(), userID, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateResume 处理 PUT（partial=false）与 PATCH（partial=true）。
func (h *ResumeHandler) UpdateResume(partial bool) gin.HandlerFunc {
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
		var req resumeRequest
		if err := bindJSON(c, h.validate, &req); err != nil {
			RespondError(c, err)
			return
		}

		patch := resume.ResumePatch{Title: req.Title, TemplateName: req.TemplateName}
		view, err := h.resumes.UpdateResume(c.Request.Context(), userID, id, patch, partial)
		if err != nil {
			RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// DELETE /v1/resumes/:id
// 级联删除样式与全部分区。
func (h *ResumeHandler) DeleteResume(c *gin.Context) {
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
	if err := h.resumes.DeleteResume(c.Request.Context(), userID, id); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /v1/resumes/:id/share
// 幂等：已分享的简历返回原有链接。
func (h *ResumeHandler) ShareResume(c *gin.Context) {
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
	result, err := h.resumes.ShareResume(c.Request.Context(), userID, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GET /v1/public/resume/:share_id
// 无需登录，只返回公开投影。
func (h *ResumeHandler) GetPublicResume(c *gin.Context) {
	view, err := h.resumes.GetPublic(c.Request.Context(), c.Param("share_id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
