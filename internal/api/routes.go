package api

import (
	"github.com/gin-gonic/gin"

	"cvbuilder/internal/api/middleware"
	"cvbuilder/internal/validation"
)

// RegisterRoutes 注册 /v1 下的全部业务路由，不包含反向代理的 /api 前缀。
func RegisterRoutes(router *gin.Engine, deps Deps) {
	v := validation.New()
	authHandler := NewAuthHandler(deps.Accounts, v, deps.Config.Auth.CookieDomain)
	resumeHandler := NewResumeHandler(deps.Resumes, v)
	sectionHandler := NewSectionHandler(deps.Resumes, v)
	styleHandler := NewStyleHandler(deps.Resumes, v)
	templateHandler := NewTemplateHandler()

	authMiddleware := middleware.AuthMiddleware(deps.Accounts.Tokens())
	passwordGate := middleware.RequirePasswordChangeCompletedMiddleware()
	publicLimiter := middleware.NewIPRateLimiter(deps.Config.Public.RateLimitPerSec, deps.Config.Public.RateLimitBurst)

	v1 := router.Group("/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/token", authHandler.Login)
			authGroup.POST("/token/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
			authGroup.GET("/me", authMiddleware, authHandler.Me)
			authGroup.PATCH("/me", authMiddleware, passwordGate, authHandler.UpdateMe)
			authGroup.POST("/password", authMiddleware, authHandler.ChangePassword)
		}

		if deps.Notifications != nil {
			wsHandler := NewWsHandler(deps.Notifications, deps.Accounts.Tokens(), deps.Config.API.AllowedOrigins)
			v1.GET("/ws", wsHandler.HandleConnection)
		}

		v1.GET("/templates", templateHandler.ListTemplates)
		v1.GET("/public/resume/:share_id", publicLimiter.Middleware("public_resume"), resumeHandler.GetPublicResume)

		resumeGroup := v1.Group("/resumes")
		resumeGroup.Use(authMiddleware, passwordGate)
		{
			resumeGroup.GET("", resumeHandler.ListResumes)
			resumeGroup.POST("", resumeHandler.CreateResume)
			resumeGroup.GET("/:id", resumeHandler.GetResume)
			resumeGroup.PUT("/:id", resumeHandler.UpdateResume(false))
			resumeGroup.PATCH("/:id", resumeHandler.UpdateResume(true))
			resumeGroup.DELETE("/:id", resumeHandler.DeleteResume)
			resumeGroup.POST("/:id/share", resumeHandler.ShareResume)

			resumeGroup.GET("/:id/sections", sectionHandler.ListSections)
			resumeGroup.POST("/:id/sections", sectionHandler.CreateSection)

			resumeGroup.GET("/:id/style", styleHandler.GetStyle)
			resumeGroup.PUT("/:id/style", styleHandler.UpdateStyle(false))
			resumeGroup.PATCH("/:id/style", styleHandler.UpdateStyle(true))
		}

		sectionGroup := v1.Group("/sections")
		sectionGroup.Use(authMiddleware, passwordGate)
		{
			sectionGroup.GET("/:id", sectionHandler.GetSection)
			sectionGroup.PUT("/:id", sectionHandler.UpdateSection(false))
			sectionGroup.PATCH("/:id", sectionHandler.UpdateSection(true))
			sectionGroup.DELETE("/:id", sectionHandler.DeleteSection)
		}
	}
}
