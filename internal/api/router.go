package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"cvbuilder/internal/api/middleware"
	"cvbuilder/internal/auth"
	"cvbuilder/internal/config"
	"cvbuilder/internal/errcode"
	"cvbuilder/internal/metrics"
	"cvbuilder/internal/resume"
)

// Deps 是构建路由所需的全部协作者。
type Deps struct {
	Config   *config.Config
	Logger   *slog.Logger
	Resumes  *resume.Service
	Accounts *auth.Accounts

	// Notifications 为空时不注册 /v1/ws。
	Notifications NotificationSource
}

// NewRouter 构建 Gin 引擎：公共中间件、健康检查、受内部密钥保护的 /metrics 以及 /v1 路由。
func NewRouter(deps Deps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(
		middleware.CorrelationIDMiddleware(),
		middleware.SlogLoggerMiddleware(logger),
		middleware.Recovery(),
		metrics.GinMiddleware(),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", middleware.InternalSecretMiddleware(deps.Config.API.InternalSecret), metrics.Handler())

	router.NoRoute(func(c *gin.Context) {
		RespondError(c, errcode.NotFound("not found"))
	})

	RegisterRoutes(router, deps)
	return router
}
