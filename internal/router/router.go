package router

import (
	"fmt"
	"strings"

	"github.com/settlepay/internal/cache"
	"github.com/settlepay/internal/config"
	adminhandlers "github.com/settlepay/internal/http/handlers/admin"
	publichandlers "github.com/settlepay/internal/http/handlers/public"
	"github.com/settlepay/internal/logger"
	"github.com/settlepay/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	if strings.EqualFold(cfg.Server.Mode, "release") {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// 初始化 Handler（按公共/运维分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "sp"
	}
	actionRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_action", redisPrefix),
		WindowSeconds: cfg.Security.AdminActionRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.AdminActionRateLimit.MaxRequests,
		MessageKey:    "error.rate_limited",
	}
	actionLimiter := RateLimitMiddleware(cache.Client(), actionRule, KeyByOperator)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		// 运维接口（需鉴权）
		authorized := apiV1.Group("/admin")
		authorized.Use(JWTAuthMiddleware(c.AuthService))
		if cfg.Authz.Enabled {
			authorized.Use(AdminRBACMiddleware(c.AuthzService))
		}
		{
			authorized.GET("/me", adminHandler.GetCurrentOperator)

			// 收款
			authorized.GET("/payments", adminHandler.GetAdminPayments)
			authorized.GET("/payments/:id", adminHandler.GetAdminPayment)
			authorized.POST("/payments/:id/verify", adminHandler.VerifyAdminPayment)

			// 归集
			authorized.POST("/sweeps", actionLimiter, adminHandler.TriggerSweep)
			authorized.GET("/sweeps/audit", adminHandler.GetSweepAuditLogs)

			// 观察器
			authorized.POST("/observer/tick", actionLimiter, adminHandler.TriggerObserverTick)
		}
	}

	// 健康检查
	r.GET("/health", publicHandler.Health)

	return r
}
