package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ha-Ezer/wecc/config"
	"github.com/ha-Ezer/wecc/internal/api/handler"
	"github.com/ha-Ezer/wecc/internal/api/middleware"
	"github.com/ha-Ezer/wecc/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时提交接口不限流
func Setup(cfg *config.Config, h *handler.Handler, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// 避免把 nil 指针装进接口
	var limiter middleware.RateLimiter
	if rdb != nil {
		limiter = rdb
	}

	// ── 联系表单 ──
	r.GET("/", h.Intake.Index)
	r.POST("/", middleware.RateLimit(limiter, cfg.Server.RateLimit.Limit, cfg.Server.RateLimit.Window), h.Intake.Submit)

	// ── 健康检查 ──
	r.GET("/health", h.Intake.Health)

	return r
}
