package public

import (
	"context"
	"net/http"
	"time"

	"github.com/settlepay/internal/cache"
	handlershared "github.com/settlepay/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 3 * time.Second

// Health 健康检查：数据库与 Redis 均可用才返回 ok
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	checks := gin.H{"database": "ok", "redis": "ok"}
	healthy := true

	if err := h.pingDB(ctx); err != nil {
		healthy = false
		checks["database"] = err.Error()
		handlershared.RequestLog(c).Warnw("health_database_unavailable", "error", err)
	}
	if !cache.Enabled() {
		checks["redis"] = "disabled"
	} else if err := cache.Ping(ctx); err != nil {
		healthy = false
		checks["redis"] = err.Error()
		handlershared.RequestLog(c).Warnw("health_redis_unavailable", "error", err)
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
}

func (h *Handler) pingDB(ctx context.Context) error {
	if h == nil || h.Container == nil || h.DB == nil {
		return errDatabaseUnavailable
	}
	sqlDB, err := h.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
