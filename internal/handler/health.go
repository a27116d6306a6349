package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/creeyes/crmprueba/internal/infra"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// BreakerStater reports the CRM circuit state.
type BreakerStater interface {
	BreakerState() infra.CBState
}

// Health checks DB and Redis connectivity and reports the CRM circuit state.
// Redis only backs the dead-letter list, so a nil client reports "disabled"
// and an unreachable one degrades the answer without failing it. The CRM
// circuit is informative only.
func Health(db *gorm.DB, rdb *redis.Client, crm BreakerStater) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "disabled"
		if rdb != nil {
			redisStatus = "connected"
			if rdb.Ping(ctx).Err() != nil {
				redisStatus = "error"
			}
		}

		crmStatus := infra.CBClosed.String()
		if crm != nil {
			crmStatus = crm.BreakerState().String()
		}

		status := http.StatusOK
		if dbStatus != "connected" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"ok":    status == http.StatusOK,
			"db":    dbStatus,
			"redis": redisStatus,
			"crm":   crmStatus,
		})
	}
}
