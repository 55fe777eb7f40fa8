package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"waterops-backend/config"
	"waterops-backend/internal/auth"
	"waterops-backend/internal/mw"
	"waterops-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, cfg *config.Config) *gin.Engine {
	r := gin.Default()

	db := s.DB()
	handler := NewHandler(s, cfg)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Liveness probe; also the connectivity-monitor target on devices.
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		api.POST("/auth/login", handler.Login)

		authed := api.Group("")
		authed.Use(auth.Middleware(db, cfg.Auth.JWTSecret))
		{
			authed.GET("/stations", caching, GetStations(db))
			authed.PUT("/faults/:id/status", UpdateFaultStatus(db))

			authed.POST("/sync/upload", handler.UploadSync)
			authed.GET("/sync/pending", handler.GetPendingSync)
			authed.POST("/sync/mark-synced", handler.MarkSynced)
		}
	}

	return r
}
