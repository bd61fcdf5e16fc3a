package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"medtime-companion/config"
	"medtime-companion/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	// Status is read from the indicator, but many UI clients poll it.
	cacheStore := cache.New(cfg.StatusCacheDuration, 10*time.Minute)
	caching := mw.Cache(cacheStore, cfg.StatusCacheDuration)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/alarms", h.ListAlarms)
		api.POST("/alarms", h.CreateAlarm)
		api.POST("/alarms/sync", h.SyncAlarms)
		api.POST("/alarms/:id/toggle", h.ToggleAlarm)
		api.DELETE("/alarms/:id", h.DeleteAlarm)

		api.GET("/alerts", h.ListAlerts)
		api.DELETE("/alerts", h.ClearAlerts)

		api.GET("/status", caching, h.GetStatus)
		api.GET("/active", h.GetActive)
		api.POST("/active/confirm", h.ConfirmActive)

		api.GET("/device", h.GetDevice)
		api.PUT("/device", h.PutDevice)
		api.DELETE("/device", h.DeleteDevice)
		api.GET("/device/alarms", h.ListDeviceAlarms)
		api.POST("/device/configure", h.ConfigureDevice)
		api.POST("/device/reset", h.ResetDevice)
		api.POST("/device/discover", h.DiscoverDevice)

		api.GET("/relay", h.GetRelay)
		api.PUT("/relay", h.PutRelay)
		api.POST("/relay/test", h.SendRelayTest)
		api.POST("/relay/summary", h.SendRelaySummary)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
