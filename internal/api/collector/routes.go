package collector

import (
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/tracex/internal/api/middleware"
)

// Auth holds the optional credentials the collector enforces. Empty
// values disable the matching check.
type Auth struct {
	// APIKey is the bearer token required on trace and metrics endpoints
	APIKey string
	// RegistrationKey is the X-API-Key required to register public keys
	RegistrationKey string
}

// Register mounts the collector API on r
func (h *Handlers) Register(r gin.IRouter, auth Auth) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	bearer := middleware.BearerAuth(auth.APIKey)

	api.POST("/traces", bearer, h.PostTraces)
	api.GET("/traces", bearer, h.GetTraces)
	api.GET("/traces/tags", bearer, h.GetTagSummary)
	api.GET("/traces/stream", bearer, h.Stream)

	api.POST("/keys/register", middleware.APIKeyAuth(auth.RegistrationKey), h.RegisterKey)

	api.POST("/metrics/publish", bearer, h.PublishMetrics)
	api.GET("/metrics/public", h.GetPublicMetrics)
}
