package api

import (
	"github.com/Conceptual-Machines/algorhythm-api/internal/api/handlers"
	apimiddleware "github.com/Conceptual-Machines/algorhythm-api/internal/api/middleware"
	"github.com/Conceptual-Machines/algorhythm-api/internal/config"
	"github.com/Conceptual-Machines/algorhythm-api/internal/metrics"
	"github.com/Conceptual-Machines/algorhythm-api/internal/playback"
	"github.com/gin-gonic/gin"
)

// Dependencies are the long-lived services the routes are served from.
// CloudWatch may be nil.
type Dependencies struct {
	Config     *config.Config
	Pipeline   handlers.Pipeline
	Sessions   *playback.Registry
	Metrics    *metrics.SentryMetrics
	CloudWatch *metrics.Client
	Version    string
}

func SetupRouter(deps Dependencies) *gin.Engine {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewSentryMetrics()
	}

	router := gin.New()

	// Recovery middleware (must be first)
	router.Use(apimiddleware.RecoverWithSentry())

	// Sentry middleware for error tracking
	router.Use(apimiddleware.SentryMiddleware())

	// Request tracking and structured logging
	router.Use(apimiddleware.RequestTracking(deps.Metrics, deps.CloudWatch))

	router.Use(apimiddleware.CORS())

	healthHandler := handlers.NewHealthHandler(deps.Config)
	router.GET("/health", healthHandler.HealthCheck)

	metricsHandler := handlers.NewMetricsHandler(deps.Version, deps.Sessions)
	router.GET("/api/metrics", metricsHandler.GetMetrics)

	v1 := router.Group("/api/v1")
	{
		// Photo -> analysis -> music specification
		compositionHandler := handlers.NewCompositionHandler(deps.Pipeline)
		v1.POST("/compositions", compositionHandler.Create)
		v1.POST("/compositions/stream", compositionHandler.Stream)

		// Playback sessions
		sessionHandler := handlers.NewSessionHandler(deps.Sessions)
		sessions := v1.Group("/sessions")
		sessions.POST("", sessionHandler.Create)
		sessions.GET("/:id", sessionHandler.Get)
		sessions.DELETE("/:id", sessionHandler.Delete)
		sessions.PUT("/:id/spec", sessionHandler.Attach)
		sessions.POST("/:id/play", sessionHandler.Play)
		sessions.POST("/:id/pause", sessionHandler.Pause)
		sessions.PUT("/:id/tempo", sessionHandler.SetTempo)
		sessions.PUT("/:id/volume", sessionHandler.SetVolume)
		sessions.GET("/:id/events", sessionHandler.Events)
	}

	return router
}
