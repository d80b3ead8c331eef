package handlers

import (
	"net/http"

	"github.com/Conceptual-Machines/algorhythm-api/internal/config"
	"github.com/gin-gonic/gin"
)

// HealthHandler reports service health and pipeline configuration
type HealthHandler struct {
	cfg *config.Config
}

func NewHealthHandler(cfg *config.Config) *HealthHandler {
	return &HealthHandler{cfg: cfg}
}

// HealthCheck returns the health status of the API
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	provider := h.cfg.LLMProvider
	if provider == "" {
		provider = "auto"
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"pipeline": gin.H{
			"provider":          provider,
			"analysis_model":    h.cfg.AnalysisModel,
			"composition_model": h.cfg.CompositionModel,
			"variant":           h.cfg.MusicSpecVariant,
		},
	})
}
