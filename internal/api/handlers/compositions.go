package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/Conceptual-Machines/algorhythm-api/internal/agents/core"
	"github.com/Conceptual-Machines/algorhythm-api/internal/agents/core/coordination"
	"github.com/Conceptual-Machines/algorhythm-api/internal/logger"
	"github.com/Conceptual-Machines/algorhythm-api/internal/models"
	"github.com/gin-gonic/gin"
)

// Pipeline runs photo analysis followed by music composition
type Pipeline interface {
	Run(ctx context.Context, req coordination.Request) (*coordination.Result, error)
	RunStream(ctx context.Context, req coordination.Request, callback coordination.StreamCallback) (*coordination.Result, error)
}

type CompositionHandler struct {
	pipeline Pipeline
}

func NewCompositionHandler(pipeline Pipeline) *CompositionHandler {
	return &CompositionHandler{pipeline: pipeline}
}

type CompositionRequest struct {
	PhotoURL string `json:"photo_url" binding:"required"`
	Style    string `json:"style"`
	Lighting string `json:"lighting"`
}

type CompositionResponse struct {
	RequestID     string                     `json:"request_id"`
	Analysis      *models.ImageAnalysis      `json:"analysis"`
	Specification *models.MusicSpecification `json:"music_spec"`
}

func (r CompositionRequest) pipelineRequest() coordination.Request {
	return coordination.Request{
		PhotoURL: r.PhotoURL,
		Style:    r.Style,
		Lighting: r.Lighting,
	}
}

// Create runs the full pipeline and returns the analysis and music specification
func (h *CompositionHandler) Create(c *gin.Context) {
	var req CompositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields := logger.WithContext(c)
	fields["photo_url"] = req.PhotoURL
	logger.Info("Composition requested", fields)

	result, err := h.pipeline.Run(c.Request.Context(), req.pipelineRequest())
	if err != nil {
		status, body := pipelineError(c, result, err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, CompositionResponse{
		RequestID:     c.GetString("request_id"),
		Analysis:      result.Analysis,
		Specification: result.Specification,
	})
}

// Stream runs the pipeline and reports each stage as a server-sent event
func (h *CompositionHandler) Stream(c *gin.Context) {
	var req CompositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requestID := c.GetString("request_id")
	log.Printf("📨 Composition stream requested: %s", req.PhotoURL)

	setSSEHeaders(c)
	c.Header("X-Request-ID", requestID)
	c.Writer.Flush()

	callback := func(event coordination.StreamEvent) error {
		if err := writeSSE(c, event); err != nil {
			log.Printf("❌ Composition stream: failed to write SSE event: %v", err)
			return err
		}
		return nil
	}

	// Failures were already sent as error events by the pipeline
	result, err := h.pipeline.RunStream(c.Request.Context(), req.pipelineRequest(), callback)
	if err != nil {
		log.Printf("❌ Composition stream failed: %v", err)
		return
	}

	_ = writeSSE(c, gin.H{
		"type":       eventDone,
		"request_id": requestID,
		"data":       result,
	})
	log.Printf("✅ Composition stream completed: %s", requestID)
}

// pipelineError maps a pipeline failure to a status code and response body
func pipelineError(c *gin.Context, result *coordination.Result, err error) (int, gin.H) {
	body := gin.H{
		"error":      err.Error(),
		"request_id": c.GetString("request_id"),
	}

	var validationErr *core.ValidationError
	if errors.As(err, &validationErr) {
		body["field"] = validationErr.Field
		return http.StatusBadRequest, body
	}

	var generationErr *core.GenerationError
	if errors.As(err, &generationErr) {
		body["stage"] = generationErr.Stage
		if errors.Is(err, core.ErrStageTimeout) {
			body["timeout"] = true
		}
		if result != nil && result.Analysis != nil {
			body["analysis"] = result.Analysis
		}
		return http.StatusBadGateway, body
	}

	if errors.Is(err, context.Canceled) {
		return http.StatusRequestTimeout, body
	}

	logger.Error("Pipeline failed unexpectedly", err, logger.WithContext(c))
	return http.StatusInternalServerError, body
}
