package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/Conceptual-Machines/algorhythm-api/internal/contract"
	"github.com/Conceptual-Machines/algorhythm-api/internal/logger"
	"github.com/Conceptual-Machines/algorhythm-api/internal/models"
	"github.com/Conceptual-Machines/algorhythm-api/internal/playback"
	"github.com/gin-gonic/gin"
)

// SessionHandler exposes playback sessions. Each session schedules notes on its
// own transport and publishes them as events.
type SessionHandler struct {
	registry *playback.Registry
}

func NewSessionHandler(registry *playback.Registry) *SessionHandler {
	return &SessionHandler{registry: registry}
}

type CreateSessionRequest struct {
	Specification *models.MusicSpecification `json:"music_spec"`
}

type AttachRequest struct {
	Specification *models.MusicSpecification `json:"music_spec" binding:"required"`
}

type TempoRequest struct {
	BPM *float64 `json:"bpm" binding:"required"`
}

type VolumeRequest struct {
	Level *float64 `json:"level" binding:"required"`
}

type SessionResponse struct {
	SessionID string           `json:"session_id"`
	Session   playback.Session `json:"session"`
}

func sessionResponse(entry *playback.Entry) SessionResponse {
	return SessionResponse{
		SessionID: entry.ID,
		Session:   entry.Scheduler.Snapshot(),
	}
}

// Create registers a session, attaching a specification when one is given
func (h *SessionHandler) Create(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry := h.registry.Create()
	if req.Specification != nil {
		if err := entry.Scheduler.AttachSpecification(req.Specification); err != nil {
			_ = h.registry.Remove(entry.ID)
			h.commandError(c, err)
			return
		}
	}

	c.JSON(http.StatusCreated, sessionResponse(entry))
}

func (h *SessionHandler) Get(c *gin.Context) {
	entry, ok := h.entry(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionResponse(entry))
}

// Attach replaces the session's specification; playback stops and rewinds
func (h *SessionHandler) Attach(c *gin.Context) {
	entry, ok := h.entry(c)
	if !ok {
		return
	}

	var req AttachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := entry.Scheduler.AttachSpecification(req.Specification); err != nil {
		h.commandError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(entry))
}

func (h *SessionHandler) Play(c *gin.Context) {
	entry, ok := h.entry(c)
	if !ok {
		return
	}
	if err := entry.Scheduler.Play(c.Request.Context()); err != nil {
		h.commandError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(entry))
}

func (h *SessionHandler) Pause(c *gin.Context) {
	entry, ok := h.entry(c)
	if !ok {
		return
	}
	if err := entry.Scheduler.Pause(); err != nil {
		h.commandError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(entry))
}

func (h *SessionHandler) SetTempo(c *gin.Context) {
	entry, ok := h.entry(c)
	if !ok {
		return
	}

	var req TempoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := entry.Scheduler.SetTempo(*req.BPM); err != nil {
		h.commandError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(entry))
}

func (h *SessionHandler) SetVolume(c *gin.Context) {
	entry, ok := h.entry(c)
	if !ok {
		return
	}

	var req VolumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := entry.Scheduler.SetVolume(*req.Level); err != nil {
		h.commandError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(entry))
}

// Events streams a snapshot followed by every triggered note until the client
// goes away or the session is deleted
func (h *SessionHandler) Events(c *gin.Context) {
	entry, ok := h.entry(c)
	if !ok {
		return
	}

	notes, unsubscribe := entry.Events.Subscribe()
	defer unsubscribe()
	// The idle clock restarts when the listener leaves
	defer entry.Touch()

	setSSEHeaders(c)
	c.Header("X-Request-ID", c.GetString("request_id"))

	if err := writeSSE(c, gin.H{"type": eventSession, "data": entry.Scheduler.Snapshot()}); err != nil {
		return
	}

	log.Printf("📡 Session %s: event stream opened", entry.ID)
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			log.Printf("📡 Session %s: event stream closed by client", entry.ID)
			return
		case note, open := <-notes:
			if !open {
				_ = writeSSE(c, gin.H{"type": eventDone})
				return
			}
			if err := writeSSE(c, gin.H{"type": eventNote, "data": note}); err != nil {
				log.Printf("❌ Session %s: failed to write SSE event: %v", entry.ID, err)
				return
			}
		}
	}
}

func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.registry.Remove(c.Param("id")); err != nil {
		h.commandError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// entry looks up the session named in the path, writing a 404 when it is unknown
func (h *SessionHandler) entry(c *gin.Context) (*playback.Entry, bool) {
	entry, err := h.registry.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return entry, true
}

func (h *SessionHandler) commandError(c *gin.Context, err error) {
	var violation *contract.ViolationError

	switch {
	case errors.Is(err, playback.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, playback.ErrInvalidTempo), errors.Is(err, playback.ErrInvalidVolume):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &violation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": violation.Field})
	case errors.Is(err, playback.ErrDisposed):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	default:
		logger.Error("Playback command failed", err, logger.WithContext(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
