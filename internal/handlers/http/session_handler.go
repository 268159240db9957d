package http

import (
	"errors"
	"net/http"

	"castdeck/internal/core/domain"
	"castdeck/internal/core/services"
	apperrors "castdeck/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionHandler exposes the broadcaster's control surface: managing sources,
// toggling the broadcast and renaming the room. It drives a single local
// session; the receiver-facing read side lives in RoomHandler.
type SessionHandler struct {
	manager *services.SessionManager
	logger  *zap.SugaredLogger
}

func NewSessionHandler(manager *services.SessionManager, logger *zap.SugaredLogger) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		logger:  logger,
	}
}

func (h *SessionHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/session", h.GetState)
		api.POST("/session/sources", h.AddSource)
		api.POST("/session/sources/:id/activate", h.ActivateSource)
		api.POST("/session/sources/:id/deactivate", h.DeactivateSource)
		api.PUT("/session/sources/:id", h.RenameSource)
		api.DELETE("/session/sources/:id", h.RemoveSource)
		api.POST("/session/broadcast", h.ToggleBroadcast)
		api.POST("/session/reconnect", h.ReconnectAll)
		api.PUT("/session/room", h.RenameRoom)
	}
}

type addSourceRequest struct {
	Kind     string `json:"kind" binding:"required"`
	DeviceID string `json:"device_id"`
}

type renameSourceRequest struct {
	Label string `json:"label" binding:"required"`
}

type renameRoomRequest struct {
	RoomID string `json:"room_id" binding:"required"`
}

// GetState returns the session as the control UI renders it: the room id,
// whether it is live, how many receivers are watching, every source with its
// phase, and the logged-in user when a valid token was presented.
func (h *SessionHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"room_id":        h.manager.RoomID(),
		"broadcasting":   h.manager.Broadcasting(),
		"receiver_count": h.manager.ReceiverCount(),
		"sources":        h.manager.Sources(),
		"user":           c.GetString("user_id"),
	})
}

// AddSource registers a new source of the given kind and tries to activate it
// right away. A capture failure still returns the created source: it simply
// stays inactive.
func (h *SessionHandler) AddSource(c *gin.Context) {
	var req addSourceRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	kind := domain.SourceKind(req.Kind)
	if !kind.Valid() {
		c.Error(apperrors.NewInvalidInput("unknown source kind " + req.Kind))
		return
	}

	src, err := h.manager.AddSource(c.Request.Context(), kind, req.DeviceID)
	if err != nil {
		c.Error(h.mapError(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"source": src})
}

func (h *SessionHandler) ActivateSource(c *gin.Context) {
	id := domain.SourceID(c.Param("id"))
	if err := h.manager.ActivateSource(c.Request.Context(), id); err != nil {
		c.Error(h.mapError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SessionHandler) DeactivateSource(c *gin.Context) {
	id := domain.SourceID(c.Param("id"))
	if err := h.manager.DeactivateSource(c.Request.Context(), id); err != nil {
		c.Error(h.mapError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SessionHandler) RenameSource(c *gin.Context) {
	var req renameSourceRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id := domain.SourceID(c.Param("id"))
	if err := h.manager.RenameSource(c.Request.Context(), id, req.Label); err != nil {
		c.Error(h.mapError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SessionHandler) RemoveSource(c *gin.Context) {
	id := domain.SourceID(c.Param("id"))
	if err := h.manager.RemoveSource(c.Request.Context(), id); err != nil {
		c.Error(h.mapError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ToggleBroadcast starts the broadcast if it is stopped and stops it if it is
// live. A taken room id comes back as ROOM_ID_TAKEN so the UI can prompt for
// a different one instead of showing a generic connection error.
func (h *SessionHandler) ToggleBroadcast(c *gin.Context) {
	live, err := h.manager.ToggleBroadcasting(c.Request.Context())
	if err != nil {
		c.Error(h.mapError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"broadcasting": live})
}

// ReconnectAll re-activates every enabled source that is currently inactive.
func (h *SessionHandler) ReconnectAll(c *gin.Context) {
	if err := h.manager.ReconnectAll(c.Request.Context()); err != nil {
		c.Error(h.mapError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": h.manager.Sources()})
}

func (h *SessionHandler) RenameRoom(c *gin.Context) {
	var req renameRoomRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.manager.RenameRoom(c.Request.Context(), domain.RoomID(req.RoomID)); err != nil {
		c.Error(h.mapError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": h.manager.RoomID()})
}

// mapError translates domain errors into API errors for the error handler
// middleware. Anything unrecognized falls through as an internal error.
func (h *SessionHandler) mapError(err error) error {
	switch {
	case errors.Is(err, domain.ErrIdentityTaken):
		return apperrors.NewRoomIDTaken(string(h.manager.RoomID()))
	case errors.Is(err, domain.ErrDuplicateLabel):
		return apperrors.NewConflict(err.Error())
	case errors.Is(err, domain.ErrSourceNotFound):
		return apperrors.NewNotFound("source")
	case errors.Is(err, domain.ErrRoomNotFound):
		return apperrors.NewNotFound("room")
	case errors.Is(err, domain.ErrSessionClosed):
		return apperrors.NewConflict("session is closed")
	case domain.IsCaptureError(err):
		return apperrors.NewCaptureFailed(err)
	default:
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "operation failed", http.StatusInternalServerError)
	}
}
