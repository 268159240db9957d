package http

import (
	"net/http"

	"castdeck/internal/core/domain"
	"castdeck/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var watchUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
}

// RoomHandler serves the receiver-facing read side: the live-rooms listing,
// a room's source list and a websocket feed of room changes.
type RoomHandler struct {
	roomRepo   ports.RoomRepository
	sourceRepo ports.SourceRepository
	logger     *zap.SugaredLogger
}

func NewRoomHandler(roomRepo ports.RoomRepository, sourceRepo ports.SourceRepository, logger *zap.SugaredLogger) *RoomHandler {
	return &RoomHandler{
		roomRepo:   roomRepo,
		sourceRepo: sourceRepo,
		logger:     logger,
	}
}

func (h *RoomHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/rooms/live", h.ListLiveRooms)
		api.GET("/rooms/watch", h.WatchRooms)
		api.GET("/rooms/:id/sources", h.ListRoomSources)
	}
}

// ListLiveRooms returns currently broadcasting rooms, newest first.
func (h *RoomHandler) ListLiveRooms(c *gin.Context) {
	rooms, err := h.roomRepo.ListLive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rooms == nil {
		rooms = []*domain.Room{}
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// ListRoomSources returns a room's persisted sources so a receiver can pick
// one before connecting.
func (h *RoomHandler) ListRoomSources(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))

	if _, err := h.roomRepo.Get(c.Request.Context(), roomID); err != nil {
		if err == domain.ErrRoomNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sources, err := h.sourceRepo.ListByRoom(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sources == nil {
		sources = []domain.Source{}
	}
	c.JSON(http.StatusOK, gin.H{"sources": sources})
}

// WatchRooms streams room change events over a websocket; this is what keeps
// a live-rooms listing current without polling.
func (h *RoomHandler) WatchRooms(c *gin.Context) {
	conn, err := watchUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorw("watch upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	events, err := h.roomRepo.Subscribe(ctx)
	if err != nil {
		h.logger.Errorw("room subscription failed", "error", err)
		return
	}

	// Reads are discarded; the socket exists to detect the client leaving.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}
