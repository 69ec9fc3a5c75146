package rooms

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jfairfie/planning-poker/pkg/response"
)

// pointScale is the card deck offered on the pointing page.
var pointScale = []string{"0.5", "1", "2", "3", "5", "8", "13", "21"}

// Disconnector force-disconnects every connection of a deleted room,
// including participants whose join was still in flight when the room's
// membership set was torn down. Implemented by the realtime session
// lifecycle.
type Disconnector interface {
	DisconnectRoom(roomID int64, participantIDs []int64)
}

// CreateRequest is the body for POST /api/rooms.
type CreateRequest struct {
	Name string `json:"name" binding:"required"`
}

// Handler serves the room pages, the HTMX fragments, and the JSON API.
type Handler struct {
	repo     *Repository
	sessions Disconnector
	logger   *zap.Logger
}

// NewHandler creates a rooms handler.
func NewHandler(repo *Repository, sessions Disconnector, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, sessions: sessions, logger: logger}
}

// IndexPage handles GET /.
func (h *Handler) IndexPage(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", nil)
}

// ListPage handles GET /rooms.
func (h *Handler) ListPage(c *gin.Context) {
	c.HTML(http.StatusOK, "rooms.html", gin.H{"Rooms": h.repo.List()})
}

// RoomPage handles GET /rooms/:id, the pointing page for one room.
func (h *Handler) RoomPage(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, "invalid room id")
		return
	}
	room, ok := h.repo.Get(id)
	if !ok {
		c.String(http.StatusNotFound, "room not found")
		return
	}
	c.HTML(http.StatusOK, "room.html", gin.H{
		"RoomID":   room.ID,
		"RoomName": room.Name,
		"Points":   pointScale,
	})
}

// CreateFragment handles POST /rooms from the HTMX form and returns the
// updated room list fragment.
func (h *Handler) CreateFragment(c *gin.Context) {
	name := c.PostForm("name")
	if name == "" {
		c.String(http.StatusBadRequest, "room name required")
		return
	}
	id := h.repo.Create(name)
	h.logger.Info("room created", zap.Int64("room_id", id), zap.String("name", name))
	c.HTML(http.StatusOK, "room_list.html", gin.H{"Rooms": h.repo.List()})
}

// DeleteFragment handles DELETE /rooms/:id from the HTMX list and returns
// the updated room list fragment. Members still connected to the room are
// force-disconnected.
func (h *Handler) DeleteFragment(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, "invalid room id")
		return
	}
	h.deleteRoom(id)
	c.HTML(http.StatusOK, "room_list.html", gin.H{"Rooms": h.repo.List()})
}

// ListAPI handles GET /api/rooms.
func (h *Handler) ListAPI(c *gin.Context) {
	response.OK(c, h.repo.List())
}

// CreateAPI handles POST /api/rooms.
func (h *Handler) CreateAPI(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	id := h.repo.Create(req.Name)
	h.logger.Info("room created", zap.Int64("room_id", id), zap.String("name", req.Name))
	room, _ := h.repo.Get(id)
	response.Created(c, room)
}

// DeleteAPI handles DELETE /api/rooms/:id.
func (h *Handler) DeleteAPI(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return
	}
	if _, ok := h.repo.Get(id); !ok {
		response.NotFound(c, "room not found")
		return
	}
	h.deleteRoom(id)
	response.NoContent(c)
}

// deleteRoom removes the room first so no new join can slip in, then
// disconnects the orphaned members through the session lifecycle.
func (h *Handler) deleteRoom(id int64) {
	orphans := h.repo.Delete(id)
	if h.sessions != nil {
		h.sessions.DisconnectRoom(id, orphans)
	}
	h.logger.Info("room deleted", zap.Int64("room_id", id), zap.Int("orphans", len(orphans)))
}
