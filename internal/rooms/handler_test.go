package rooms

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jfairfie/planning-poker/internal/view"
)

type fakeDisconnector struct {
	disconnected []int64
	orphans      []int64
}

func (f *fakeDisconnector) DisconnectRoom(roomID int64, participantIDs []int64) {
	f.disconnected = append(f.disconnected, roomID)
	f.orphans = append(f.orphans, participantIDs...)
}

func newRouter(repo *Repository, d Disconnector) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(repo, d, zap.NewNop())
	r := gin.New()
	r.SetHTMLTemplate(view.Templates())
	r.GET("/rooms", h.ListPage)
	r.GET("/rooms/:id", h.RoomPage)
	r.POST("/rooms", h.CreateFragment)
	r.DELETE("/rooms/:id", h.DeleteFragment)
	r.GET("/api/rooms", h.ListAPI)
	r.POST("/api/rooms", h.CreateAPI)
	r.DELETE("/api/rooms/:id", h.DeleteAPI)
	return r
}

func TestHandler_CreateAPI(t *testing.T) {
	req := require.New(t)
	repo := NewRepository()
	router := newRouter(repo, &fakeDisconnector{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/rooms", strings.NewReader(`{"name":"sprint 12"}`))
	r.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, r)

	req.Equal(http.StatusCreated, w.Code)
	req.Contains(w.Body.String(), `"sprint 12"`)
	req.Len(repo.List(), 1)
}

func TestHandler_CreateAPI_MissingName(t *testing.T) {
	req := require.New(t)
	router := newRouter(NewRepository(), &fakeDisconnector{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/rooms", strings.NewReader(`{}`))
	r.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, r)

	req.Equal(http.StatusBadRequest, w.Code)
}

func TestHandler_DeleteAPI_DisconnectsMembers(t *testing.T) {
	req := require.New(t)
	repo := NewRepository()
	d := &fakeDisconnector{}
	router := newRouter(repo, d)
	id := repo.Create("doomed")
	req.NoError(repo.AddMember(id, 7))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/rooms/1", nil))

	req.Equal(http.StatusNoContent, w.Code)
	req.Equal([]int64{id}, d.disconnected)
	// The members the delete found are handed to the session lifecycle
	req.Equal([]int64{7}, d.orphans)
	req.Empty(repo.List())
}

func TestHandler_DeleteAPI_UnknownRoom(t *testing.T) {
	req := require.New(t)
	router := newRouter(NewRepository(), &fakeDisconnector{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/rooms/99", nil))

	req.Equal(http.StatusNotFound, w.Code)
}

func TestHandler_RoomPage(t *testing.T) {
	req := require.New(t)
	repo := NewRepository()
	router := newRouter(repo, &fakeDisconnector{})
	repo.Create("sprint 12")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rooms/1", nil))
	req.Equal(http.StatusOK, w.Code)
	req.Contains(w.Body.String(), "sprint 12")
	req.Contains(w.Body.String(), "/ws")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rooms/99", nil))
	req.Equal(http.StatusNotFound, w.Code)
}

func TestHandler_CreateFragment(t *testing.T) {
	req := require.New(t)
	repo := NewRepository()
	router := newRouter(repo, &fakeDisconnector{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/rooms", strings.NewReader("name=backlog"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, r)

	req.Equal(http.StatusOK, w.Code)
	req.Contains(w.Body.String(), "backlog")
	req.Contains(w.Body.String(), `id="rooms"`)
	req.Len(repo.List(), 1)
}
