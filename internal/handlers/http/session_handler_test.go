package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"castdeck/internal/core/domain"
	"castdeck/internal/core/ports"
	"castdeck/internal/core/services"
	"castdeck/internal/infrastructure/middleware"
	"castdeck/internal/infrastructure/repositories/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubCapture struct {
	next int
}

func (c *stubCapture) Acquire(ctx context.Context, kind domain.SourceKind, deviceID string, hint domain.CaptureHint) (*domain.MediaStream, error) {
	c.next++
	track := domain.NewMediaTrack(fmt.Sprintf("trk-%d", c.next), domain.TrackVideo, nil, nil)
	return domain.NewMediaStream(fmt.Sprintf("stream-%d", c.next), []*domain.MediaTrack{track}, nil), nil
}

type stubTransport struct {
	startErr error
	live     bool
}

func (t *stubTransport) Start(ctx context.Context, roomID domain.RoomID, feeds ports.FeedProvider, onDown func(error)) error {
	if t.startErr != nil {
		return t.startErr
	}
	t.live = true
	return nil
}

func (t *stubTransport) PushSource(ctx context.Context, feed domain.Feed) error       { return nil }
func (t *stubTransport) RetractSource(ctx context.Context, id domain.SourceID) error  { return nil }
func (t *stubTransport) ReceiverCount() int                                           { return 0 }
func (t *stubTransport) Stop(ctx context.Context) error                               { t.live = false; return nil }

func (t *stubTransport) State() domain.TransportState {
	if t.live {
		return domain.TransportLive
	}
	return domain.TransportOffline
}

type handlerFixture struct {
	router    *gin.Engine
	manager   *services.SessionManager
	transport *stubTransport
	auth      services.AuthService
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zaptest.NewLogger(t).Sugar()
	roomRepo := memory.NewMemoryRoomRepository()
	sourceRepo := memory.NewMemorySourceRepository()
	store := services.NewRoomStore(roomRepo, sourceRepo, log)
	transport := &stubTransport{}

	manager, err := services.NewSessionManager(
		"demo", "", store, &stubCapture{}, transport, nil, log,
		services.SessionConfig{}, nil,
	)
	require.NoError(t, err)
	require.NoError(t, manager.LoadRoom(context.Background()))
	t.Cleanup(func() { manager.Close(context.Background()) })

	auth := services.NewAuthService("test-secret", time.Hour)

	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.OptionalAuthMiddleware(auth))
	NewSessionHandler(manager, log).SetupRoutes(router)
	NewRoomHandler(roomRepo, sourceRepo, log).SetupRoutes(router)

	return &handlerFixture{router: router, manager: manager, transport: transport, auth: auth}
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSessionHandler_GetState(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "demo", body["room_id"])
	assert.Equal(t, false, body["broadcasting"])
	assert.Equal(t, "", body["user"])
}

func TestSessionHandler_GetStateReportsUser(t *testing.T) {
	f := newHandlerFixture(t)

	token, err := f.auth.GenerateToken("user-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", decodeBody(t, rec)["user"])
}

func TestSessionHandler_AddSource(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/session/sources", gin.H{"kind": "camera"})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	src := body["source"].(map[string]any)
	assert.Equal(t, "Camera", src["label"])
	assert.Equal(t, "active", src["phase"])
}

func TestSessionHandler_AddSourceUnknownKind(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/session/sources", gin.H{"kind": "hologram"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeBody(t, rec)["error"])
}

func TestSessionHandler_RenameSourceDuplicate(t *testing.T) {
	f := newHandlerFixture(t)

	first, err := f.manager.AddSource(context.Background(), domain.KindCamera, "")
	require.NoError(t, err)
	_, err = f.manager.AddSource(context.Background(), domain.KindScreen, "")
	require.NoError(t, err)

	rec := f.do(t, http.MethodPut, "/api/v1/session/sources/"+string(first.ID), gin.H{"label": "Screen"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decodeBody(t, rec)["error"])
}

func TestSessionHandler_SourceNotFound(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/session/sources/src_missing/activate", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeBody(t, rec)["error"])
}

func TestSessionHandler_ToggleBroadcast(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/session/broadcast", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["broadcasting"])

	rec = f.do(t, http.MethodPost, "/api/v1/session/broadcast", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["broadcasting"])
}

func TestSessionHandler_ToggleBroadcastIdentityTaken(t *testing.T) {
	f := newHandlerFixture(t)
	f.transport.startErr = domain.ErrIdentityTaken

	rec := f.do(t, http.MethodPost, "/api/v1/session/broadcast", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ROOM_ID_TAKEN", decodeBody(t, rec)["error"])
}

func TestSessionHandler_RenameRoom(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPut, "/api/v1/session/room", gin.H{"room_id": "renamed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "renamed", decodeBody(t, rec)["room_id"])
}

func TestSessionHandler_RenameRoomWhileLive(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/session/broadcast", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/v1/session/room", gin.H{"room_id": "renamed"})
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestRoomHandler_ListLive(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/rooms/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody(t, rec)["rooms"])

	req := f.do(t, http.MethodPost, "/api/v1/session/broadcast", nil)
	require.Equal(t, http.StatusOK, req.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/rooms/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rooms := decodeBody(t, rec)["rooms"].([]any)
	require.Len(t, rooms, 1)
	assert.Equal(t, "demo", rooms[0].(map[string]any)["id"])
}

func TestRoomHandler_RoomSources(t *testing.T) {
	f := newHandlerFixture(t)

	_, err := f.manager.AddSource(context.Background(), domain.KindMicrophone, "mic-1")
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/v1/rooms/demo/sources", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sources := decodeBody(t, rec)["sources"].([]any)
	require.Len(t, sources, 1)
	assert.Equal(t, "Microphone", sources[0].(map[string]any)["label"])
}

func TestRoomHandler_RoomSourcesNotFound(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/rooms/nope/sources", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
