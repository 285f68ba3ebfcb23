package net

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"routesim/server"
	"routesim/server/internal/geo"
	"routesim/server/internal/observability"
	"routesim/server/internal/routes"
	"routesim/server/mocks"
)

type discardConn struct{}

func (discardConn) WriteMessage(int, []byte) error    { return nil }
func (discardConn) SetWriteDeadline(time.Time) error { return nil }
func (discardConn) Close() error                     { return nil }

func newTestHub(t *testing.T) *server.Hub {
	t.Helper()
	cfg := server.DefaultHubConfig()
	cfg.TickInterval = time.Hour
	loader := routes.LoaderFunc(func(_ context.Context, id string) (geo.Polyline, error) {
		if id != "loop" {
			return nil, routes.ErrNotFound
		}
		return geo.Polyline{{Lon: 0, Lat: 0}, {Lon: 0, Lat: 0.01}}, nil
	})
	hub := server.NewHub(loader, cfg)
	t.Cleanup(func() { _ = hub.Close(context.Background()) })
	return hub
}

func joinRoom(t *testing.T, hub *server.Hub, routeID string) *server.Session {
	t.Helper()
	s, err := hub.Connect(discardConn{})
	require.NoError(t, err)
	require.NoError(t, hub.Join(context.Background(), s, routeID, nil))
	return s
}

func serve(handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body), resp.Body.String())
	return body.Error
}

func TestHTTPHealth(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{})

	resp := serve(handler, http.MethodGet, "/health", "")
	if resp.Code != http.StatusOK || resp.Body.String() != "ok" {
		t.Fatalf("expected 200 ok, got %d %q", resp.Code, resp.Body.String())
	}
}

func TestHTTPDiagnosticsReportsRoomsAndCounters(t *testing.T) {
	hub := newTestHub(t)
	joinRoom(t, hub, "loop")
	handler := NewHTTPHandler(hub, HTTPHandlerConfig{Observability: observability.Default()})

	resp := serve(handler, http.MethodGet, "/diagnostics", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if contentType := resp.Header().Get("Content-Type"); contentType != "application/json" {
		t.Fatalf("expected application/json, got %q", contentType)
	}
	var payload struct {
		Status       string               `json:"status"`
		TickInterval int64                `json:"tickIntervalMillis"`
		Sessions     int                  `json:"sessions"`
		Rooms        []server.RoomSummary `json:"rooms"`
		Telemetry    map[string]uint64    `json:"telemetry"`
		Process      struct {
			PID int `json:"pid"`
		} `json:"process"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode diagnostics: %v", err)
	}
	if payload.Status != "ok" || payload.Sessions != 1 || payload.Process.PID == 0 {
		t.Fatalf("unexpected diagnostics %+v", payload)
	}
	if payload.TickInterval != time.Hour.Milliseconds() {
		t.Fatalf("expected tick interval %d, got %d", time.Hour.Milliseconds(), payload.TickInterval)
	}
	if len(payload.Rooms) != 1 || payload.Rooms[0].RouteID != "loop" || payload.Rooms[0].SubscriberCount != 1 {
		t.Fatalf("unexpected rooms %+v", payload.Rooms)
	}
	if payload.Telemetry["rooms_created"] != 1 {
		t.Fatalf("expected rooms_created counter, got %v", payload.Telemetry)
	}
}

func TestHTTPDiagnosticsDisabled(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{})

	if resp := serve(handler, http.MethodGet, "/diagnostics", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when diagnostics are off, got %d", resp.Code)
	}
}

func TestHTTPRoutesListAndSearch(t *testing.T) {
	r := require.New(t)
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{Routes: repo})

	stored := routes.Route{ID: "a", Name: "Alpha", Coordinates: geo.Polyline{{Lon: 1, Lat: 2}, {Lon: 3, Lat: 4}}, Distance: 1.5}
	repo.EXPECT().List(gomock.Any()).Return(nil, nil)
	repo.EXPECT().Search(gomock.Any(), "alp").Return([]routes.Route{stored}, nil)

	resp := serve(handler, http.MethodGet, "/api/routes", "")
	r.Equal(http.StatusOK, resp.Code)
	r.JSONEq(`[]`, resp.Body.String())

	resp = serve(handler, http.MethodGet, "/api/routes?q=alp", "")
	r.Equal(http.StatusOK, resp.Code)
	var listed []routes.Route
	r.NoError(json.Unmarshal(resp.Body.Bytes(), &listed))
	r.Len(listed, 1)
	r.Equal("Alpha", listed[0].Name)
	r.Equal(stored.Coordinates, listed[0].Coordinates)
}

func TestHTTPRoutesErrors(t *testing.T) {
	r := require.New(t)
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{Routes: repo})

	repo.EXPECT().Get(gomock.Any(), "missing").Return(routes.Route{}, routes.ErrNotFound)
	resp := serve(handler, http.MethodGet, "/api/routes/missing", "")
	r.Equal(http.StatusNotFound, resp.Code)
	r.Equal("Route not found", decodeError(t, resp))

	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(routes.Route{}, fmt.Errorf("%w: name is required", routes.ErrInvalid))
	resp = serve(handler, http.MethodPost, "/api/routes", `{"geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}`)
	r.Equal(http.StatusBadRequest, resp.Code)
	r.Contains(decodeError(t, resp), "name is required")

	resp = serve(handler, http.MethodPost, "/api/routes", `{not json`)
	r.Equal(http.StatusBadRequest, resp.Code)

	repo.EXPECT().Delete(gomock.Any(), "gone").Return(fmt.Errorf("disk on fire"))
	resp = serve(handler, http.MethodDelete, "/api/routes/gone", "")
	r.Equal(http.StatusInternalServerError, resp.Code)
	r.Equal("Internal error", decodeError(t, resp))
}

func TestHTTPRoutesCreateUpdateDelete(t *testing.T) {
	r := require.New(t)
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{Routes: repo})

	repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req routes.CreateRequest) (routes.Route, error) {
		r.Equal("Harbor", req.Name)
		r.Equal([][]float64{{0, 0}, {1, 1}}, req.Geometry.Coordinates)
		return routes.Route{ID: "h1", Name: req.Name}, nil
	})
	resp := serve(handler, http.MethodPost, "/api/routes", `{"name":"Harbor","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}`)
	r.Equal(http.StatusCreated, resp.Code)
	r.Contains(resp.Body.String(), `"id":"h1"`)

	repo.EXPECT().Update(gomock.Any(), "h1", gomock.Any()).DoAndReturn(func(_ context.Context, _ string, req routes.UpdateRequest) (routes.Route, error) {
		r.NotNil(req.Name)
		r.Nil(req.Geometry)
		return routes.Route{ID: "h1", Name: *req.Name}, nil
	})
	resp = serve(handler, http.MethodPut, "/api/routes/h1", `{"name":"Harbor East"}`)
	r.Equal(http.StatusOK, resp.Code)
	r.Contains(resp.Body.String(), `"name":"Harbor East"`)

	repo.EXPECT().Delete(gomock.Any(), "h1").Return(nil)
	resp = serve(handler, http.MethodDelete, "/api/routes/h1", "")
	r.Equal(http.StatusNoContent, resp.Code)
}

func TestHTTPRoutesImport(t *testing.T) {
	r := require.New(t)
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{Routes: repo})

	resp := serve(handler, http.MethodPost, "/api/routes/import", "just some text")
	r.Equal(http.StatusUnsupportedMediaType, resp.Code)

	resp = serve(handler, http.MethodPost, "/api/routes/import", `{"type":"Point","coordinates":[0,0]}`)
	r.Equal(http.StatusBadRequest, resp.Code)

	feature := `{"type":"Feature","properties":{"name":"Canal"},"geometry":{"type":"LineString","coordinates":[[4.1,52.1],[4.2,52.2]]}}`
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req routes.CreateRequest) (routes.Route, error) {
		r.Equal("Canal", req.Name)
		r.Equal("LineString", req.Geometry.Type)
		r.Len(req.Geometry.Coordinates, 2)
		return routes.Route{ID: "c1", Name: req.Name}, nil
	})
	resp = serve(handler, http.MethodPost, "/api/routes/import", feature)
	r.Equal(http.StatusCreated, resp.Code)

	collection := `{"type":"FeatureCollection","features":[` +
		`{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[0,0]}},` + feature + `]}`
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req routes.CreateRequest) (routes.Route, error) {
		r.Equal("Override", req.Name)
		return routes.Route{ID: "c2", Name: req.Name}, nil
	})
	resp = serve(handler, http.MethodPost, "/api/routes/import?name=Override", collection)
	r.Equal(http.StatusCreated, resp.Code)
}

func TestHTTPRoutesDisabledWithoutRepository(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{})

	if resp := serve(handler, http.MethodGet, "/api/routes", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a repository, got %d", resp.Code)
	}
}

func TestHTTPRoomControl(t *testing.T) {
	r := require.New(t)
	hub := newTestHub(t)
	handler := NewHTTPHandler(hub, HTTPHandlerConfig{})

	resp := serve(handler, http.MethodPost, "/api/simulate/loop/start", "")
	r.Equal(http.StatusNotFound, resp.Code)
	r.Equal("No active room", decodeError(t, resp))

	joinRoom(t, hub, "loop")

	resp = serve(handler, http.MethodPost, "/api/simulate/loop/start", "")
	r.Equal(http.StatusOK, resp.Code)
	var state roomStateJSON
	r.NoError(json.Unmarshal(resp.Body.Bytes(), &state))
	r.True(state.Playing)
	r.Equal("loop", state.RouteID)
	r.Equal(1, state.SubscriberCount)

	resp = serve(handler, http.MethodPost, "/api/simulate/loop/pause", "")
	r.Equal(http.StatusOK, resp.Code)
	r.NoError(json.Unmarshal(resp.Body.Bytes(), &state))
	r.False(state.Playing)

	resp = serve(handler, http.MethodPost, "/api/simulate/loop/reset", "")
	r.Equal(http.StatusOK, resp.Code)

	resp = serve(handler, http.MethodPost, "/api/simulate/loop/rewind", "")
	r.Equal(http.StatusNotFound, resp.Code)

	resp = serve(handler, http.MethodGet, "/api/simulate/rooms", "")
	r.Equal(http.StatusOK, resp.Code)
	r.JSONEq(`[{"routeId":"loop","subscriberCount":1,"playing":false,"index":0}]`, resp.Body.String())
}

func TestHTTPWebsocketGreets(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read welcome: %v", err)
	}
	if !strings.Contains(string(data), `"type":"welcome"`) {
		t.Fatalf("expected welcome, got %s", data)
	}
}
