package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"routesim/server/internal/geo"
	"routesim/server/internal/routes"
)

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStubClock() *stubClock {
	return &stubClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Message string          `json:"message"`
}

type recordingConn struct {
	mu        sync.Mutex
	frames    []frame
	closed    bool
	failWrite bool
}

func (c *recordingConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	if c.failWrite {
		return errors.New("broken pipe")
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *recordingConn) SetWriteDeadline(time.Time) error { return nil }

func (c *recordingConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *recordingConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *recordingConn) snapshot() []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]frame(nil), c.frames...)
}

func (c *recordingConn) ofType(eventType string) []frame {
	var out []frame
	for _, f := range c.snapshot() {
		if f.Type == eventType {
			out = append(out, f)
		}
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// waitFrames waits until conn has received at least n frames of eventType.
func waitFrames(t *testing.T, conn *recordingConn, eventType string, n int) []frame {
	t.Helper()
	waitFor(t, eventType+" frames", func() bool { return len(conn.ofType(eventType)) >= n })
	return conn.ofType(eventType)
}

func decode[T any](t *testing.T, f frame) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(f.Payload, &v); err != nil {
		t.Fatalf("decode %s payload %s: %v", f.Type, f.Payload, err)
	}
	return v
}

// kilometerRoute has two segments of roughly 1000.75 m each.
var kilometerRoute = geo.Polyline{{Lon: 0, Lat: 0}, {Lon: 0, Lat: 0.009}, {Lon: 0, Lat: 0.018}}

type countingLoader struct {
	calls  atomic.Int32
	routes map[string]geo.Polyline
	err    error
	gate   chan struct{}
}

func (l *countingLoader) LoadPolyline(_ context.Context, id string) (geo.Polyline, error) {
	l.calls.Add(1)
	if l.gate != nil {
		<-l.gate
	}
	if l.err != nil {
		return nil, l.err
	}
	line, ok := l.routes[id]
	if !ok {
		return nil, routes.ErrNotFound
	}
	return line, nil
}

func newTestLoader() *countingLoader {
	return &countingLoader{routes: map[string]geo.Polyline{
		"km":     kilometerRoute,
		"short":  {{Lon: 0, Lat: 0}, {Lon: 0, Lat: 0.0001}},
		"single": {{Lon: 1, Lat: 1}},
	}}
}

// newTestHub returns a hub whose drivers never fire on their own; tests call
// fire to run a tick at the stub clock's time.
func newTestHub(t *testing.T, loader routes.PolylineLoader, clock *stubClock) *Hub {
	t.Helper()
	cfg := DefaultHubConfig()
	cfg.TickInterval = time.Hour
	cfg.Clock = clock
	hub := NewHub(loader, cfg)
	t.Cleanup(func() { _ = hub.Close(context.Background()) })
	return hub
}

func connect(t *testing.T, hub *Hub) (*Session, *recordingConn) {
	t.Helper()
	conn := &recordingConn{}
	s, err := hub.Connect(conn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFrames(t, conn, "welcome", 1)
	return s, conn
}

func join(t *testing.T, hub *Hub, s *Session, routeID string) *Room {
	t.Helper()
	if err := hub.Join(context.Background(), s, routeID, nil); err != nil {
		t.Fatalf("join %s: %v", routeID, err)
	}
	room := hub.Registry().Get(routeID)
	if room == nil {
		t.Fatalf("room %s not registered after join", routeID)
	}
	return room
}

// fire runs one driver tick if the room is still playing.
func fire(r *Room) {
	r.mu.Lock()
	task := r.driver
	r.mu.Unlock()
	if task != nil {
		r.onTick(task)
	}
}
