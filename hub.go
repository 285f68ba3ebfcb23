package server

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"routesim/server/internal/net/proto"
	"routesim/server/internal/routes"
	"routesim/server/internal/telemetry"
	"routesim/server/logging"
	"routesim/server/logging/lifecycle"
)

// Hub is the engine entry point used by transports: it owns the room registry
// and the set of connected sessions and exposes the command surface.
type Hub struct {
	cfg      HubConfig
	registry *Registry
	counters *telemetry.Counters

	mu       sync.Mutex
	sessions map[string]*Session
	sweeper  *periodicTask
	closed   bool
}

func NewHub(loader routes.PolylineLoader, cfg HubConfig) *Hub {
	cfg = cfg.Normalized()
	counters := telemetry.NewCounters()
	return &Hub{
		cfg:      cfg,
		registry: NewRegistry(loader, cfg, counters),
		counters: counters,
		sessions: make(map[string]*Session),
	}
}

func (h *Hub) Config() HubConfig {
	return h.cfg
}

func (h *Hub) Registry() *Registry {
	return h.registry
}

// StartSweeper launches the idle sweep. It is a no-op when already running.
func (h *Hub) StartSweeper() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.sweeper != nil {
		return
	}
	h.sweeper = startPeriodic(h.cfg.SweepInterval, func(*periodicTask) {
		if removed := h.registry.Sweep(); len(removed) > 0 {
			h.cfg.Logger.Printf("idle sweep removed %d rooms: %s", len(removed), strings.Join(removed, ","))
		}
	})
}

// Connect registers a new session for conn and greets it with the active rooms.
func (h *Hub) Connect(conn Transport) (*Session, error) {
	s := newSession(conn, h.cfg, h.counters)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.Close()
		return nil, ErrHubClosed
	}
	h.sessions[s.id] = s
	h.counters.Store(metricSessionsActive, uint64(len(h.sessions)))
	h.mu.Unlock()

	h.counters.Add(metricSessionsOpened, 1)
	lifecycle.SessionConnected(context.Background(), h.cfg.Publisher, logging.SessionRef(s.id), nil)
	s.sendEvent(proto.TypeWelcome, proto.WelcomePayload{ActiveRooms: h.Snapshot()})
	return s, nil
}

// Join moves s into the room for routeID, creating the room on first use.
// On failure s is left without a room and the error is returned for the
// transport to report.
func (h *Hub) Join(ctx context.Context, s *Session, routeID string, speed *float64) error {
	initial := h.cfg.DefaultSpeed
	if speed != nil {
		if !validSpeed(*speed) {
			return ErrInvalidSpeed
		}
		initial = *speed
	}
	h.detach(s)

	for attempt := 0; attempt < joinAttempts; attempt++ {
		room, _, err := h.registry.GetOrCreate(ctx, routeID, initial)
		if err != nil {
			return err
		}
		if room.subscribe(s) {
			return nil
		}
	}
	return fmt.Errorf("%w: room %s kept closing during join", ErrInternalFault, routeID)
}

// Leave unsubscribes s and always acknowledges with left.
func (h *Hub) Leave(s *Session) {
	h.detach(s)
	s.sendEvent(proto.TypeLeft, nil)
}

func (h *Hub) detach(s *Session) {
	if room := s.takeRoom(); room != nil {
		room.unsubscribe(s)
	}
}

// Start, Pause, Reset and SetSpeed act on the session's current room and are
// silently ignored when the session has none.

func (h *Hub) Start(s *Session, by string) {
	if room := s.currentRoom(); room != nil {
		room.start(by)
	}
}

func (h *Hub) Pause(s *Session, by string) {
	if room := s.currentRoom(); room != nil {
		room.pause(by)
	}
}

func (h *Hub) Reset(s *Session, by string) {
	if room := s.currentRoom(); room != nil {
		room.reset(by)
	}
}

func (h *Hub) SetSpeed(s *Session, speed float64, by string) error {
	room := s.currentRoom()
	if room == nil {
		return nil
	}
	return room.setSpeed(speed, by)
}

// StartRoom, PauseRoom and ResetRoom drive a live room without a session.

func (h *Hub) StartRoom(routeID, by string) error {
	return h.withRoom(routeID, func(r *Room) { r.start(by) })
}

func (h *Hub) PauseRoom(routeID, by string) error {
	return h.withRoom(routeID, func(r *Room) { r.pause(by) })
}

func (h *Hub) ResetRoom(routeID, by string) error {
	return h.withRoom(routeID, func(r *Room) { r.reset(by) })
}

func (h *Hub) withRoom(routeID string, fn func(*Room)) error {
	room := h.registry.Get(routeID)
	if room == nil {
		return ErrNoActiveRoom
	}
	fn(room)
	return nil
}

// RoomState returns a copy of the live room for routeID.
func (h *Hub) RoomState(routeID string) (RoomState, bool) {
	room := h.registry.Get(routeID)
	if room == nil {
		return RoomState{}, false
	}
	return room.State(), true
}

// SendError reports err to the session as an error frame.
func (h *Hub) SendError(s *Session, message string) {
	h.counters.Add(metricCommandsRefused, 1)
	s.sendError(message)
}

// Disconnect performs leave without the acknowledgement and forgets s.
func (h *Hub) Disconnect(s *Session, reason string) {
	h.detach(s)
	h.mu.Lock()
	_, known := h.sessions[s.id]
	delete(h.sessions, s.id)
	h.counters.Store(metricSessionsActive, uint64(len(h.sessions)))
	h.mu.Unlock()
	s.Close()
	if !known {
		return
	}
	h.counters.Add(metricSessionsClosed, 1)
	lifecycle.SessionDisconnected(context.Background(), h.cfg.Publisher, logging.SessionRef(s.id), lifecycle.SessionDisconnectedPayload{Reason: reason}, nil)
}

func (h *Hub) Snapshot() []RoomSummary {
	return h.registry.Snapshot()
}

func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close stops the sweep, stops and drops every room, then closes every
// session. It waits for running drivers to exit or ctx to expire.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	sweeper := h.sweeper
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	sweeper.Stop()
	tasks := h.registry.CloseAll()
	if sweeper != nil {
		tasks = append(tasks, sweeper)
	}
	for _, s := range sessions {
		s.Close()
	}
	for _, task := range tasks {
		select {
		case <-task.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
