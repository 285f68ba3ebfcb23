package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"

	"routesim/server/internal/geo"
	"routesim/server/internal/net/proto"
	"routesim/server/internal/routes"
	"routesim/server/internal/telemetry"
	"routesim/server/logging"
	"routesim/server/logging/lifecycle"
)

// Reasons reported when a room leaves the registry.
const (
	RemovedGrace    = "grace"
	RemovedIdle     = "idle"
	RemovedShutdown = "shutdown"
	RemovedManual   = "manual"
)

// Registry owns the routeID to Room mapping. It is the only place rooms are
// created or dropped. Lock order is Registry.mu before Room.mu.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	loader routes.PolylineLoader
	loads  singleflight.Group
	env    *roomEnv
	closed bool
}

func NewRegistry(loader routes.PolylineLoader, cfg HubConfig, counters *telemetry.Counters) *Registry {
	if counters == nil {
		counters = telemetry.NewCounters()
	}
	g := &Registry{
		rooms:  make(map[string]*Room),
		loader: loader,
	}
	g.env = &roomEnv{
		cfg:      cfg.Normalized(),
		counters: counters,
		expire:   g.expire,
	}
	return g
}

// Get returns the live room for routeID, or nil.
func (g *Registry) Get(routeID string) *Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rooms[routeID]
}

func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// GetOrCreate returns the room for routeID, loading its polyline on first use.
// The load runs without holding the registry lock; concurrent callers for the
// same route share it. Nothing is registered when the load fails or once
// CloseAll has run.
func (g *Registry) GetOrCreate(ctx context.Context, routeID string, initialSpeed float64) (*Room, bool, error) {
	g.mu.RLock()
	room, closed := g.rooms[routeID], g.closed
	g.mu.RUnlock()
	if closed {
		return nil, false, ErrHubClosed
	}
	if room != nil {
		return room, false, nil
	}
	v, err, _ := g.loads.Do(routeID, func() (any, error) {
		return g.load(ctx, routeID)
	})
	if err != nil {
		return nil, false, err
	}
	coords := v.(geo.Polyline)
	if !validSpeed(initialSpeed) {
		initialSpeed = g.env.cfg.DefaultSpeed
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, false, ErrHubClosed
	}
	if existing := g.rooms[routeID]; existing != nil {
		return existing, false, nil
	}
	room = newRoom(routeID, coords.Clone(), initialSpeed, g.env)
	g.rooms[routeID] = room
	g.env.counters.Add(metricRoomsCreated, 1)
	g.env.counters.Store(metricRoomsActive, uint64(len(g.rooms)))
	lifecycle.RoomCreated(context.Background(), g.env.cfg.Publisher, logging.RoomRef(routeID), lifecycle.RoomCreatedPayload{
		Points: len(coords),
		Speed:  initialSpeed,
	}, nil)
	return room, true, nil
}

func (g *Registry) load(ctx context.Context, routeID string) (geo.Polyline, error) {
	if g.loader == nil {
		return nil, fmt.Errorf("%w: no polyline loader configured", ErrInternalFault)
	}
	coords, err := g.loader.LoadPolyline(ctx, routeID)
	switch {
	case errors.Is(err, routes.ErrNotFound):
		return nil, ErrRouteNotFound
	case err != nil:
		return nil, fmt.Errorf("%w: load route %s: %v", ErrInternalFault, routeID, err)
	}
	if err := coords.Validate(); err != nil {
		return nil, fmt.Errorf("%w: route %s: %v", ErrInternalFault, routeID, err)
	}
	return coords, nil
}

// Remove stops the room's driver and drops the mapping. Removing an unknown
// route is a no-op.
func (g *Registry) Remove(routeID string) bool {
	g.mu.Lock()
	room := g.rooms[routeID]
	removed := room != nil && g.dropLocked(room, RemovedManual)
	g.mu.Unlock()
	return removed
}

// dropLocked stops the room before unmapping it so no tick can run against
// a room the registry no longer owns. g.mu must be held.
func (g *Registry) dropLocked(room *Room, reason string) bool {
	if g.rooms[room.routeID] != room {
		return false
	}
	room.close()
	delete(g.rooms, room.routeID)
	g.env.counters.Add(metricRoomsRemoved, 1)
	g.env.counters.Store(metricRoomsActive, uint64(len(g.rooms)))
	lifecycle.RoomRemoved(context.Background(), g.env.cfg.Publisher, logging.RoomRef(room.routeID), lifecycle.RoomRemovedPayload{Reason: reason}, nil)
	return true
}

// expire runs when a room's grace timer fires. The room is only dropped if it
// is still empty and nobody joined and left again in the meantime.
func (g *Registry) expire(room *Room, gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rooms[room.routeID] != room || !room.expired(gen) {
		return
	}
	g.dropLocked(room, RemovedGrace)
}

// Sweep drops every room that has had no subscribers for longer than the idle
// threshold and returns the removed route ids.
func (g *Registry) Sweep() []string {
	now := g.env.cfg.Clock.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	var removed []string
	for routeID, room := range g.rooms {
		idle, empty := room.idleFor(now)
		if !empty || idle <= g.env.cfg.IdleThreshold {
			continue
		}
		if g.dropLocked(room, RemovedIdle) {
			removed = append(removed, routeID)
		}
	}
	sort.Strings(removed)
	return removed
}

// Snapshot lists every live room ordered by route id.
func (g *Registry) Snapshot() []proto.RoomSummary {
	g.mu.RLock()
	rooms := lo.Values(g.rooms)
	g.mu.RUnlock()

	summaries := lo.Map(rooms, func(room *Room, _ int) proto.RoomSummary {
		return room.summary()
	})
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].RouteID < summaries[j].RouteID
	})
	return summaries
}

// CloseAll drops every room and returns their driver tasks so the caller can
// wait for them outside the lock. No room can be created afterwards.
func (g *Registry) CloseAll() []*periodicTask {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	var tasks []*periodicTask
	for _, room := range g.rooms {
		room.mu.Lock()
		task := room.driver
		room.mu.Unlock()
		if task != nil {
			tasks = append(tasks, task)
		}
		g.dropLocked(room, RemovedShutdown)
	}
	return tasks
}
