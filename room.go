package server

import (
	"context"
	"sync"
	"time"

	"routesim/server/internal/geo"
	"routesim/server/internal/net/proto"
	"routesim/server/internal/telemetry"
	"routesim/server/logging"
	"routesim/server/logging/playback"
)

// roomEnv is shared by every room of a registry.
type roomEnv struct {
	cfg      HubConfig
	counters *telemetry.Counters
	// expire is invoked by the grace timer with the emptiness generation it was armed for.
	expire func(r *Room, gen uint64)
}

// Room is the shared playback state of one route. Every field is guarded by mu,
// and every broadcast is queued while mu is held so subscribers observe events
// in the order they were produced.
type Room struct {
	mu sync.Mutex

	routeID      string
	coords       geo.Polyline
	index        int
	speed        float64
	segmentStart time.Time
	playing      bool
	subscribers  map[*Session]struct{}
	createdAt    time.Time

	emptySince time.Time
	emptyGen   uint64
	graceTimer *time.Timer
	ticks      uint64
	driver     *periodicTask
	closed     bool

	env *roomEnv
}

// RoomState is a point-in-time copy of a room.
type RoomState struct {
	RouteID         string
	Index           int
	Speed           float64
	Playing         bool
	SubscriberCount int
	Position        geo.Point
	SegmentStart    time.Time
	CreatedAt       time.Time
	Ticks           uint64
}

func newRoom(routeID string, coords geo.Polyline, speed float64, env *roomEnv) *Room {
	now := env.cfg.Clock.Now()
	return &Room{
		routeID:      routeID,
		coords:       coords,
		speed:        speed,
		segmentStart: now,
		subscribers:  make(map[*Session]struct{}),
		createdAt:    now,
		emptySince:   now,
		env:          env,
	}
}

func (r *Room) RouteID() string {
	return r.routeID
}

func (r *Room) State() RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomState{
		RouteID:         r.routeID,
		Index:           r.index,
		Speed:           r.speed,
		Playing:         r.playing,
		SubscriberCount: len(r.subscribers),
		Position:        r.coords[r.index],
		SegmentStart:    r.segmentStart,
		CreatedAt:       r.createdAt,
		Ticks:           r.ticks,
	}
}

func (r *Room) summary() proto.RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return proto.RoomSummary{
		RouteID:         r.routeID,
		SubscriberCount: len(r.subscribers),
		Playing:         r.playing,
		Index:           r.index,
	}
}

// subscribe attaches s and greets it with the current shared position. It
// reports false when the room was removed from the registry in the meantime.
func (r *Room) subscribe(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	if r.graceTimer != nil {
		r.graceTimer.Stop()
		r.graceTimer = nil
	}
	r.subscribers[s] = struct{}{}
	s.setRoom(r)

	count := len(r.subscribers)
	s.sendEvent(proto.TypeJoined, proto.JoinedPayload{
		RouteID:         r.routeID,
		Position:        r.coords[r.index],
		Index:           r.index,
		Playing:         r.playing,
		SubscriberCount: count,
	})
	r.broadcastLocked(s, proto.TypeSubscriberUpdate, proto.SubscriberUpdatePayload{SubscriberCount: count})
	return true
}

// unsubscribe detaches s. When the last subscriber leaves the grace timer is
// armed; it only removes the room if nobody joined in between.
func (r *Room) unsubscribe(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subscribers[s]; !ok {
		return false
	}
	delete(r.subscribers, s)

	if remaining := len(r.subscribers); remaining > 0 {
		r.broadcastLocked(nil, proto.TypeSubscriberUpdate, proto.SubscriberUpdatePayload{SubscriberCount: remaining})
		return true
	}
	r.emptySince = r.env.cfg.Clock.Now()
	r.emptyGen++
	if r.closed || r.env.expire == nil {
		return true
	}
	gen := r.emptyGen
	if r.graceTimer != nil {
		r.graceTimer.Stop()
	}
	r.graceTimer = time.AfterFunc(r.env.cfg.GracePeriod, func() {
		r.env.expire(r, gen)
	})
	return true
}

// expired reports whether the room has stayed empty since generation gen.
func (r *Room) expired(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers) == 0 && r.emptyGen == gen
}

// idleFor reports how long the room has been without subscribers.
func (r *Room) idleFor(now time.Time) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.subscribers) > 0 {
		return 0, false
	}
	return now.Sub(r.emptySince), true
}

func (r *Room) start(by string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.playing {
		return false
	}
	r.playing = true
	r.segmentStart = r.env.cfg.Clock.Now()
	r.driver = startPeriodic(r.env.cfg.TickInterval, r.onTick)
	r.broadcastLocked(nil, proto.TypeStarted, proto.StartedPayload{Playing: true, StartedBy: by})
	playback.Started(context.Background(), r.env.cfg.Publisher, r.ticks, logging.RoomRef(r.routeID), r.controlLocked(by))
	return true
}

func (r *Room) pause(by string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || !r.playing {
		return false
	}
	r.stopDriverLocked()
	r.playing = false
	r.broadcastLocked(nil, proto.TypePaused, proto.PausedPayload{Playing: false, PausedBy: by})
	playback.Paused(context.Background(), r.env.cfg.Publisher, r.ticks, logging.RoomRef(r.routeID), r.controlLocked(by))
	return true
}

func (r *Room) reset(by string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.stopDriverLocked()
	r.index = 0
	r.segmentStart = r.env.cfg.Clock.Now()
	r.playing = false
	r.broadcastLocked(nil, proto.TypeResetDone, proto.ResetPayload{
		Position: r.coords[0],
		Index:    0,
		Playing:  false,
		ResetBy:  by,
	})
	playback.Reset(context.Background(), r.env.cfg.Publisher, r.ticks, logging.RoomRef(r.routeID), r.controlLocked(by))
	return true
}

// setSpeed changes the speed in place. segmentStart is kept, so the new value
// applies to the current segment from the next tick on.
func (r *Room) setSpeed(v float64, by string) error {
	if !validSpeed(v) {
		return ErrInvalidSpeed
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.speed = v
	r.broadcastLocked(nil, proto.TypeSpeedChanged, proto.SpeedChangedPayload{Speed: v, ChangedBy: by})
	playback.SpeedChanged(context.Background(), r.env.cfg.Publisher, r.ticks, logging.RoomRef(r.routeID), r.controlLocked(by))
	return nil
}

// onTick is the driver callback. Ticks from a task that is no longer the
// room's driver are discarded, which covers a tick racing a pause or removal.
func (r *Room) onTick(task *periodicTask) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || !r.playing || r.driver != task || task.stopped() {
		return
	}
	r.tickLocked(r.env.cfg.Clock.Now())
}

// tickLocked advances playback to now. At most one segment boundary is crossed
// per call.
func (r *Room) tickLocked(now time.Time) {
	r.ticks++
	r.env.counters.Add(metricTicks, 1)

	if r.index+1 >= len(r.coords) {
		r.endLocked()
		return
	}
	from, to := r.coords[r.index], r.coords[r.index+1]
	durationMs := r.segmentMillis(from, to)
	elapsedMs := millisSince(r.segmentStart, now)

	if elapsedMs >= durationMs {
		r.index++
		r.segmentStart = now
		if r.index+1 >= len(r.coords) {
			r.endLocked()
			return
		}
		from, to = r.coords[r.index], r.coords[r.index+1]
		durationMs = r.segmentMillis(from, to)
		elapsedMs = 0
	}

	t := 1.0
	if durationMs > 0 {
		t = min(elapsedMs/durationMs, 1)
	}
	r.broadcastLocked(nil, proto.TypeStatus, proto.StatusPayload{
		Position:        geo.Interpolate(from, to, t),
		Index:           r.index,
		Playing:         r.playing,
		SubscriberCount: len(r.subscribers),
	})
}

// segmentMillis is kept in float milliseconds; slow speeds on long segments
// overflow time.Duration.
func (r *Room) segmentMillis(from, to geo.Point) float64 {
	return geo.Distance(from, to) / r.speed * 1000
}

func millisSince(start, now time.Time) float64 {
	return float64(now.Sub(start)) / float64(time.Millisecond)
}

func (r *Room) endLocked() {
	r.stopDriverLocked()
	r.playing = false
	r.env.counters.Add(metricPlaybackEnded, 1)
	r.broadcastLocked(nil, proto.TypeEnd, nil)
	playback.Ended(context.Background(), r.env.cfg.Publisher, r.ticks, logging.RoomRef(r.routeID), r.controlLocked(""))
}

func (r *Room) stopDriverLocked() {
	if r.driver == nil {
		return
	}
	r.driver.Stop()
	r.driver = nil
}

// close stops the driver and the grace timer and marks the room dead. The
// returned task, if any, can be waited on outside the lock.
func (r *Room) close() *periodicTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	task := r.driver
	r.stopDriverLocked()
	r.playing = false
	r.closed = true
	if r.graceTimer != nil {
		r.graceTimer.Stop()
		r.graceTimer = nil
	}
	return task
}

func (r *Room) controlLocked(by string) playback.ControlPayload {
	return playback.ControlPayload{By: by, Index: r.index, Speed: r.speed}
}
