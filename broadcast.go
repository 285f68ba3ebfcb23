package server

import (
	"routesim/server/internal/net/proto"
)

// broadcastLocked encodes the event once and queues the frame for every
// subscriber except skip. r.mu must be held. A subscriber that cannot take the
// frame is dropped by its own close path, never here.
func (r *Room) broadcastLocked(skip *Session, eventType string, payload any) int {
	if len(r.subscribers) == 0 {
		return 0
	}
	data, err := proto.Encode(eventType, payload)
	if err != nil {
		r.env.cfg.Logger.Printf("room %s: failed to encode %s: %v", r.routeID, eventType, err)
		return 0
	}
	delivered := fanOut(r.subscribers, skip, data)
	r.env.counters.Add(metricBroadcasts, 1)
	return delivered
}

func fanOut(subscribers map[*Session]struct{}, skip *Session, data []byte) int {
	delivered := 0
	for s := range subscribers {
		if s == skip {
			continue
		}
		if s.enqueue(data) {
			delivered++
		}
	}
	return delivered
}
