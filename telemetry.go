package server

import "routesim/server/internal/telemetry"

// Counter keys exposed on /diagnostics.
const (
	metricSessionsOpened  = "sessions_opened"
	metricSessionsClosed  = "sessions_closed"
	metricSessionsActive  = "sessions_active"
	metricRoomsCreated    = "rooms_created"
	metricRoomsRemoved    = "rooms_removed"
	metricRoomsActive     = "rooms_active"
	metricTicks           = "ticks"
	metricBroadcasts      = "broadcasts"
	metricFramesQueued    = "frames_queued"
	metricFramesDropped   = "frames_dropped"
	metricBytesQueued     = "bytes_queued"
	metricCommandsRefused = "commands_refused"
	metricPlaybackEnded   = "playback_ended"
)

// Telemetry returns a copy of the engine counters.
func (h *Hub) Telemetry() map[string]uint64 {
	return h.counters.Snapshot()
}

// Counters exposes the live counter set so transports can add their own keys.
func (h *Hub) Counters() *telemetry.Counters {
	return h.counters
}
