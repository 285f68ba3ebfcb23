package playback

import (
	"context"

	"routesim/server/logging"
)

const (
	EventStarted      logging.EventType = "playback.started"
	EventPaused       logging.EventType = "playback.paused"
	EventReset        logging.EventType = "playback.reset"
	EventSpeedChanged logging.EventType = "playback.speed_changed"
	// EventEnded is emitted once when a room reaches the final coordinate.
	EventEnded logging.EventType = "playback.ended"
)

// ControlPayload describes who changed a room and where playback stood.
type ControlPayload struct {
	By    string  `json:"by"`
	Index int     `json:"index"`
	Speed float64 `json:"speed"`
}

func Started(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ControlPayload) {
	publish(ctx, pub, EventStarted, logging.SeverityInfo, tick, actor, payload)
}

func Paused(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ControlPayload) {
	publish(ctx, pub, EventPaused, logging.SeverityInfo, tick, actor, payload)
}

func Reset(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ControlPayload) {
	publish(ctx, pub, EventReset, logging.SeverityInfo, tick, actor, payload)
}

func SpeedChanged(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ControlPayload) {
	publish(ctx, pub, EventSpeedChanged, logging.SeverityDebug, tick, actor, payload)
}

func Ended(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ControlPayload) {
	publish(ctx, pub, EventEnded, logging.SeverityInfo, tick, actor, payload)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, tick uint64, actor logging.EntityRef, payload ControlPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: "playback",
		Payload:  payload,
	})
}
