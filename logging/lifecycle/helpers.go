package lifecycle

import (
	"context"

	"routesim/server/logging"
)

const (
	// EventSessionConnected is emitted when a websocket client is accepted.
	EventSessionConnected logging.EventType = "lifecycle.session_connected"
	// EventSessionDisconnected is emitted when a websocket client goes away.
	EventSessionDisconnected logging.EventType = "lifecycle.session_disconnected"
	// EventRoomCreated is emitted when the first subscriber materialises a room.
	EventRoomCreated logging.EventType = "lifecycle.room_created"
	// EventRoomRemoved is emitted when a room is dropped from the registry.
	EventRoomRemoved logging.EventType = "lifecycle.room_removed"
)

type SessionDisconnectedPayload struct {
	Reason string `json:"reason"`
}

type RoomCreatedPayload struct {
	Points int     `json:"points"`
	Speed  float64 `json:"speed"`
}

type RoomRemovedPayload struct {
	Reason string `json:"reason"`
}

func SessionConnected(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, extra map[string]any) {
	publish(ctx, pub, logging.Event{
		Type:     EventSessionConnected,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Extra:    extra,
	})
}

func SessionDisconnected(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload SessionDisconnectedPayload, extra map[string]any) {
	publish(ctx, pub, logging.Event{
		Type:     EventSessionDisconnected,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Payload:  payload,
		Extra:    extra,
	})
}

func RoomCreated(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload RoomCreatedPayload, extra map[string]any) {
	publish(ctx, pub, logging.Event{
		Type:     EventRoomCreated,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Payload:  payload,
		Extra:    extra,
	})
}

func RoomRemoved(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload RoomRemovedPayload, extra map[string]any) {
	publish(ctx, pub, logging.Event{
		Type:     EventRoomRemoved,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Payload:  payload,
		Extra:    extra,
	})
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	event.Category = "lifecycle"
	pub.Publish(ctx, event)
}
