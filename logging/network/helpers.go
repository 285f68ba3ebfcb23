package network

import (
	"context"

	"routesim/server/logging"
)

const (
	// EventMalformedCommand is emitted when an inbound frame cannot be decoded.
	EventMalformedCommand logging.EventType = "network.malformed_command"
	// EventUnknownCommand is emitted for well-formed frames with an unrecognised type.
	EventUnknownCommand logging.EventType = "network.unknown_command"
	// EventSendOverflow is emitted when a slow client's outbound buffer fills up.
	EventSendOverflow logging.EventType = "network.send_overflow"
	// EventWriteFailed is emitted when writing a frame to a client fails.
	EventWriteFailed logging.EventType = "network.write_failed"
)

type CommandPayload struct {
	Type  string `json:"type,omitempty"`
	Error string `json:"error,omitempty"`
	Bytes int    `json:"bytes"`
}

type DeliveryPayload struct {
	Error    string `json:"error,omitempty"`
	Buffered int    `json:"buffered"`
}

func MalformedCommand(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload CommandPayload) {
	publish(ctx, pub, EventMalformedCommand, logging.SeverityWarn, actor, payload)
}

func UnknownCommand(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload CommandPayload) {
	publish(ctx, pub, EventUnknownCommand, logging.SeverityDebug, actor, payload)
}

func SendOverflow(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload DeliveryPayload) {
	publish(ctx, pub, EventSendOverflow, logging.SeverityWarn, actor, payload)
}

func WriteFailed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload DeliveryPayload) {
	publish(ctx, pub, EventWriteFailed, logging.SeverityWarn, actor, payload)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, actor logging.EntityRef, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Actor:    actor,
		Severity: severity,
		Category: "network",
		Payload:  payload,
	})
}
