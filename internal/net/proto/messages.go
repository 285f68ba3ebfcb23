package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"routesim/server/internal/geo"
)

// Client message type identifiers.
const (
	TypeJoin        = "join"
	TypeLeave       = "leave"
	TypeStart       = "start"
	TypePause       = "pause"
	TypeReset       = "reset"
	TypeSpeedChange = "speed_change"
)

// Outbound event type identifiers.
const (
	TypeWelcome          = "welcome"
	TypeJoined           = "joined"
	TypeLeft             = "left"
	TypeStatus           = "status"
	TypeStarted          = "started"
	TypePaused           = "paused"
	TypeResetDone        = "reset"
	TypeSpeedChanged     = "speed_changed"
	TypeSubscriberUpdate = "subscriber_update"
	TypeEnd              = "end"
	TypeError            = "error"
)

var errEmptyType = errors.New("message type is required")

// ClientMessage captures an inbound websocket message. Payload stays raw until
// the dispatcher knows which shape to expect.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeClientMessage converts a raw websocket frame into a ClientMessage.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, err
	}
	msg.Type = strings.TrimSpace(msg.Type)
	if msg.Type == "" {
		return msg, errEmptyType
	}
	return msg, nil
}

// DecodePayload unmarshals the message payload into dst. A missing payload
// decodes as an empty object.
func (m ClientMessage) DecodePayload(dst any) error {
	raw := bytes.TrimSpace(m.Payload)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}
	return json.Unmarshal(raw, dst)
}

// RouteRef is a route identifier as sent by clients. Both JSON strings and
// JSON numbers are accepted and normalized to their string form.
type RouteRef string

func (r *RouteRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = RouteRef(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("routeId must be a string or number: %w", err)
	}
	*r = RouteRef(n.String())
	return nil
}

// JoinPayload is the payload of a join command.
type JoinPayload struct {
	RouteID RouteRef `json:"routeId" validate:"required"`
	Speed   *float64 `json:"speed,omitempty"`
}

// SpeedPayload is the payload of a speed_change command.
type SpeedPayload struct {
	Speed *float64 `json:"speed"`
}

// Envelope is the outbound frame layout. Errors carry Message, every other
// event carries an optional Payload.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
	Message string `json:"message,omitempty"`
}

// RoomSummary describes a live room in welcome frames and diagnostics.
type RoomSummary struct {
	RouteID         string `json:"routeId"`
	SubscriberCount int    `json:"subscriberCount"`
	Playing         bool   `json:"playing"`
	Index           int    `json:"index"`
}

type WelcomePayload struct {
	ActiveRooms []RoomSummary `json:"activeRooms"`
}

type JoinedPayload struct {
	RouteID         string    `json:"routeId"`
	Position        geo.Point `json:"position"`
	Index           int       `json:"index"`
	Playing         bool      `json:"playing"`
	SubscriberCount int       `json:"subscriberCount"`
}

type StatusPayload struct {
	Position        geo.Point `json:"position"`
	Index           int       `json:"index"`
	Playing         bool      `json:"playing"`
	SubscriberCount int       `json:"subscriberCount"`
}

type StartedPayload struct {
	Playing   bool   `json:"playing"`
	StartedBy string `json:"startedBy"`
}

type PausedPayload struct {
	Playing  bool   `json:"playing"`
	PausedBy string `json:"pausedBy"`
}

type ResetPayload struct {
	Position geo.Point `json:"position"`
	Index    int       `json:"index"`
	Playing  bool      `json:"playing"`
	ResetBy  string    `json:"resetBy"`
}

type SpeedChangedPayload struct {
	Speed     float64 `json:"speed"`
	ChangedBy string  `json:"changedBy"`
}

type SubscriberUpdatePayload struct {
	SubscriberCount int `json:"subscriberCount"`
}

// Encode renders an event frame.
func Encode(eventType string, payload any) ([]byte, error) {
	return json.Marshal(Envelope{Type: eventType, Payload: payload})
}

// EncodeError renders an error frame with a client-facing message.
func EncodeError(message string) ([]byte, error) {
	return json.Marshal(Envelope{Type: TypeError, Message: message})
}

// Client-facing error messages.
const (
	MessageRouteNotFound    = "Route not found"
	MessageInvalidSpeed     = "Invalid speed"
	MessageMalformedCommand = "Invalid message format"
	MessageInternalError    = "Internal error"
)
