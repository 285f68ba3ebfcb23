//go:generate go run go.uber.org/mock/mockgen -source=dispatcher.go -destination=../../../mocks/mock_command_hub.go -package=mocks
package intake

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"routesim/server"
	"routesim/server/internal/net/proto"
	"routesim/server/logging"
	"routesim/server/logging/network"
)

// ErrMalformedCommand reports an inbound frame that is not valid JSON, has no
// type, or carries a payload of the wrong shape.
var ErrMalformedCommand = errors.New("malformed command")

// CommandHub is the part of the engine commands are routed to.
type CommandHub interface {
	Join(ctx context.Context, s *server.Session, routeID string, speed *float64) error
	Leave(s *server.Session)
	Start(s *server.Session, by string)
	Pause(s *server.Session, by string)
	Reset(s *server.Session, by string)
	SetSpeed(s *server.Session, speed float64, by string) error
}

// Dispatcher decodes client frames and invokes the matching hub operation.
// Frames with an unknown type are dropped without an error.
type Dispatcher struct {
	hub       CommandHub
	publisher logging.Publisher
	validate  *validator.Validate
}

func NewDispatcher(hub CommandHub, publisher logging.Publisher) *Dispatcher {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Dispatcher{hub: hub, publisher: publisher, validate: validator.New()}
}

// Dispatch handles one raw frame from s. The returned error, if any, is meant
// for the client; the connection stays open either way.
func (d *Dispatcher) Dispatch(ctx context.Context, s *server.Session, raw []byte) error {
	msg, err := proto.DecodeClientMessage(raw)
	if err != nil {
		return d.malformed(ctx, s, "", len(raw), err)
	}

	switch msg.Type {
	case proto.TypeJoin:
		var payload proto.JoinPayload
		if err := msg.DecodePayload(&payload); err != nil {
			return d.malformed(ctx, s, msg.Type, len(raw), err)
		}
		if err := d.validate.Struct(payload); err != nil {
			return d.malformed(ctx, s, msg.Type, len(raw), err)
		}
		return d.hub.Join(ctx, s, string(payload.RouteID), payload.Speed)
	case proto.TypeLeave:
		d.hub.Leave(s)
	case proto.TypeStart:
		d.hub.Start(s, server.ByUser)
	case proto.TypePause:
		d.hub.Pause(s, server.ByUser)
	case proto.TypeReset:
		d.hub.Reset(s, server.ByUser)
	case proto.TypeSpeedChange:
		var payload proto.SpeedPayload
		if err := msg.DecodePayload(&payload); err != nil {
			return d.malformed(ctx, s, msg.Type, len(raw), err)
		}
		// A missing speed is treated like a non-positive one.
		speed := 0.0
		if payload.Speed != nil {
			speed = *payload.Speed
		}
		return d.hub.SetSpeed(s, speed, server.ByUser)
	default:
		network.UnknownCommand(ctx, d.publisher, sessionRef(s), network.CommandPayload{Type: msg.Type, Bytes: len(raw)})
	}
	return nil
}

func (d *Dispatcher) malformed(ctx context.Context, s *server.Session, msgType string, size int, cause error) error {
	network.MalformedCommand(ctx, d.publisher, sessionRef(s), network.CommandPayload{Type: msgType, Error: cause.Error(), Bytes: size})
	return fmt.Errorf("%w: %v", ErrMalformedCommand, cause)
}

// ErrorMessage maps a dispatch error onto the client-facing error message.
func ErrorMessage(err error) string {
	if errors.Is(err, ErrMalformedCommand) {
		return proto.MessageMalformedCommand
	}
	return server.WireMessage(err)
}

func sessionRef(s *server.Session) logging.EntityRef {
	if s == nil {
		return logging.EntityRef{Kind: logging.EntityKindSession}
	}
	return logging.SessionRef(s.ID())
}
