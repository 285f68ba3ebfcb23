package server

import (
	"errors"

	"routesim/server/internal/net/proto"
)

var (
	// ErrRouteNotFound reports a join against a route storage does not know.
	ErrRouteNotFound = errors.New("route not found")
	// ErrInvalidSpeed reports a non-positive or non-finite speed.
	ErrInvalidSpeed = errors.New("invalid speed")
	// ErrInternalFault wraps unexpected polyline loading failures.
	ErrInternalFault = errors.New("internal fault")
	// ErrNoActiveRoom is returned by operator commands addressing a route without a live room.
	ErrNoActiveRoom = errors.New("no active room for route")
	// ErrHubClosed is returned once the hub has been shut down.
	ErrHubClosed = errors.New("hub closed")
)

// WireMessage maps an engine error onto the message sent in an error frame.
// Causes wrapped in ErrInternalFault never reach the client.
func WireMessage(err error) string {
	switch {
	case errors.Is(err, ErrRouteNotFound):
		return proto.MessageRouteNotFound
	case errors.Is(err, ErrInvalidSpeed):
		return proto.MessageInvalidSpeed
	default:
		return proto.MessageInternalError
	}
}
