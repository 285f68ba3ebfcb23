package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"routesim/server/internal/net/proto"
	"routesim/server/internal/telemetry"
	"routesim/server/logging"
	"routesim/server/logging/network"
)

// Transport is the outbound half of a client connection. *websocket.Conn
// satisfies it.
type Transport interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Session is one client connection. Outbound frames go through a bounded queue
// drained by a single writer goroutine, so a slow client never stalls a room.
type Session struct {
	id        string
	conn      Transport
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	writeWait time.Duration

	logger    telemetry.Logger
	publisher logging.Publisher
	counters  *telemetry.Counters

	mu   sync.Mutex
	room *Room
}

func newSession(conn Transport, cfg HubConfig, counters *telemetry.Counters) *Session {
	s := &Session{
		id:        uuid.NewString(),
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		done:      make(chan struct{}),
		writeWait: cfg.WriteWait,
		logger:    cfg.Logger,
		publisher: cfg.Publisher,
		counters:  counters,
	}
	go s.writeLoop()
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Done is closed once the session has been closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// RouteID returns the route of the current room, or "" when unsubscribed.
func (s *Session) RouteID() string {
	if room := s.currentRoom(); room != nil {
		return room.routeID
	}
	return ""
}

func (s *Session) currentRoom() *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

func (s *Session) setRoom(r *Room) {
	s.mu.Lock()
	s.room = r
	s.mu.Unlock()
}

// takeRoom clears and returns the current room.
func (s *Session) takeRoom() *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.room
	s.room = nil
	return r
}

func (s *Session) sendEvent(eventType string, payload any) bool {
	data, err := proto.Encode(eventType, payload)
	if err != nil {
		s.logger.Printf("session %s: failed to encode %s: %v", s.id, eventType, err)
		return false
	}
	return s.enqueue(data)
}

func (s *Session) sendError(message string) bool {
	data, err := proto.EncodeError(message)
	if err != nil {
		return false
	}
	return s.enqueue(data)
}

// enqueue queues a frame without blocking. A full queue closes the session.
func (s *Session) enqueue(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		s.counters.Add(metricFramesQueued, 1)
		s.counters.Add(metricBytesQueued, uint64(len(data)))
		return true
	default:
		s.counters.Add(metricFramesDropped, 1)
		network.SendOverflow(context.Background(), s.publisher, logging.SessionRef(s.id), network.DeliveryPayload{Buffered: len(s.send)})
		s.Close()
		return false
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			if s.writeWait > 0 {
				_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				network.WriteFailed(context.Background(), s.publisher, logging.SessionRef(s.id), network.DeliveryPayload{Error: err.Error(), Buffered: len(s.send)})
				s.Close()
				return
			}
		}
	}
}

// Close closes the transport once. The transport's reader observes the close
// and reports the disconnect to the hub.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if err := s.conn.Close(); err != nil {
			s.logger.Printf("session %s: close failed: %v", s.id, err)
		}
	})
}
