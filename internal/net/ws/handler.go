package ws

import (
	"context"
	"errors"
	nethttp "net/http"

	"github.com/gorilla/websocket"

	"routesim/server"
	"routesim/server/internal/net/intake"
	"routesim/server/internal/telemetry"
	"routesim/server/logging"
)

const defaultReadLimit = 64 << 10

type HandlerConfig struct {
	Logger    telemetry.Logger
	Publisher logging.Publisher
	// ReadLimit caps the size of one inbound frame in bytes.
	ReadLimit int64
}

// Handler upgrades HTTP requests and runs one read loop per connection. The
// hub owns everything written back to the client.
type Handler struct {
	hub        *server.Hub
	dispatcher *intake.Dispatcher
	logger     telemetry.Logger
	readLimit  int64
	upgrader   websocket.Upgrader
}

func NewHandler(hub *server.Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	readLimit := cfg.ReadLimit
	if readLimit <= 0 {
		readLimit = defaultReadLimit
	}
	return &Handler{
		hub:        hub,
		dispatcher: intake.NewDispatcher(hub, cfg.Publisher),
		logger:     logger,
		readLimit:  readLimit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
	}
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(h.readLimit)

	session, err := h.hub.Connect(conn)
	if err != nil {
		message := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = conn.WriteMessage(websocket.CloseMessage, message)
		_ = conn.Close()
		return
	}
	h.serve(r.Context(), session, conn)
}

type reader interface {
	ReadMessage() (messageType int, p []byte, err error)
}

// serve reads frames until the connection fails and then disconnects the
// session, which has the same effect as leave.
func (h *Handler) serve(ctx context.Context, session *server.Session, conn reader) {
	ctx = context.WithoutCancel(ctx)
	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			h.hub.Disconnect(session, closeReason(err))
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		if err := h.dispatcher.Dispatch(ctx, session, payload); err != nil {
			if errors.Is(err, server.ErrInternalFault) {
				h.logger.Printf("session %s: %v", session.ID(), err)
			}
			h.hub.SendError(session, intake.ErrorMessage(err))
		}
	}
}

func closeReason(err error) string {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			return "closed"
		}
		return closeErr.Error()
	}
	return err.Error()
}
