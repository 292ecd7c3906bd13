package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/fireflower/firemail/internal/store"
)

// BatchCheckFunc starts a mail check for the given mailboxes, reporting
// progress through the callback. Implementations must not block the caller;
// the registry acknowledges the request before any progress is reported.
type BatchCheckFunc func(ctx context.Context, mailboxIDs []int64, progress func(mailboxID int64, percent int, message string))

// Server upgrades HTTP requests to websocket connections and dispatches
// inbound action frames to store and mail-check operations.
type Server struct {
	hub      *Hub
	store    *store.Store
	check    BatchCheckFunc
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewServer creates a websocket server over the given hub and store
func NewServer(hub *Hub, st *store.Store, check BatchCheckFunc, logger *slog.Logger) *Server {
	return &Server{
		hub:   hub,
		store: st,
		check: check,
		upgrader: websocket.Upgrader{
			// Browser clients connect from a separately served frontend
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With("component", "ws_server"),
	}
}

// ServeHTTP handles one websocket connection for its whole lifetime.
// Messages on a single connection are processed strictly in arrival order.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn}
	s.hub.register(c)
	defer func() {
		s.hub.unregister(c)
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read failed", "error", err)
			}
			return
		}
		s.dispatch(r.Context(), c, raw)
	}
}
