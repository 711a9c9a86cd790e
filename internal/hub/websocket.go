package hub

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// wsConn adapts a coder/websocket connection to Conn.
type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Write(ctx context.Context, data []byte) error {
	return w.c.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Ping(ctx context.Context) error {
	return w.c.Ping(ctx)
}

func (w *wsConn) Close(reason string) error {
	switch reason {
	case ReasonShutdown:
		return w.c.Close(websocket.StatusGoingAway, "server shutting down")
	case ReasonClientLeft:
		return w.c.Close(websocket.StatusNormalClosure, "")
	case ReasonSlow:
		return w.c.Close(websocket.StatusPolicyViolation, "too slow")
	default:
		// The peer is likely gone; skip the close handshake.
		return w.c.CloseNow()
	}
}

// Handler upgrades viewer requests and registers them with a Hub.
type Handler struct {
	hub     *Hub
	origins []string
	log     *zap.Logger
}

// NewHandler returns an http.Handler serving the viewer WebSocket endpoint.
// origins are host patterns accepted in the Origin header; same-host
// requests are always accepted.
func NewHandler(h *Hub, origins []string) *Handler {
	return &Handler{hub: h, origins: origins, log: h.log}
}

func (s *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.origins,
	})
	if err != nil {
		// Accept has already written the error response.
		s.log.Debug("websocket upgrade failed",
			zap.String("remote", r.RemoteAddr),
			zap.String("origin", r.Header.Get("Origin")),
			zap.Error(err))
		return
	}

	// Viewers only receive. CloseRead services control frames so pings
	// get their pongs, and its context ends when the peer goes away.
	ctx := c.CloseRead(r.Context())

	client, err := s.hub.Accept(ctx, &wsConn{c: c})
	if err != nil {
		_ = c.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	<-client.Finished()
}
