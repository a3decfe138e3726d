package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"cdr.dev/slog"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

// clientMessage is what browsers send over the socket.
type clientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// wsConn adapts a websocket to presence.Conn.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close(reason string) error {
	return c.conn.Close(websocket.StatusNormalClosure, reason)
}

// originPatterns turns the CORS origins into host patterns. A wildcard
// disables the origin check.
func originPatterns(origins []string) (patterns []string, skipVerify bool) {
	for _, o := range origins {
		if o == "*" {
			return nil, true
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		}
	}
	return patterns, false
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// A bad token never gets an upgraded connection.
	user, err := h.auth.Resolve(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	patterns, anyOrigin := originPatterns(h.config.Web.AllowedOrigins)
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     patterns,
		InsecureSkipVerify: anyOrigin,
	})
	if err != nil {
		h.log.Debug(r.Context(), "websocket accept failed", slog.Error(err))
		return
	}
	conn.SetReadLimit(64 << 10)

	ctx := r.Context()
	c := &wsConn{conn: conn}
	if err := h.presence.Connect(ctx, c, user.ID); err != nil {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	if err := h.repo.SetPresence(ctx, user.ID, true, h.clock.Now()); err != nil {
		h.log.Warn(ctx, "failed to record presence", slog.F("user_id", user.ID), slog.Error(err))
	}

	defer func() {
		ctx := context.WithoutCancel(ctx)
		h.presence.Release(ctx, user.ID, c)
		// A replaced connection must not mark its successor offline.
		if h.presence.IsOnline(user.ID) {
			return
		}
		if err := h.repo.SetPresence(ctx, user.ID, false, h.clock.Now()); err != nil {
			h.log.Warn(ctx, "failed to record presence", slog.F("user_id", user.ID), slog.Error(err))
		}
	}()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Debug(ctx, "malformed websocket frame", slog.F("user_id", user.ID), slog.Error(err))
			_ = conn.Close(websocket.StatusUnsupportedData, "Invalid message")
			return
		}
		switch msg.Type {
		case "ping":
			h.presence.Pong(ctx, user.ID)
		case "activity_update":
			h.presence.TeamActivity(ctx, user.ID, msg.Data)
		case "time_entry_update":
			h.presence.TimeEntryUpdate(ctx, user.ID, "updated", msg.Data)
		}
	}
}
