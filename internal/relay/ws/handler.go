package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/example/fleetrelay/internal/auth"
	"github.com/example/fleetrelay/internal/relay/domain"
	"github.com/example/fleetrelay/internal/relay/engine"
)

// Handler upgrades websocket connections for the three relay channels:
// driver ingress, user subscribers, and the admin-observer channel.
type Handler struct {
	engine   *engine.Engine
	verifier *auth.Verifier
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler constructs the handler. A nil verifier disables channel auth,
// which is only meant for local development.
func NewHandler(eng *engine.Engine, verifier *auth.Verifier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		engine:   eng,
		verifier: verifier,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Router builds the chi router for the websocket endpoints.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/drivers", h.serveDriver)
	r.Get("/users", h.serveUser)
	r.Get("/admin/notifications", h.serveAdmin)
	return r
}

func (h *Handler) authorize(r *http.Request, role string) bool {
	if h.verifier == nil {
		return true
	}
	token := auth.TokenFromRequest(r)
	if token == "" {
		return false
	}
	_, err := h.verifier.Verify(token, role)
	return err == nil
}

func (h *Handler) upgrade(w http.ResponseWriter, r *http.Request, role string) (*Client, bool) {
	if !h.authorize(r, role) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return nil, false
	}
	client := newClient(conn, h.logger)
	go client.writePump()
	return client, true
}

func (h *Handler) serveDriver(w http.ResponseWriter, r *http.Request) {
	client, ok := h.upgrade(w, r, auth.RoleDriver)
	if !ok {
		return
	}
	session := h.engine.NewSession(client)
	defer func() {
		client.shutdown()
		h.engine.CloseSession(session)
		h.logger.Info("driver connection closed",
			zap.Int64("driver_id", int64(session.DriverID())))
	}()

	h.logger.Info("driver connected", zap.String("conn_id", client.ID().String()))

	h.readLoop(client, func(msg inboundMessage) {
		switch msg.Event {
		case domain.EventDriverConnected:
			id, err := parseDriverRef(msg.Data)
			if err != nil {
				h.logger.Warn("invalid driver identification", zap.Error(err))
				return
			}
			_ = h.engine.Identify(session, id)
		case domain.EventLocationUpdate:
			sample, err := parseLocationUpdate(msg.Data)
			if err != nil {
				h.logger.Warn("malformed location update", zap.Error(err))
				return
			}
			// Errors are already counted and logged by the engine; the
			// connection keeps accepting future samples.
			_ = h.engine.HandleSample(r.Context(), session, sample)
		default:
			h.logger.Debug("ignoring unknown driver event", zap.String("event", msg.Event))
		}
	})
}

func (h *Handler) serveUser(w http.ResponseWriter, r *http.Request) {
	client, ok := h.upgrade(w, r, auth.RoleUser)
	if !ok {
		return
	}
	defer func() {
		client.shutdown()
		h.engine.Disconnect(client)
		h.logger.Info("user connection closed", zap.String("conn_id", client.ID().String()))
	}()

	h.logger.Info("user connected", zap.String("conn_id", client.ID().String()))

	h.readLoop(client, func(msg inboundMessage) {
		switch msg.Event {
		case domain.EventSubscribe:
			id, err := parseDriverRef(msg.Data)
			if err != nil {
				h.logger.Warn("invalid subscribe request", zap.Error(err))
				return
			}
			_ = h.engine.Subscribe(client, id)
		case domain.EventUnsubscribe:
			id, err := parseDriverRef(msg.Data)
			if err != nil {
				h.logger.Warn("invalid unsubscribe request", zap.Error(err))
				return
			}
			_ = h.engine.Unsubscribe(client, id)
		default:
			h.logger.Debug("ignoring unknown user event", zap.String("event", msg.Event))
		}
	})
}

func (h *Handler) serveAdmin(w http.ResponseWriter, r *http.Request) {
	client, ok := h.upgrade(w, r, auth.RoleAdmin)
	if !ok {
		return
	}
	defer func() {
		client.shutdown()
		h.engine.Disconnect(client)
		h.logger.Info("admin observer disconnected", zap.String("conn_id", client.ID().String()))
	}()

	h.engine.JoinAdmin(client)
	h.logger.Info("admin observer connected", zap.String("conn_id", client.ID().String()))

	// Admins only listen; inbound frames are drained for keepalive handling.
	h.readLoop(client, func(inboundMessage) {})
}

// readLoop pumps inbound frames through the dispatch function one at a time,
// which keeps samples from a single connection in receipt order.
func (h *Handler) readLoop(client *Client, dispatch func(inboundMessage)) {
	conn := client.conn
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.logger.Warn("malformed message envelope", zap.Error(err))
			continue
		}
		dispatch(msg)
	}
}
