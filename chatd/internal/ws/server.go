// Package ws provides the realtime event relay for chat clients.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/anshu-sharma0/chatmessage/chatd/internal/auth"
	"github.com/anshu-sharma0/chatmessage/chatd/internal/config"
	"github.com/anshu-sharma0/chatmessage/chatd/internal/hub"
	"github.com/anshu-sharma0/chatmessage/chatd/internal/metrics"
	"github.com/anshu-sharma0/chatmessage/chatd/internal/policy"
	"github.com/anshu-sharma0/chatmessage/chatd/internal/service"
	"github.com/anshu-sharma0/chatmessage/internal/domain"
	"github.com/anshu-sharma0/chatmessage/internal/protocol"
)

// Authorizer checks that a user may act on a conversation.
type Authorizer interface {
	Conversation(ctx context.Context, callerID, conversationID, action string) (*domain.Conversation, error)
}

// Server handles WebSocket connections.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	authz    Authorizer
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *hub.Hub, authz Authorizer, m *metrics.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		hub:     h,
		authz:   authz,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// client is the per-connection state owned by the read pump.
type client struct {
	conn    *hub.Connection
	limiter *rate.Limiter
}

// HandleWebSocket upgrades an authenticated request and runs the connection until it closes.
func (s *Server) HandleWebSocket(c echo.Context) error {
	user := auth.User(c)
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		glog.Warningf("failed to upgrade websocket: %v", err)
		return nil
	}

	conn := s.hub.NewConnection(ws, user.ID)
	s.hub.Register(conn)
	ws.SetReadLimit(s.cfg.MaxMessageSize)

	cl := &client{
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(s.cfg.RateLimitPerSec), s.cfg.RateLimitBurst),
	}
	go s.writePump(conn)
	go s.readPump(cl)
	return nil
}

// readPump reads events from the WebSocket connection.
func (s *Server) readPump(cl *client) {
	conn := cl.conn
	defer func() {
		s.hub.Unregister(conn)
		conn.Conn.Close()
	}()

	conn.Conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				glog.Warningf("websocket read error (user %s): %v", conn.UserID, err)
			}
			return
		}
		if !cl.limiter.Allow() {
			s.metrics.RateLimited.Inc()
			s.sendError(conn, "", protocol.ErrorCodeRateLimited, "too many events")
			continue
		}
		s.handleMessage(conn, message)
	}
}

// writePump writes queued frames and keepalive pings to the WebSocket connection.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				glog.V(1).Infof("failed to write to %s: %v", conn.ID, err)
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming events to the appropriate handlers.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var evt protocol.Event
	if err := json.Unmarshal(data, &evt); err != nil {
		s.metrics.Events.WithLabelValues("invalid").Inc()
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch evt.Type {
	case protocol.TypeJoinConversation:
		s.metrics.Events.WithLabelValues(evt.Type).Inc()
		s.handleJoin(conn, evt)
	case protocol.TypeTyping, protocol.TypeStopTyping:
		s.metrics.Events.WithLabelValues(evt.Type).Inc()
		s.handleTyping(conn, evt)
	case protocol.TypeSendMessage:
		s.metrics.Events.WithLabelValues(evt.Type).Inc()
		s.handleSendMessage(conn, evt)
	default:
		s.metrics.Events.WithLabelValues("unknown").Inc()
		s.sendError(conn, evt.ConversationID, protocol.ErrorCodeInvalidMessage, "unknown event type: "+evt.Type)
	}
}

func (s *Server) handleJoin(conn *hub.Connection, evt protocol.Event) {
	if evt.ConversationID == "" {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "conversationId is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.authz.Conversation(ctx, conn.UserID, evt.ConversationID, policy.ActionJoinConversation); err != nil {
		s.sendServiceError(conn, evt.ConversationID, err)
		return
	}

	s.hub.Join(conn, evt.ConversationID)
	glog.V(1).Infof("user %s joined %s", conn.UserID, evt.ConversationID)
}

// handleTyping relays presence to the rest of the room. The subject is always the
// authenticated user, whatever the event claims.
func (s *Server) handleTyping(conn *hub.Connection, evt protocol.Event) {
	if !conn.InRoom(evt.ConversationID) {
		s.sendError(conn, evt.ConversationID, protocol.ErrorCodeNotJoined, "join the conversation first")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.authz.Conversation(ctx, conn.UserID, evt.ConversationID, policy.ActionTyping); err != nil {
		s.sendServiceError(conn, evt.ConversationID, err)
		return
	}
	notice := protocol.NewTypingNotice(evt.Type, evt.ConversationID, conn.UserID)
	if err := s.hub.BroadcastJSON(evt.ConversationID, notice, conn.ID); err != nil {
		glog.Errorf("failed to relay %s: %v", evt.Type, err)
	}
}

// handleSendMessage fans a message the sender already stored out to the rest of the room.
func (s *Server) handleSendMessage(conn *hub.Connection, evt protocol.Event) {
	if evt.Message == nil {
		s.sendError(conn, evt.ConversationID, protocol.ErrorCodeInvalidMessage, "message is required")
		return
	}
	if !conn.InRoom(evt.ConversationID) {
		s.sendError(conn, evt.ConversationID, protocol.ErrorCodeNotJoined, "join the conversation first")
		return
	}
	msg := *evt.Message
	if msg.SenderID != conn.UserID {
		s.sendError(conn, evt.ConversationID, protocol.ErrorCodeForbidden, "cannot send as another user")
		return
	}
	msg.ConversationID = evt.ConversationID

	if err := s.hub.BroadcastJSON(evt.ConversationID, protocol.NewReceiveMessage(evt.ConversationID, msg), conn.ID); err != nil {
		glog.Errorf("failed to relay message: %v", err)
		return
	}
	s.metrics.Messages.Inc()
}

func (s *Server) sendServiceError(conn *hub.Connection, conversationID string, err error) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		s.sendError(conn, conversationID, protocol.ErrorCodeForbidden, "not a participant")
	case errors.Is(err, service.ErrNotFound):
		s.sendError(conn, conversationID, protocol.ErrorCodeInvalidMessage, "unknown conversation")
	default:
		glog.Errorf("authorization failed for user %s: %v", conn.UserID, err)
		s.sendError(conn, conversationID, protocol.ErrorCodeInternalError, "internal error")
	}
}

// sendError sends an error event to a connection.
func (s *Server) sendError(conn *hub.Connection, conversationID, code, text string) {
	if err := s.hub.SendJSONToConnection(conn, protocol.NewError(conversationID, code, text)); err != nil {
		glog.V(1).Infof("failed to send error to %s: %v", conn.ID, err)
	}
}
