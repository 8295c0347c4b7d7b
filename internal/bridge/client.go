// Package bridge provides the client side of the realtime event channel.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/anshu-sharma0/chatmessage/internal/domain"
	"github.com/anshu-sharma0/chatmessage/internal/protocol"
)

var (
	// ErrClosed is returned when emitting on a closed bridge.
	ErrClosed = errors.New("bridge closed")
	// ErrBufferFull is returned when the outbound buffer is full.
	ErrBufferFull = errors.New("send buffer full")
)

// Options configures a bridge connection.
type Options struct {
	// Token is sent as a bearer credential during the handshake.
	Token        string
	PingInterval time.Duration
	WriteTimeout time.Duration
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// Client is a persistent connection to the realtime event service.
type Client struct {
	conn   *websocket.Conn
	opts   Options
	send   chan []byte
	events chan protocol.Event
	done   chan struct{}

	closeOnce sync.Once

	mu     sync.Mutex
	joined string
}

// Dial connects to the event service at addr.
func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	header := http.Header{}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}
	conn, _, err := dialer.DialContext(ctx, addr, header)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	c := &Client{
		conn:   conn,
		opts:   opts,
		send:   make(chan []byte, 64),
		events: make(chan protocol.Event, 64),
		done:   make(chan struct{}),
	}
	go c.writePump()
	go c.readPump()
	return c, nil
}

// Events returns inbound events. The channel is closed when the connection ends.
func (c *Client) Events() <-chan protocol.Event {
	return c.events
}

// Done is closed once the bridge is shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close shuts the connection down.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// Join subscribes to a conversation's events. Joining the current conversation again is a no-op.
func (c *Client) Join(conversationID, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conversationID == c.joined {
		return nil
	}
	if err := c.emit(protocol.NewJoin(conversationID, userID)); err != nil {
		return err
	}
	c.joined = conversationID
	return nil
}

// Typing tells the conversation that userID is typing.
func (c *Client) Typing(conversationID, userID string) error {
	return c.emit(protocol.NewTyping(protocol.TypeTyping, conversationID, userID))
}

// StopTyping tells the conversation that userID stopped typing.
func (c *Client) StopTyping(conversationID, userID string) error {
	return c.emit(protocol.NewTyping(protocol.TypeStopTyping, conversationID, userID))
}

// Publish relays a sent message to the conversation's other subscribers.
func (c *Client) Publish(conversationID string, msg domain.Message) error {
	return c.emit(protocol.NewSendMessage(conversationID, msg))
}

func (c *Client) emit(evt protocol.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", evt.Type, err)
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- data:
		glog.V(2).Infof("bridge: queued %s for %s", evt.Type, evt.ConversationID)
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrBufferFull
	}
}

// readPump reads events from the connection until it fails or the bridge is closed.
func (c *Client) readPump() {
	defer func() {
		close(c.events)
		c.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					glog.Warningf("bridge: read error: %v", err)
				}
			}
			return
		}

		var evt protocol.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			glog.Warningf("bridge: dropping malformed event: %v", err)
			continue
		}

		select {
		case c.events <- evt:
		case <-c.done:
			return
		}
	}
}

// writePump writes queued events and keepalive pings to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				glog.Warningf("bridge: write error: %v", err)
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
