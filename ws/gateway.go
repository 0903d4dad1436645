// Package ws is the websocket transport: one Client per connection, a
// Gateway that tracks clients and channels, and a Server that authenticates
// the handshake and dispatches inbound frames to the delivery engine.
package ws

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"talkify/contract"
	"talkify/domain/event"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// frame is the wire envelope: every event crosses the socket as
// {"event": name, "data": payload}.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client is one live websocket connection. It implements
// contract.Connection; writes go through a buffered channel drained by a
// single writer goroutine, as gorilla allows only one concurrent writer.
type Client struct {
	id     string
	userID string
	socket *websocket.Conn

	outbound chan frame
	closed   chan struct{}
	once     sync.Once
	log      *slog.Logger
}

func newClient(userID string, socket *websocket.Conn, log *slog.Logger) *Client {
	return &Client{
		id:       uuid.NewString(),
		userID:   userID,
		socket:   socket,
		outbound: make(chan frame, sendBuffer),
		closed:   make(chan struct{}),
		log:      log,
	}
}

func (c *Client) ID() string { return c.id }

// Send frames the event and enqueues it. A full buffer means the client
// cannot keep up; the connection is closed rather than blocking the
// delivery pipeline.
func (c *Client) Send(e event.DomainEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	f := frame{Event: e.EventName(), Data: data}

	select {
	case <-c.closed:
		return fmt.Errorf("connection %s is closed", c.id)
	default:
	}

	select {
	case c.outbound <- f:
		return nil
	default:
		c.log.Warn("Slow websocket client evicted", slog.String("connection_id", c.id), slog.String("user_id", c.userID))
		c.close()
		return fmt.Errorf("send buffer full for connection %s", c.id)
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.socket.Close()
	})
}

// writePump is the single writer for the socket. It also keeps the
// connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case f := <-c.outbound:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

// Gateway tracks every live client and their channel memberships. It
// implements contract.ConnectionGateway for the delivery engine.
type Gateway struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	channels map[string]map[string]*Client
	log      *slog.Logger
}

func NewGateway(log *slog.Logger) *Gateway {
	return &Gateway{
		clients:  make(map[string]*Client),
		channels: make(map[string]map[string]*Client),
		log:      log,
	}
}

func (g *Gateway) add(client *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clients[client.id] = client
}

func (g *Gateway) remove(client *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.clients, client.id)
	for channel, members := range g.channels {
		delete(members, client.id)
		if len(members) == 0 {
			delete(g.channels, channel)
		}
	}
}

func (g *Gateway) SendTo(conn contract.Connection, e event.DomainEvent) {
	if err := conn.Send(e); err != nil {
		g.log.Debug("Dropped event for connection",
			slog.String("connection_id", conn.ID()),
			slog.String("event", e.EventName()))
	}
}

func (g *Gateway) BroadcastExcept(except contract.Connection, e event.DomainEvent) {
	g.mu.RLock()
	targets := make([]*Client, 0, len(g.clients))
	for _, client := range g.clients {
		if except != nil && client.id == except.ID() {
			continue
		}
		targets = append(targets, client)
	}
	g.mu.RUnlock()

	for _, client := range targets {
		_ = client.Send(e)
	}
}

func (g *Gateway) JoinChannel(conn contract.Connection, channel string) {
	client, ok := conn.(*Client)
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	members, ok := g.channels[channel]
	if !ok {
		members = make(map[string]*Client)
		g.channels[channel] = members
	}
	members[client.id] = client
}

func (g *Gateway) SendToChannel(channel string, e event.DomainEvent) {
	g.mu.RLock()
	members := g.channels[channel]
	targets := make([]*Client, 0, len(members))
	for _, client := range members {
		targets = append(targets, client)
	}
	g.mu.RUnlock()

	for _, client := range targets {
		_ = client.Send(e)
	}
}
