/*
Package api
File: hub.go
Description:
    The WebSocket Hub is the real-time feed of the simulation.

    It maintains a registry of all connected viewers (renderers, dashboards)
    and fans out every message pushed to 'Broadcast'. The heartbeat in
    main.go pushes one snapshot message per tick.

    Architecture:
    - Hub: The singleton manager.
    - Client: Represents one viewer connection.
    - ServeWs: The HTTP handler that upgrades a standard GET request to a WebSocket.
*/

package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/everforgeworks/bridgeflow/internal/traffic"
)

// Message types sent over the socket.
const (
	MessageSnapshot = "snapshot"
	MessageReload   = "reload"
)

// Message defines the standard JSON envelope for all real-time communication.
type Message struct {
	Type    string      `json:"type"`    // Event Type ("snapshot", "reload")
	Payload interface{} `json:"payload"` // The actual data
	Sender  string      `json:"sender"`  // Origin of the message ("engine")
}

// EncodeSnapshot wraps a snapshot in the feed envelope.
func EncodeSnapshot(snap traffic.Snapshot) ([]byte, error) {
	return json.Marshal(Message{Type: MessageSnapshot, Payload: snap, Sender: "engine"})
}

// Client represents a single connected viewer.
// It acts as a middleman between the websocket connection and the Hub.
type Client struct {
	hub  *Hub            // Reference to the central Hub
	conn *websocket.Conn // The actual low-level WebSocket connection
	send chan []byte     // Buffered channel for outbound messages
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	// Registered clients map.
	clients map[*Client]bool

	// Outbound messages for every client. The heartbeat sends here.
	Broadcast chan []byte

	register   chan *Client
	unregister chan *Client

	// Closed once Run has returned.
	done chan struct{}
}

// NewHub creates a new Hub instance.
// This should be called once in main.go and run as a goroutine.
func NewHub() *Hub {
	return &Hub{
		Broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
	}
}

// Run is the main event loop for the Hub. It blocks until ctx is done, then
// closes every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = true
			log.Printf("WS: New viewer registered (%d online)", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case message := <-h.Broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Buffer full: the viewer is too slow or gone.
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// upgrader configures the WebSocket handshake.
// CheckOrigin returns true to allow viewers from any host.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWs handles the HTTP request that initiates a WebSocket connection.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("WS Upgrade Error:", err)
		return
	}

	client := &Client{hub: hub, conn: conn, send: make(chan []byte, 256)}
	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump drains the connection so close frames are noticed.
// The feed is read-only; anything a viewer sends is logged and dropped.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS Error: %v", err)
			}
			break
		}
		log.Printf("WS: Ignoring viewer message: %s", string(message))
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	defer func() {
		c.conn.Close()
	}()

	// Range over the channel. This loop exits when c.send is closed.
	for message := range c.send {
		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)

		if err := w.Close(); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
