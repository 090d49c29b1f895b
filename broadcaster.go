package main

// this file implements the push channel - a websocket fan-out hub

import (
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// Publisher is the engine-facing side of the push channel.
type Publisher interface {
	Broadcast(evt Event)
}

// Hub owns the set of connected observers and fans every event out to
// all of them. A single Run goroutine consumes the broadcast channel,
// so observers see events of one type in publish order. Delivery is
// fire-and-forget per observer: a slow client gets dropped, the rest
// are unaffected.
type Hub struct {
	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient

	// snapshot supplies the full current state sent to every client on
	// connect, so late joiners never need historical deltas.
	snapshot func() []Event

	logger *log.Logger
}

func NewHub(snapshot func() []Event, logger *log.Logger) *Hub {
	return &Hub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		snapshot:   snapshot,
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.logger.Info("client connected", "total", len(h.clients))
			if h.snapshot != nil {
				for _, evt := range h.snapshot() {
					if b, err := json.Marshal(evt); err == nil {
						h.send(client, b)
					}
				}
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Info("client disconnected", "total", len(h.clients))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				h.send(client, message)
			}
		}
	}
}

// Broadcast queues evt for delivery to every connected client.
func (h *Hub) Broadcast(evt Event) {
	b, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("broadcast encode failed", "type", evt.Type, "err", err)
		return
	}
	h.broadcast <- b
}

func (h *Hub) send(client *wsClient, message []byte) {
	select {
	case client.send <- message:
	default:
		// client is lagging, let it go rather than stall everyone
		h.drop(client)
		h.logger.Warn("dropped slow client", "total", len(h.clients))
	}
}

func (h *Hub) drop(client *wsClient) {
	delete(h.clients, client)
	close(client.send)
	_ = client.conn.Close()
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

const wsWriteWait = 10 * time.Second

func (c *wsClient) writePump() {
	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump discards client frames; the push channel is one-way. Its
// job is to notice the peer going away.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
