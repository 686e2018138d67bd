package realtime

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

// EventConnected is sent to a client once the hub has registered it.
const EventConnected = "connected"

// publishBuffer bounds the events waiting for the hub loop. Publish drops
// events beyond it instead of blocking the request that produced them.
const publishBuffer = 256

// Event is the message format pushed to clients.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
	At   time.Time   `json:"at"`
}

type delivery struct {
	userIDs []uint
	message []byte
}

// Hub fans task events out to the connected clients of each user.
// All client bookkeeping happens on the Run goroutine.
type Hub struct {
	clients    map[uint]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	publish    chan delivery
	done       chan struct{}
	now        func() time.Time
}

// NewHub creates a new hub instance. Call Run to start delivering.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan delivery, publishBuffer),
		done:       make(chan struct{}),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues an event for every connected client of userIDs.
func (h *Hub) Publish(userIDs []uint, eventType string, data interface{}) {
	if len(userIDs) == 0 {
		return
	}
	message, err := json.Marshal(Event{Type: eventType, Data: data, At: h.now()})
	if err != nil {
		log.Printf("realtime: marshal %s event: %v", eventType, err)
		return
	}
	select {
	case h.publish <- delivery{userIDs: userIDs, message: message}:
	default:
		log.Printf("realtime: publish buffer full, dropping %s event", eventType)
	}
}

// Run starts the hub's main loop. It returns when ctx is cancelled, after
// closing every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for userID := range h.clients {
				for client := range h.clients[userID] {
					close(client.send)
				}
			}
			h.clients = make(map[uint]map[*Client]struct{})
			return
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
			log.Printf("realtime: client connected for user %d (%d open)", client.userID, len(set))
			if message, err := json.Marshal(Event{Type: EventConnected, At: h.now()}); err == nil {
				h.deliver(client, message)
			}
		case client := <-h.unregister:
			h.remove(client)
		case d := <-h.publish:
			for _, userID := range d.userIDs {
				for client := range h.clients[userID] {
					h.deliver(client, d.message)
				}
			}
		}
	}
}

// deliver drops clients whose send buffer is full.
func (h *Hub) deliver(client *Client, message []byte) {
	select {
	case client.send <- message:
	default:
		log.Printf("realtime: send buffer full, removing client for user %d", client.userID)
		h.remove(client)
	}
}

func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.send)
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
	log.Printf("realtime: client disconnected for user %d", client.userID)
}
