// Package realtime pushes broadcast events to websocket subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ridepool/internal/domain"
	"ridepool/internal/service"
)

// Message is the envelope written to subscribers.
type Message struct {
	Type      string `json:"type"`
	Room      string `json:"room,omitempty"`
	Topic     string `json:"topic,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// RideRoom is the room receiving a ride's tracking snapshots and location pings.
func RideRoom(rideID string) string {
	return "ride_" + rideID
}

// UserRoom is the personal room every client joins on connect.
func UserRoom(userID string) string {
	return "user_" + userID
}

// Hub tracks connected clients and their rooms. It is an event sink: ride events go to the
// ride's room and rider updates to the rider's personal room.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	log        logrus.FieldLogger
}

// NewHub creates an empty hub. Run must be started before clients connect.
func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run processes registrations until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.mu.Lock()
			h.dropLocked(client)
			h.mu.Unlock()
		}
	}
}

// Name identifies the sink in logs.
func (h *Hub) Name() string { return "websocket" }

// Publish delivers the event to the room it belongs to. Clients too slow to keep up are dropped.
func (h *Hub) Publish(_ context.Context, event domain.Event) error {
	room := RideRoom(event.RideID)
	if event.Kind == domain.EventRiderUpdate {
		room = UserRoom(event.UserID)
	}

	data, err := json.Marshal(Message{
		Type:      string(event.Kind),
		Room:      room,
		Topic:     event.Topic(),
		Timestamp: event.SentAt.Unix(),
		Data:      event.Payload,
	})
	if err != nil {
		return err
	}

	h.sendToRoom(room, data)
	return nil
}

// Connected returns the number of connected clients.
func (h *Hub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = struct{}{}
	h.joinLocked(client, UserRoom(client.userID))

	welcome, _ := json.Marshal(Message{
		Type:      "welcome",
		Room:      UserRoom(client.userID),
		Timestamp: time.Now().Unix(),
		Data:      map[string]string{"message": "Connected successfully"},
	})
	h.sendLocked(client, welcome)

	h.log.WithField("user_id", client.userID).Debug("websocket client registered")
}

// join adds client to room.
func (h *Hub) join(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		h.joinLocked(client, room)
	}
}

// leave removes client from room.
func (h *Hub) leave(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		delete(client.rooms, room)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) joinLocked(client *Client, room string) {
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][client] = struct{}{}
	client.rooms[room] = struct{}{}
}

func (h *Hub) sendToRoom(room string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.rooms[room] {
		h.sendLocked(client, data)
	}
}

func (h *Hub) sendLocked(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.log.WithField("user_id", client.userID).Warn("websocket client too slow, disconnecting")
		h.dropLocked(client)
	}
}

// dropLocked removes client from the hub and closes its send channel exactly once.
func (h *Hub) dropLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for room := range client.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	close(client.send)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.dropLocked(client)
	}
}

var _ service.EventSink = (*Hub)(nil)
