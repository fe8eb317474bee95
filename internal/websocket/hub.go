package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/fitcomp/internal/domain"
)

// Message types
const (
	MessageTypeStandingsUpdate = "standings_update"
	MessageTypeSubscribe       = "subscribe"
	MessageTypeUnsubscribe     = "unsubscribe"
	MessageTypePing            = "ping"
	MessageTypePong            = "pong"
	MessageTypeError           = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type          string      `json:"type"`
	CompetitionID string      `json:"competition_id,omitempty"`
	Data          interface{} `json:"data,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// Hub maintains the set of active clients, grouped by the competition they
// watch, and broadcasts standings changes to them.
type Hub struct {
	// Subscribed clients by competition ID
	clients map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *Message
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest

	mu sync.RWMutex

	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client        *Client
	competitionID string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				for compID, clients := range h.clients {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.clients, compID)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if h.clients[req.competitionID] == nil {
				h.clients[req.competitionID] = make(map[*Client]bool)
			}
			h.clients[req.competitionID][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed",
				"client_id", req.client.id,
				"competition_id", req.competitionID,
			)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.clients[req.competitionID]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.clients, req.competitionID)
				}
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

// deliver sends a message to every client watching its competition
func (h *Hub) deliver(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	h.mu.RLock()
	clients := h.clients[message.CompetitionID]
	targets := make([]*Client, 0, len(clients))
	for client := range clients {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		select {
		case client.send <- data:
		default:
			// Slow consumer; drop the update rather than block the hub
			h.logger.Debug("dropping message for slow client", "client_id", client.id)
		}
	}
}

// Stop shuts down the hub
func (h *Hub) Stop() {
	h.cancel()
}

// Register adds a client to the hub
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// Subscribe adds a client to a competition's broadcast group
func (h *Hub) Subscribe(c *Client, competitionID string) {
	h.subscribe <- &subscriptionRequest{client: c, competitionID: competitionID}
}

// Unsubscribe removes a client from a competition's broadcast group
func (h *Hub) Unsubscribe(c *Client, competitionID string) {
	h.unsubscribe <- &subscriptionRequest{client: c, competitionID: competitionID}
}

// BroadcastStandings pushes one participant's updated standing to everyone
// watching the competition.
func (h *Hub) BroadcastStandings(competitionID string, entry domain.StandingsEntry) {
	message := &Message{
		Type:          MessageTypeStandingsUpdate,
		CompetitionID: competitionID,
		Data:          entry,
		Timestamp:     time.Now(),
	}
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping standings update",
			"competition_id", competitionID,
		)
	}
}

// GetTotalConnections returns the number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
