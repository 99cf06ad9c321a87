package services

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Client represents a WebSocket client
type Client struct {
	ID       uint
	UserType string
	Conn     *websocket.Conn
	Send     chan []byte
	Inbound  chan []byte
	Done     chan struct{}
	Hub      *Hub
	once     sync.Once
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	mutex      sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
	}
}

// Run starts the hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			log.Printf("Client %d connected", client.ID)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mutex.Unlock()
			log.Printf("Client %d disconnected", client.ID)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// BroadcastToUser sends a message to a specific user
func (h *Hub) BroadcastToUser(userID uint, message []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		if client.ID == userID {
			select {
			case client.Send <- message:
			default:
				close(client.Send)
				delete(h.clients, client)
			}
		}
	}
}

// GetConnectedClients returns the number of connected clients
func (h *Hub) GetConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// WebSocket message types
type WebSocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// OfferPlaced notifies a requester that a new bid landed on their request.
type OfferPlaced struct {
	RequestID    uint    `json:"requestId"`
	OfferID      uint    `json:"offerId"`
	ProviderID   uint    `json:"providerId"`
	QuotedAmount float64 `json:"quotedAmount"`
}

// RequestAssigned notifies both parties that an offer was accepted.
type RequestAssigned struct {
	RequestID          uint `json:"requestId"`
	OfferID            uint `json:"offerId"`
	AssignedProviderID uint `json:"assignedProviderId"`
}

// OfferClosed notifies a provider that their bid reached a terminal status.
type OfferClosed struct {
	RequestID uint   `json:"requestId"`
	OfferID   uint   `json:"offerId"`
	Status    string `json:"status"`
}

// RequestStateChanged carries a bare status transition for a request.
type RequestStateChanged struct {
	RequestID uint   `json:"requestId"`
	Status    string `json:"status"`
}

// SendToUser marshals a typed message and delivers it to one user.
func (h *Hub) SendToUser(userID uint, msgType string, data interface{}) {
	message := WebSocketMessage{Type: msgType, Data: data}
	payload, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling %s: %v", msgType, err)
		return
	}
	h.BroadcastToUser(userID, payload)
}

// Deliver pushes an already-typed message straight to this client's
// connection. Used by the per-client feed synchronizer.
func (c *Client) Deliver(msgType string, data interface{}) {
	message := WebSocketMessage{Type: msgType, Data: data}
	payload, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling %s: %v", msgType, err)
		return
	}
	select {
	case c.Send <- payload:
	case <-c.Done:
	}
}

// HandleWebSocket upgrades the connection and registers the client with the
// hub. The returned client stays valid until its Done channel closes.
func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request, userID uint, userType string) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return nil, err
	}

	client := &Client{
		ID:       userID,
		UserType: userType,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Inbound:  make(chan []byte, 16),
		Done:     make(chan struct{}),
		Hub:      hub,
	}

	client.Hub.register <- client

	go client.writePump()
	go client.readPump()

	return client, nil
}

func (c *Client) close() {
	c.once.Do(func() { close(c.Done) })
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.close()
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		// State changes go through the HTTP API; inbound frames only steer
		// this client's view. Drop rather than block on a slow consumer.
		select {
		case c.Inbound <- raw:
		default:
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	defer c.Conn.Close()

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket write error: %v", err)
				return
			}
		case <-c.Done:
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
