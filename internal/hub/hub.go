package hub

import (
	"context"
	"sync"

	"github.com/weiawesome/wes-chat/internal/config"
	"github.com/weiawesome/wes-chat/internal/metrics"
	"github.com/weiawesome/wes-chat/pkg/log"
)

// Hub owns every live connection. All outbound frames pass through the Run
// loop, so each connection sees events in the order they were submitted.
type Hub struct {
	clients    map[string]*Client // clientID -> client
	register   chan *Client
	unregister chan *Client
	outbound   chan *Delivery
	done       chan struct{}
	mu         sync.RWMutex
	config     config.WebSocketConfig
}

// Delivery is one encoded frame addressed to a set of connections, or to
// all of them.
type Delivery struct {
	ClientIDs []string
	All       bool
	Data      []byte
}

func NewHub(cfg config.WebSocketConfig) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		outbound:   make(chan *Delivery, 256),
		done:       make(chan struct{}),
		config:     cfg,
	}
}

// Run processes registrations and deliveries until ctx is cancelled. On
// exit every remaining client's send queue is closed.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.Send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			metrics.ConnectionsCurrent.Set(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			metrics.ConnectionsCurrent.Inc()
			l := log.L()
			l.Debug().Str(log.FieldConnID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Send)
				metrics.ConnectionsCurrent.Dec()
			}
			h.mu.Unlock()
			l := log.L()
			l.Debug().Str(log.FieldConnID, client.ID).Msg("client unregistered")

		case d := <-h.outbound:
			h.deliver(d)
		}
	}
}

func (h *Hub) deliver(d *Delivery) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if d.All {
		for _, client := range h.clients {
			h.enqueue(client, d.Data)
		}
		return
	}
	for _, id := range d.ClientIDs {
		if client, ok := h.clients[id]; ok {
			h.enqueue(client, d.Data)
		}
	}
}

func (h *Hub) enqueue(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		metrics.SlowClientsDropped.Inc()
		l := log.L()
		l.Warn().Str(log.FieldConnID, client.ID).Msg("send buffer full, dropping client")
		go h.removeClient(client)
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Send queues data for the given connections. Unknown ids are skipped.
func (h *Hub) Send(clientIDs []string, data []byte) {
	if len(clientIDs) == 0 {
		return
	}
	h.submit(&Delivery{ClientIDs: clientIDs, Data: data})
}

// SendAll queues data for every live connection.
func (h *Hub) SendAll(data []byte) {
	h.submit(&Delivery{All: true, Data: data})
}

func (h *Hub) submit(d *Delivery) {
	select {
	case h.outbound <- d:
	case <-h.done:
	}
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) removeClient(client *Client) {
	h.Unregister(client)
}
