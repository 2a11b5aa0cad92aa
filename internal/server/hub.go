// Package server tracks live WebSocket clients in the Hub type and delivers
// chat engine events to them.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/Tyrowin/nexus-chat-server/internal/chat"
	"go.uber.org/zap"
)

// Lifecycle receives connection events from the Hub. chat.Engine implements it.
type Lifecycle interface {
	Connect(id chat.ConnID)
	Disconnect(id chat.ConnID)
	Handle(id chat.ConnID, in chat.Inbound) error
}

// HubOptions bounds per-client resources.
type HubOptions struct {
	SendBufferSize int
	MaxMessageSize int64
}

// Hub manages all WebSocket client connections and implements chat.Transport.
// Client registration and unregistration are serialized through Run; delivery
// is a non-blocking enqueue on each target's send buffer.
type Hub struct {
	clients    map[chat.ConnID]*Client
	register   chan *Client
	unregister chan *Client
	lifecycle  Lifecycle
	opts       HubOptions
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	log        *zap.Logger
}

// NewHub creates a Hub. Attach must be called before Run.
func NewHub(opts HubOptions, log *zap.Logger) *Hub {
	if opts.SendBufferSize <= 0 {
		opts.SendBufferSize = defaultSendBufferSize
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[chat.ConnID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		log:        log,
	}
}

// Attach sets the receiver of connection events.
func (h *Hub) Attach(lifecycle Lifecycle) {
	h.lifecycle = lifecycle
}

// Register hands a new client to the hub; the hub launches its pumps. It
// returns false if the hub is shutting down.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Run starts the hub's main event loop, handling client registration and
// unregistration. It returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("Received nil client registration; skipping")
				continue
			}
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()
	h.log.Info("Client registered",
		zap.String("conn_id", string(client.id)),
		zap.String("addr", client.addr),
		zap.Int("clients", clientCount))

	// The engine must know the connection before its first frame is read.
	h.lifecycle.Connect(client.id)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

func (h *Hub) handleUnregister(client *Client) {
	h.mutex.Lock()
	if current, ok := h.clients[client.id]; ok && current == client {
		delete(h.clients, client.id)
		client.closed = true
		clientCount := len(h.clients)
		h.mutex.Unlock()
		// Close the channel after releasing the lock
		close(client.send)
		h.log.Info("Client unregistered",
			zap.String("conn_id", string(client.id)),
			zap.String("addr", client.addr),
			zap.Int("clients", clientCount))
	} else {
		h.mutex.Unlock()
	}

	// Clients evicted for a full buffer are already gone from the map but
	// still hold engine state.
	h.lifecycle.Disconnect(client.id)
}

// Deliver implements chat.Transport. The frame is encoded once and enqueued
// on every target without blocking; targets whose buffer is full are evicted.
func (h *Hub) Deliver(out chat.Outbound, targets []chat.ConnID) {
	payload, err := encodeOutbound(out)
	if err != nil {
		h.log.Error("Failed to encode outbound event", zap.String("event", out.Event), zap.Error(err))
		return
	}

	var clientsToRemove []*Client
	for _, id := range targets {
		client, ok := h.lookup(id)
		if !ok {
			continue
		}
		if !h.safeSend(client, payload) {
			clientsToRemove = append(clientsToRemove, client)
		}
	}
	h.removeFailedClients(clientsToRemove)
}

func (h *Hub) lookup(id chat.ConnID) (*Client, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	client, ok := h.clients[id]
	return client, ok
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("Recovered from panic in safeSend", zap.Any("panic", r))
		}
	}()

	// Hold the lock for the whole send so the channel cannot be closed under us.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	current, exists := h.clients[client.id]
	if !exists || current != client || client.closed {
		// Gone already; nothing to evict.
		return true
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// removeFailedClients evicts slow clients. Closing the send channel makes the
// write pump close the socket, after which the read pump unregisters.
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if current, exists := h.clients[client.id]; exists && current == client {
			delete(h.clients, client.id)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			h.log.Warn("Client removed due to full send buffer",
				zap.String("conn_id", string(client.id)),
				zap.String("addr", client.addr))
		}
	}
	h.mutex.Unlock()

	// Close channels after releasing the lock
	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients closes all active client connections.
func (h *Hub) shutdownClients() {
	h.log.Info("Shutting down all client connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for id, client := range h.clients {
		clients = append(clients, client)
		delete(h.clients, id)
		client.closed = true
	}
	h.mutex.Unlock()

	for _, client := range clients {
		close(client.send)
	}
	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.Warn("Error closing client connection",
					zap.String("addr", client.addr),
					zap.Error(err))
			}
		}
		h.lifecycle.Disconnect(client.id)
	}

	h.log.Info("Closed client connections", zap.Int("count", len(clients)))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("Initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
