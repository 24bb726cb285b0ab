package broadcast

import (
	"path"
	"sync"

	"github.com/kbukum/pipecat/logger"
)

// clientBuffer is how many messages may wait for a slow client.
const clientBuffer = 256

// Client is one connected subscriber.
type Client struct {
	id      string
	pattern string
	send    chan []byte
	log     *logger.Logger
}

// NewClient creates a client hearing topics that match pattern. An empty
// pattern matches every topic.
func NewClient(id, pattern string, log *logger.Logger) *Client {
	if pattern == "" {
		pattern = "*"
	}
	return &Client{
		id:      id,
		pattern: pattern,
		send:    make(chan []byte, clientBuffer),
		log:     logger.OrNop(log),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() string { return c.id }

// Pattern returns the topic glob the client subscribed with.
func (c *Client) Pattern() string { return c.pattern }

// Messages returns the channel the client's messages arrive on. It is
// closed when the client is unregistered or the hub stops.
func (c *Client) Messages() <-chan []byte { return c.send }

// deliver queues data without blocking and reports whether it fit.
func (c *Client) deliver(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		c.log.Warn("client too slow, dropping message", logger.Fields("client_id", c.id))
		return false
	}
}

type message struct {
	topic string
	data  []byte
}

// Hub manages websocket clients and message fan-out. Run must be running
// for Register, Unregister and Publish to make progress.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	publish    chan message
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	log        *logger.Logger
}

// NewHub creates a hub. log may be nil.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan message, clientBuffer),
		done:       make(chan struct{}),
		log:        logger.OrNop(log).WithComponent("broadcast"),
	}
}

// Run is the hub's event loop. It blocks until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client registered", logger.Fields("client_id", client.id, "total_clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client unregistered", logger.Fields("client_id", client.id, "total_clients", total))

		case msg := <-h.publish:
			h.fanOut(msg)
		}
	}
}

// Stop shuts the hub down, closing every client. Safe to call more than
// once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.send)
		delete(h.clients, id)
	}
	h.log.Debug("all clients closed")
}

// Register adds a client. It reports false if the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and closes its message channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish sends data to every client whose pattern matches topic. It only
// blocks when the hub's own backlog is full, and drops the message once
// the hub has stopped.
func (h *Hub) Publish(topic string, data []byte) {
	select {
	case h.publish <- message{topic: topic, data: data}:
	case <-h.done:
	}
}

func (h *Hub) fanOut(msg message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, client := range h.clients {
		matched, err := path.Match(client.pattern, msg.topic)
		if err != nil {
			h.log.Warn("bad topic pattern", logger.Fields(
				"client_id", client.id,
				"pattern", client.pattern,
				logger.FieldError, err.Error(),
			))
			continue
		}
		if matched && client.deliver(msg.data) {
			delivered++
		}
	}
	h.log.Debug("message published", logger.Fields(
		"topic", msg.topic,
		"delivered", delivered,
		"data_size", len(msg.data),
	))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ClientIDs returns the IDs of all connected clients.
func (h *Hub) ClientIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}
