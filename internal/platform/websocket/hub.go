// Package websocket pushes record-change notifications to connected
// patients. Clients subscribe to topics scoped to their own session subject
// and receive events broadcast to those topics, over WebSocket or SSE.
package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Topic kinds.
const (
	KindPrescriptions = "prescriptions"
	KindReports       = "reports"
)

func Topic(kind, subject string) string {
	return kind + ":" + subject
}

// ParseTopic splits a topic into its kind and subject.
func ParseTopic(topic string) (kind, subject string, ok bool) {
	kind, subject, ok = strings.Cut(topic, ":")
	if !ok || subject == "" {
		return "", "", false
	}
	if kind != KindPrescriptions && kind != KindReports {
		return "", "", false
	}
	return kind, subject, true
}

// Event is a notification sent to subscribed clients.
type Event struct {
	Type       string          `json:"type"`
	Topic      string          `json:"topic"`
	ResourceID string          `json:"resourceId,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// ClientMessage is an inbound message from a WebSocket client.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// EventPublisher defines the interface for publishing events to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// TopicListener is told when a topic gains its first subscriber and when it
// loses its last one.
type TopicListener interface {
	TopicActive(topic string)
	TopicIdle(topic string)
}

// Client is one connected WebSocket or SSE stream. Subject is the session
// subject; a client may only subscribe to that subject's topics.
type Client struct {
	ID      string
	Subject string
	Topics  []string
	Send    chan []byte
}

// Hub tracks clients and their topic subscriptions. All operations are
// thread-safe via sync.RWMutex.
//
// notifyMu is held across a subscription change and its listener
// notification, so the listener sees TopicActive and TopicIdle in the same
// order the subscriptions changed. Listeners must not call back into the
// hub.
type Hub struct {
	notifyMu sync.Mutex
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{} // topic -> set of clients
	all      map[*Client]struct{}
	listener TopicListener
	logger   zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		logger:  logger.With().Str("component", "hub").Logger(),
	}
}

// SetListener installs the topic activity listener. Call before serving.
func (h *Hub) SetListener(l TopicListener) {
	h.mu.Lock()
	h.listener = l
	h.mu.Unlock()
}

// allowed reports whether client may subscribe to topic.
func allowed(client *Client, topic string) bool {
	_, subject, ok := ParseTopic(topic)
	return ok && subject == client.Subject
}

// Register adds a client to the hub and subscribes it to its initial topics.
// Topics outside the client's subject are dropped.
func (h *Hub) Register(client *Client) {
	initial := client.Topics
	client.Topics = nil

	h.notifyMu.Lock()
	defer h.notifyMu.Unlock()

	h.mu.Lock()
	h.all[client] = struct{}{}
	activated := h.subscribeLocked(client, initial)
	listener := h.listener
	h.mu.Unlock()

	notify(listener, activated, nil)
}

// Unregister removes a client from the hub, all topic subscriptions, and
// closes the client's Send channel.
func (h *Hub) Unregister(client *Client) {
	h.notifyMu.Lock()
	defer h.notifyMu.Unlock()

	h.mu.Lock()
	if _, ok := h.all[client]; !ok {
		h.mu.Unlock()
		return
	}
	idled := h.unsubscribeLocked(client, client.Topics)
	delete(h.all, client)
	close(client.Send)
	listener := h.listener
	h.mu.Unlock()

	notify(listener, nil, idled)
}

// Subscribe adds topics to a registered client.
func (h *Hub) Subscribe(client *Client, topics []string) {
	h.notifyMu.Lock()
	defer h.notifyMu.Unlock()

	h.mu.Lock()
	activated := h.subscribeLocked(client, topics)
	listener := h.listener
	h.mu.Unlock()

	notify(listener, activated, nil)
}

// Unsubscribe removes topics from a registered client.
func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.notifyMu.Lock()
	defer h.notifyMu.Unlock()

	h.mu.Lock()
	idled := h.unsubscribeLocked(client, topics)
	listener := h.listener
	h.mu.Unlock()

	notify(listener, nil, idled)
}

func (h *Hub) subscribeLocked(client *Client, topics []string) (activated []string) {
	for _, topic := range topics {
		if !allowed(client, topic) {
			h.logger.Warn().Str("client_id", client.ID).Str("topic", topic).Msg("subscription refused")
			continue
		}
		subs := h.clients[topic]
		if subs == nil {
			subs = make(map[*Client]struct{})
			h.clients[topic] = subs
		}
		if _, dup := subs[client]; dup {
			continue
		}
		if len(subs) == 0 {
			activated = append(activated, topic)
		}
		subs[client] = struct{}{}
		client.Topics = append(client.Topics, topic)
	}
	return activated
}

func (h *Hub) unsubscribeLocked(client *Client, topics []string) (idled []string) {
	removeSet := make(map[string]struct{}, len(topics))
	for _, topic := range topics {
		removeSet[topic] = struct{}{}
		subs, ok := h.clients[topic]
		if !ok {
			continue
		}
		if _, member := subs[client]; !member {
			continue
		}
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.clients, topic)
			idled = append(idled, topic)
		}
	}

	remaining := make([]string, 0, len(client.Topics))
	for _, t := range client.Topics {
		if _, rm := removeSet[t]; !rm {
			remaining = append(remaining, t)
		}
	}
	client.Topics = remaining
	return idled
}

func notify(l TopicListener, activated, idled []string) {
	if l == nil {
		return
	}
	for _, t := range activated {
		l.TopicActive(t)
	}
	for _, t := range idled {
		l.TopicIdle(t)
	}
}

// ProcessMessage handles an inbound ClientMessage.
func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		h.Subscribe(client, msg.Topics)
	case "unsubscribe":
		h.Unsubscribe(client, msg.Topics)
	}
}

// Broadcast sends an event to all clients subscribed to the given topic.
// Clients whose buffer is full miss the event.
func (h *Hub) Broadcast(topic string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[topic] {
		select {
		case client.Send <- data:
		default:
			h.logger.Debug().Str("client_id", client.ID).Msg("client buffer full, event dropped")
		}
	}
}

// Publish implements EventPublisher.
func (h *Hub) Publish(_ context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	h.Broadcast(event.Topic, event)
	return nil
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// TopicCount returns the number of clients subscribed to a specific topic.
func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// ActiveTopics returns every topic that currently has subscribers.
func (h *Hub) ActiveTopics() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.clients))
	for t := range h.clients {
		out = append(out, t)
	}
	return out
}
