package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/AnshRaj112/whisper-backend/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const inboxChannelPrefix = "inbox:"

// InboxEvent is the payload published over Redis and written to WebSockets.
type InboxEvent struct {
	Type      string              `json:"type"`
	UserID    string              `json:"userId,omitempty"`
	Message   *models.MessageView `json:"message,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

const (
	// inboxWriteWait bounds a single write to a client.
	inboxWriteWait = 10 * time.Second
	// inboxSendBuffer is how many events may queue for one connection before
	// it is treated as stalled and dropped.
	inboxSendBuffer = 16
)

// InboxConn is the minimal interface our WebSocket implementation must satisfy.
type InboxConn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// inboxClient owns the only writer of its connection. Events are queued on
// send and written by writeLoop, so a slow peer never blocks FanOut.
type inboxClient struct {
	conn   InboxConn
	send   chan InboxEvent
	done   chan struct{}
	closed sync.Once
}

func (c *inboxClient) stop() {
	c.closed.Do(func() { close(c.done) })
}

// InboxHub tracks the open inbox connections of this process.
type InboxHub struct {
	mu      sync.RWMutex
	clients map[string]map[InboxConn]*inboxClient
	log     *logrus.Logger
	started sync.Once
}

func NewInboxHub(log *logrus.Logger) *InboxHub {
	return &InboxHub{
		clients: make(map[string]map[InboxConn]*inboxClient),
		log:     log,
	}
}

// Register adds conn to userID's set. A user may have several tabs open.
func (h *InboxHub) Register(userID string, conn InboxConn) {
	c := &inboxClient{
		conn: conn,
		send: make(chan InboxEvent, inboxSendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[InboxConn]*inboxClient)
		h.clients[userID] = set
	}
	if old, ok := set[conn]; ok {
		old.stop()
	}
	set[conn] = c
	h.mu.Unlock()

	go h.writeLoop(userID, c)
}

func (h *InboxHub) Unregister(userID string, conn InboxConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[userID]
	if !ok {
		return
	}
	if c, ok := set[conn]; ok {
		c.stop()
		delete(set, conn)
	}
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}

// ConnectionCount returns how many connections userID has open here.
func (h *InboxHub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// FanOut queues event for every local connection of event.UserID. It never
// blocks: a connection whose queue is full is dropped.
func (h *InboxHub) FanOut(event InboxEvent) {
	if event.UserID == "" {
		return
	}

	h.mu.RLock()
	targets := make([]*inboxClient, 0, len(h.clients[event.UserID]))
	for _, c := range h.clients[event.UserID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- event:
		case <-c.done:
		default:
			h.log.WithField("user_id", event.UserID).Warn("Dropping stalled inbox connection")
			h.drop(event.UserID, c)
		}
	}
}

func (h *InboxHub) writeLoop(userID string, c *inboxClient) {
	for {
		select {
		case <-c.done:
			return
		case event := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(inboxWriteWait))
			if err := c.conn.WriteJSON(event); err != nil {
				h.log.WithError(err).WithField("user_id", userID).Debug("Dropping inbox connection after write error")
				h.drop(userID, c)
				return
			}
		}
	}
}

// drop unregisters c, if it is still the registered client for its
// connection, and closes the connection.
func (h *InboxHub) drop(userID string, c *inboxClient) {
	h.mu.Lock()
	if set, ok := h.clients[userID]; ok && set[c.conn] == c {
		delete(set, c.conn)
		if len(set) == 0 {
			delete(h.clients, userID)
		}
	}
	h.mu.Unlock()
	c.stop()
	_ = c.conn.Close()
}

func newMessageEvent(userID string, msg models.MessageView) InboxEvent {
	return InboxEvent{
		Type:      "message",
		UserID:    userID,
		Message:   &msg,
		Timestamp: time.Now().UTC(),
	}
}

// StartSubscriber ensures a single shared Redis listener per instance.
func (h *InboxHub) StartSubscriber(ctx context.Context, client *redis.Client) {
	h.started.Do(func() {
		go h.runSubscriber(ctx, client)
	})
}

func (h *InboxHub) runSubscriber(ctx context.Context, client *redis.Client) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			pubsub := client.PSubscribe(ctx, inboxChannelPrefix+"*")
			defer pubsub.Close()

			h.log.Info("✅ Inbox Redis subscriber started (pattern: inbox:*)")

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					h.log.WithError(err).Warn("Inbox subscriber error")
					time.Sleep(backoff)
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					return
				}

				backoff = time.Second

				var event InboxEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					h.log.WithError(err).Warn("Failed to unmarshal inbox event")
					continue
				}
				if event.UserID == "" {
					event.UserID = strings.TrimPrefix(msg.Channel, inboxChannelPrefix)
				}
				h.FanOut(event)
			}
		}()
	}
}

// RedisNotifier publishes inbox events so every instance can deliver them.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) NotifyMessage(ctx context.Context, userID string, msg models.MessageView) error {
	data, err := json.Marshal(newMessageEvent(userID, msg))
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, inboxChannelPrefix+userID, data).Err()
}
