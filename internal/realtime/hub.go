package realtime

import (
	"context"
	"sync"

	"course-forum-backend/internal/util"

	"go.uber.org/zap"
)

// Message types pushed to subscribers.
const (
	TypePost    = "post"
	TypeReplies = "replies"
	TypeDeleted = "deleted"
)

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 16

// Message is one snapshot pushed on a topic.
type Message struct {
	Type  string      `json:"type"`
	Topic string      `json:"topic"`
	Data  interface{} `json:"data"`
}

// PostTopic carries snapshots of a post document.
func PostTopic(postID string) string {
	return "posts/" + postID
}

// RepliesTopic carries the reply tree of a post.
func RepliesTopic(postID string) string {
	return "posts/" + postID + "/replies"
}

type subscriber struct {
	ch chan Message
}

// Hub fans snapshots out to topic subscribers. Slow subscribers miss
// messages instead of blocking publishers.
type Hub struct {
	mu         sync.RWMutex
	topics     map[string]map[*subscriber]struct{}
	bufferSize int
}

func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		topics:     make(map[string]map[*subscriber]struct{}),
		bufferSize: bufferSize,
	}
}

// Subscribe registers for topics until ctx is done, at which point the
// returned channel is closed.
func (h *Hub) Subscribe(ctx context.Context, topics ...string) <-chan Message {
	sub := &subscriber{ch: make(chan Message, h.bufferSize)}

	h.mu.Lock()
	for _, topic := range topics {
		if h.topics[topic] == nil {
			h.topics[topic] = make(map[*subscriber]struct{})
		}
		h.topics[topic][sub] = struct{}{}
	}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		for _, topic := range topics {
			delete(h.topics[topic], sub)
			if len(h.topics[topic]) == 0 {
				delete(h.topics, topic)
			}
		}
		close(sub.ch)
		h.mu.Unlock()
	}()

	return sub.ch
}

// Publish delivers a message to every current subscriber of topic.
func (h *Hub) Publish(topic, msgType string, data interface{}) {
	msg := Message{Type: msgType, Topic: topic, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.topics[topic] {
		select {
		case sub.ch <- msg:
		default:
			util.Logger.Warn("subscriber queue full, dropping snapshot", zap.String("topic", topic))
		}
	}
}

// SubscriberCount returns the number of subscribers on topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Stats returns the number of live topics and topic subscriptions.
func (h *Hub) Stats() (topics, subscriptions int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, subs := range h.topics {
		subscriptions += len(subs)
	}
	return len(h.topics), subscriptions
}
