package realtime

import (
	"context"
	"strings"
	"sync"

	"threadspire/internal/logger"
	"threadspire/internal/metrics"
)

const subscriberBuffer = 8

type subscriber struct {
	ch chan []byte
}

// Hub fans payloads out to the in-process subscribers of a key.
type Hub struct {
	mu     sync.RWMutex
	log    *logger.Logger
	topics map[string]map[*subscriber]bool
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:    log.With("component", "Hub"),
		topics: make(map[string]map[*subscriber]bool),
	}
}

// Subscribe registers a listener for key. The returned func unsubscribes
// and closes the channel; calling it twice is safe.
func (h *Hub) Subscribe(key string) (<-chan []byte, func()) {
	sub := &subscriber{ch: make(chan []byte, subscriberBuffer)}
	key = strings.TrimSpace(key)

	h.mu.Lock()
	subs, ok := h.topics[key]
	if !ok {
		subs = make(map[*subscriber]bool)
		h.topics[key] = subs
	}
	subs[sub] = true
	h.mu.Unlock()
	metrics.RealtimeSubscribers.Inc()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if subs, ok := h.topics[key]; ok {
				delete(subs, sub)
				if len(subs) == 0 {
					delete(h.topics, key)
				}
			}
			close(sub.ch)
			h.mu.Unlock()
			metrics.RealtimeSubscribers.Dec()
		})
	}
}

// Publish delivers payload to local subscribers. A subscriber whose buffer
// is full misses the message.
func (h *Hub) Publish(_ context.Context, key string, payload []byte) error {
	h.Broadcast(key, payload)
	return nil
}

func (h *Hub) Broadcast(key string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.topics[strings.TrimSpace(key)] {
		select {
		case sub.ch <- payload:
		default:
			h.log.Warn("dropping realtime message; subscriber buffer full", "key", key)
		}
	}
}

func (h *Hub) Subscribers(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[strings.TrimSpace(key)])
}
