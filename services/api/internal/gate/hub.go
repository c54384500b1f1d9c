package gate

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Subscriber is a connected terminal that can receive broadcasts.
type Subscriber interface {
	ID() string
	// Deliver queues msg without blocking and reports whether it was accepted.
	Deliver(msg Message) bool
}

// Hub tracks connected terminals and fans out broadcasts to them.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]Subscriber
	logger logrus.FieldLogger
}

func NewHub(logger logrus.FieldLogger) *Hub {
	return &Hub{
		subs:   make(map[string]Subscriber, 64),
		logger: logger.WithField("object", "hub"),
	}
}

func (h *Hub) Register(s Subscriber) {
	h.mu.Lock()
	h.subs[s.ID()] = s
	h.mu.Unlock()
}

func (h *Hub) Unregister(s Subscriber) {
	h.mu.Lock()
	delete(h.subs, s.ID())
	h.mu.Unlock()
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast sends msg to every terminal. Slow terminals whose queue is full
// miss the message; it returns how many accepted it.
func (h *Hub) Broadcast(msg Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for id, s := range h.subs {
		if s.Deliver(msg) {
			n++
			continue
		}
		h.logger.WithFields(logrus.Fields{"conn": id, "type": msg.Type}).Warn("broadcast dropped for slow terminal")
	}
	return n
}
