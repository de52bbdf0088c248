package stream

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/0xtaosu/meme-memos/internal/models"
)

const (
	TypeMemoUpserted  = "memo.upserted"
	TypeMemoDeleted   = "memo.deleted"
	TypeEventAppended = "event.appended"
	TypeEventDeleted  = "event.deleted"
)

// Message is one change notification. Memo holds the state after the change
// and is nil for deletions of the whole memo.
type Message struct {
	Type         string       `json:"type"`
	TokenAddress string       `json:"tokenAddress"`
	EventID      string       `json:"eventId,omitempty"`
	Memo         *models.Memo `json:"memo,omitempty"`
	At           time.Time    `json:"at"`
}

// Hub fans messages out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the message.
type Hub struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	buffer  int
	closed  bool
	dropped atomic.Uint64
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: map[*Subscription]struct{}{}, buffer: buffer}
}

type Subscription struct {
	hub  *Hub
	ch   chan Message
	once sync.Once
}

func (s *Subscription) Messages() <-chan Message {
	return s.ch
}

// Close unsubscribes and closes the message channel. Safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		if _, ok := s.hub.subs[s]; ok {
			delete(s.hub.subs, s)
			close(s.ch)
		}
		s.hub.mu.Unlock()
	})
}

// Subscribe registers a new subscriber. On a closed hub the returned
// subscription's channel is already closed.
func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{hub: h, ch: make(chan Message, h.buffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.ch)
		s.once.Do(func() {})
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

func (h *Hub) Publish(msg Message) {
	if h == nil {
		return
	}
	if msg.At.IsZero() {
		msg.At = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		select {
		case s.ch <- msg:
		default:
			h.dropped.Add(1)
		}
	}
}

// Close ends every subscription. Later publishes are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		close(s.ch)
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
