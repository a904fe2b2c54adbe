// Package broadcast is the live fan-out hub. Events are pushed to every
// subscriber of a topic immediately after the cache write, independent of
// the durable job's eventual outcome. Delivery is at-most-once and
// best-effort: a full subscriber buffer drops the event, and disconnected
// clients catch up through their own subsequent reads.
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"chirpd/pkg/logger"
)

// subscriber buffer; events beyond this while a client stalls are dropped.
const subBuffer = 64

// Event is one state-change notification.
type Event struct {
	Topic string `json:"topic"`
	Name  string `json:"event"`
	Data  any    `json:"data"`
}

type topic struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
}

// Hub is the topic-keyed subscriber registry. Safe for concurrent use.
type Hub struct {
	topics  *xsync.MapOf[string, *topic]
	nextID  uint64
	dropped uint64
}

// NewHub builds an empty Hub.
func NewHub() *Hub {
	return &Hub{topics: xsync.NewMapOf[string, *topic]()}
}

// Subscribe registers a listener on a topic. The returned channel is
// closed by cancel; callers must call cancel when done.
func (h *Hub) Subscribe(name string) (<-chan Event, func()) {
	t, _ := h.topics.LoadOrStore(name, &topic{subs: make(map[uint64]chan Event)})
	id := atomic.AddUint64(&h.nextID, 1)
	ch := make(chan Event, subBuffer)

	t.mu.Lock()
	t.subs[id] = ch
	t.mu.Unlock()

	cancel := func() {
		t.mu.Lock()
		if _, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(ch)
		}
		t.mu.Unlock()
	}
	return ch, cancel
}

// Publish fans the event out to every subscriber of its topic without
// blocking. Slow subscribers lose the event.
func (h *Hub) Publish(ev Event) {
	t, ok := h.topics.Load(ev.Topic)
	if !ok {
		return
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
			atomic.AddUint64(&h.dropped, 1)
			logger.Debug("broadcast_event_dropped", "topic", ev.Topic, "event", ev.Name)
		}
	}
}

// Dropped returns how many events were lost to full subscriber buffers.
func (h *Hub) Dropped() uint64 { return atomic.LoadUint64(&h.dropped) }

// Subscribers returns the current listener count for a topic.
func (h *Hub) Subscribers(name string) int {
	t, ok := h.topics.Load(name)
	if !ok {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}
