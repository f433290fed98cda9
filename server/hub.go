// ABOUTME: In-process event hub fanning orchestrator events out to per-task SSE
// ABOUTME: subscribers, with ULID event ids for client-side ordering.

package server

import (
	"crypto/rand"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/2389-research/spyglass/engine"
	"github.com/2389-research/spyglass/task"
)

// HubEvent is one event ready for the wire: the orchestrator payload plus a
// monotonically increasing ULID id.
type HubEvent struct {
	ID    string
	Event engine.Event
}

const subscriberBuffer = 32

// Hub implements engine.Emitter. Events fan out to all subscribers of the
// event's task. Emission never blocks: a subscriber that falls more than
// subscriberBuffer events behind misses the overflow and should re-sync from
// the task snapshot.
type Hub struct {
	mu      sync.RWMutex
	subs    map[task.ID]map[chan HubEvent]struct{}
	entropy *ulid.MonotonicEntropy
	emu     sync.Mutex
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{
		subs:    make(map[task.ID]map[chan HubEvent]struct{}),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Emit implements engine.Emitter.
func (h *Hub) Emit(e engine.Event) {
	ev := HubEvent{ID: h.nextID(), Event: e}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[e.EventTaskID()] {
		select {
		case ch <- ev:
		default:
			// Slow subscriber, drop rather than stall the run loop.
		}
	}
}

// Subscribe registers for a task's events. The returned cancel function must
// be called when done; it closes the channel.
func (h *Hub) Subscribe(id task.ID) (<-chan HubEvent, func()) {
	ch := make(chan HubEvent, subscriberBuffer)

	h.mu.Lock()
	if h.subs[id] == nil {
		h.subs[id] = make(map[chan HubEvent]struct{})
	}
	h.subs[id][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[id], ch)
			if len(h.subs[id]) == 0 {
				delete(h.subs, id)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// SubscriberCount reports the number of active subscribers for a task.
func (h *Hub) SubscriberCount(id task.ID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[id])
}

func (h *Hub) nextID() string {
	h.emu.Lock()
	defer h.emu.Unlock()
	return ulid.MustNew(ulid.Now(), h.entropy).String()
}
