// Package broadcast is the in-process publish/subscribe bus of
// spec.md §4.7: every mutation publishes a BroadcastEvent, and HTTP
// SSE subscribers drain it as a live stream. There is no direct
// teacher analogue (the teacher's live_api.go polls the database on a
// timer instead of using an event bus); this is written fresh, in the
// teacher's general concurrency idiom — a mutex-guarded registry of
// channels, non-blocking sends guarded by select/default.
package broadcast

import (
	"sync"
	"time"

	"github.com/NREL/torc/internal/logging"
)

// Event is the payload fanned out to subscribers (spec.md §4.7:
// "workflow id, entity kind, operation, summary").
type Event struct {
	WorkflowID int64     `json:"workflow_id"`
	EntityKind string    `json:"entity_kind"`
	Operation  string    `json:"operation"`
	Summary    string    `json:"summary"`
	Timestamp  time.Time `json:"timestamp"`
}

// defaultBufferSize is the bound on each subscriber's channel before
// the drop-oldest policy kicks in.
const defaultBufferSize = 256

// subscriber wraps a channel with the mutex that serializes
// drop-oldest eviction against concurrent Publish calls.
type subscriber struct {
	mu   sync.Mutex
	ch   chan Event
	size int
}

// Bus is the broadcast channel. One Bus exists per server process;
// subscribers are scoped to a workflow so SSE clients only see events
// for the workflow they're streaming.
type Bus struct {
	mu          sync.Mutex
	nextID      int64
	subscribers map[int64]map[int64]*subscriber
	bufferSize  int
}

func New(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Bus{
		subscribers: make(map[int64]map[int64]*subscriber),
		bufferSize:  bufferSize,
	}
}

// Subscription is a live handle on a subscriber's event stream. The
// caller must call Close when done (e.g. when the SSE client
// disconnects) to release the registry entry.
type Subscription struct {
	bus        *Bus
	workflowID int64
	id         int64
	sub        *subscriber
}

// Subscribe registers a new subscriber for workflowID and returns a
// handle whose Events channel receives every Event published for that
// workflow from this point forward.
func (b *Bus) Subscribe(workflowID int64) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	sub := &subscriber{ch: make(chan Event, b.bufferSize), size: b.bufferSize}

	if b.subscribers[workflowID] == nil {
		b.subscribers[workflowID] = make(map[int64]*subscriber)
	}
	b.subscribers[workflowID][id] = sub

	return &Subscription{bus: b, workflowID: workflowID, id: id, sub: sub}
}

// Events returns the channel to range over for incoming events.
func (s *Subscription) Events() <-chan Event {
	return s.sub.ch
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	subs := s.bus.subscribers[s.workflowID]
	if subs == nil {
		return
	}
	if _, ok := subs[s.id]; ok {
		delete(subs, s.id)
		close(s.sub.ch)
	}
	if len(subs) == 0 {
		delete(s.bus.subscribers, s.workflowID)
	}
}

// Publish fans an event out to every subscriber of event.WorkflowID.
// A slow subscriber never blocks the publisher: if its buffer is
// full, the oldest queued event is dropped to make room (spec.md
// §9's "bounded per-subscriber buffer with drop-oldest policy").
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subscribers[event.WorkflowID]))
	for _, s := range b.subscribers[event.WorkflowID] {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.send(event)
	}
}

func (s *subscriber) send(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case s.ch <- event:
		return
	default:
	}
	// Buffer full: drop the oldest queued event and retry once.
	select {
	case <-s.ch:
		logging.Debugf("broadcast: subscriber buffer full, dropped oldest event")
	default:
	}
	select {
	case s.ch <- event:
	default:
		logging.Warnf("broadcast: subscriber still full after eviction, dropping newest event")
	}
}
