package store

import (
	"sort"
	"sync"
)

const (
	// subscriberBuffer is the channel capacity of each subscription.
	subscriberBuffer = 100

	// DefaultEventCapacity is the number of events a MemoryStore retains.
	DefaultEventCapacity = 256
)

// MemoryStore is an in-memory implementation of [Store].
//
// Block records are keyed by ID. Events live in a fixed-size ring; once it
// is full the oldest event is overwritten.
//
// Subscribers receive updates via buffered channels (buffer size 100). Updates
// are sent non-blocking; if a subscriber's buffer is full, the update is dropped
// for that subscriber to prevent blocking the render path.
type MemoryStore struct {
	mu     sync.RWMutex
	blocks map[string]BlockRecord

	eventMu sync.Mutex
	events  []EventRecord
	next    int
	full    bool

	subscribers map[chan BlockRecord]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] retaining
// [DefaultEventCapacity] events.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithCapacity(DefaultEventCapacity)
}

// NewMemoryStoreWithCapacity creates a store whose event ring holds capacity
// events. Non-positive values fall back to [DefaultEventCapacity].
func NewMemoryStoreWithCapacity(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	return &MemoryStore{
		blocks:      make(map[string]BlockRecord),
		events:      make([]EventRecord, capacity),
		subscribers: make(map[chan BlockRecord]struct{}),
	}
}

// Update stores a [BlockRecord] and notifies all subscribers.
func (m *MemoryStore) Update(record BlockRecord) {
	m.mu.Lock()
	m.blocks[record.ID] = record
	m.mu.Unlock()

	m.notifySubscribers(record)
}

// GetAll returns a snapshot of all block records ordered by page, then ID.
func (m *MemoryStore) GetAll() []BlockRecord {
	m.mu.RLock()
	records := make([]BlockRecord, 0, len(m.blocks))
	for _, r := range m.blocks {
		records = append(records, r)
	}
	m.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].Page != records[j].Page {
			return records[i].Page < records[j].Page
		}
		return records[i].ID < records[j].ID
	})
	return records
}

// Subscribe creates a new subscription. The channel has a buffer of 100
// messages; when it fills, new updates are dropped for this subscriber.
func (m *MemoryStore) Subscribe() <-chan BlockRecord {
	ch := make(chan BlockRecord, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (m *MemoryStore) Unsubscribe(ch <-chan BlockRecord) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	// find and delete the channel (need to convert to the right type)
	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// RecordEvent appends ev to the event ring.
func (m *MemoryStore) RecordEvent(ev EventRecord) {
	m.eventMu.Lock()
	defer m.eventMu.Unlock()

	m.events[m.next] = ev
	m.next = (m.next + 1) % len(m.events)
	if m.next == 0 {
		m.full = true
	}
}

// Events returns up to limit of the most recent events, oldest first.
func (m *MemoryStore) Events(limit int) []EventRecord {
	m.eventMu.Lock()
	defer m.eventMu.Unlock()

	var ordered []EventRecord
	if m.full {
		ordered = append(ordered, m.events[m.next:]...)
	}
	ordered = append(ordered, m.events[:m.next]...)

	if limit > 0 && len(ordered) > limit {
		ordered = ordered[len(ordered)-limit:]
	}
	return ordered
}

// notifySubscribers sends the record to all active subscribers without
// blocking.
func (m *MemoryStore) notifySubscribers(record BlockRecord) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- record:
		default:
			// subscriber is slow, drop the message
		}
	}
}
