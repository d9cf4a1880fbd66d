package overflow

import (
	"sort"
	"sync"

	"github.com/ashokrj/supplyd/data"
)

// InMemoryOverflowStore is a test double for OverflowStore. It keeps
// entries in a plain map instead of on disk, which makes scenarios like
// "promote an entry while a supply turn is mid-iteration" trivial to drive
// from a test without touching the filesystem.
type InMemoryOverflowStore struct {
	lock               sync.Mutex
	entries            map[uint64]map[string]data.OverflowEntry
	overflowListeners  map[uint64]*listenerRegistry
	promotionListeners map[uint64]*listenerRegistry
}

func NewInMemoryOverflowStore() *InMemoryOverflowStore {
	return &InMemoryOverflowStore{
		entries:            make(map[uint64]map[string]data.OverflowEntry),
		overflowListeners:  make(map[uint64]*listenerRegistry),
		promotionListeners: make(map[uint64]*listenerRegistry),
	}
}

// Put spills entry into the overflow tier. Overwriting a key already
// present there fires the overflow channel with the entry being replaced,
// the same as an eviction: the old value is leaving overflow without
// being promoted.
func (s *InMemoryOverflowStore) Put(part uint64, entry data.OverflowEntry) {
	s.lock.Lock()

	if s.entries[part] == nil {
		s.entries[part] = make(map[string]data.OverflowEntry)
	}

	previous, overwritten := s.entries[part][entry.Key()]
	s.entries[part][entry.Key()] = entry
	registry := s.overflowListeners[part]

	s.lock.Unlock()

	if overwritten && registry != nil {
		registry.fire(previous)
	}
}

func (s *InMemoryOverflowStore) Enabled(part uint64) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.entries[part]) > 0
}

// Remove evicts an entry from overflow without promoting it, firing the
// overflow channel for any listener watching this partition. Removing a
// key that was never there is a harmless no-op.
func (s *InMemoryOverflowStore) Remove(part uint64, key string) error {
	s.lock.Lock()

	previous, existed := s.entries[part][key]
	delete(s.entries[part], key)
	registry := s.overflowListeners[part]

	s.lock.Unlock()

	if existed && registry != nil {
		registry.fire(previous)
	}

	return nil
}

// Promote removes the entry from overflow and notifies every registered
// promotion listener for this partition, mirroring what a real overflow
// tier does the instant an entry moves back into the in-memory tier. It
// deletes directly rather than going through Remove so promotion never
// also fires the overflow channel. Promoting a key that is not in
// overflow is a no-op.
func (s *InMemoryOverflowStore) Promote(part uint64, entry data.OverflowEntry) {
	s.lock.Lock()
	_, existed := s.entries[part][entry.Key()]
	delete(s.entries[part], entry.Key())
	registry := s.promotionListeners[part]
	s.lock.Unlock()

	if existed && registry != nil {
		registry.fire(entry)
	}
}

func (s *InMemoryOverflowStore) Iterator(part uint64, afterKey string) (OverflowIterator, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	keys := make([]string, 0, len(s.entries[part]))

	for key := range s.entries[part] {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	start := sort.SearchStrings(keys, afterKey)

	if afterKey != "" && start < len(keys) && keys[start] == afterKey {
		start++
	}

	snapshot := make([]data.OverflowEntry, 0, len(keys)-start)

	for _, key := range keys[start:] {
		snapshot = append(snapshot, s.entries[part][key])
	}

	return &inMemoryOverflowIterator{entries: snapshot}, nil
}

func (s *InMemoryOverflowStore) AddOverflowListener(part uint64, onOverflow func(data.OverflowEntry)) int {
	s.lock.Lock()
	defer s.lock.Unlock()

	registry, exists := s.overflowListeners[part]

	if !exists {
		registry = newListenerRegistry()
		s.overflowListeners[part] = registry
	}

	return registry.add(onOverflow)
}

func (s *InMemoryOverflowStore) RemoveOverflowListener(part uint64, token int) error {
	s.lock.Lock()
	registry, exists := s.overflowListeners[part]
	s.lock.Unlock()

	if !exists {
		return nil
	}

	registry.remove(token)

	return nil
}

func (s *InMemoryOverflowStore) AddPromotionListener(part uint64, onPromote func(data.OverflowEntry)) int {
	s.lock.Lock()
	defer s.lock.Unlock()

	registry, exists := s.promotionListeners[part]

	if !exists {
		registry = newListenerRegistry()
		s.promotionListeners[part] = registry
	}

	return registry.add(onPromote)
}

func (s *InMemoryOverflowStore) RemovePromotionListener(part uint64, token int) error {
	s.lock.Lock()
	registry, exists := s.promotionListeners[part]
	s.lock.Unlock()

	if !exists {
		return nil
	}

	registry.remove(token)

	return nil
}

type inMemoryOverflowIterator struct {
	entries []data.OverflowEntry
	pos     int
	closed  bool
}

func (it *inMemoryOverflowIterator) Next() (data.OverflowEntry, bool) {
	if it.closed || it.pos >= len(it.entries) {
		return data.OverflowEntry{}, false
	}

	entry := it.entries[it.pos]
	it.pos++

	return entry, true
}

func (it *inMemoryOverflowIterator) Close() error {
	it.closed = true

	return nil
}
