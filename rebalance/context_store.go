package rebalance

import "sync"

// ContextStore is the concurrent (demanderId, workerSlot) -> SupplyContext
// map the demand handler and the topology subscriber both write to. A
// demander has at most one outstanding demand per worker slot, so the
// handler never needs to lock an individual context beyond what this
// store's own mutex provides.
type ContextStore struct {
	lock     sync.Mutex
	contexts map[SupplyContextKey]*SupplyContext
}

func NewContextStore() *ContextStore {
	return &ContextStore{
		contexts: make(map[SupplyContextKey]*SupplyContext),
	}
}

func (s *ContextStore) Get(key SupplyContextKey) (*SupplyContext, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	ctx, exists := s.contexts[key]

	return ctx, exists
}

func (s *ContextStore) Put(ctx *SupplyContext) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.contexts[ctx.Key] = ctx
}

// RemoveIf removes and evicts the context at key only if it is still the
// expected value. Eviction is idempotent, so calling RemoveIf again for a
// key already removed is harmless.
func (s *ContextStore) RemoveIf(key SupplyContextKey, expected *SupplyContext) bool {
	s.lock.Lock()

	current, exists := s.contexts[key]

	if !exists || current != expected {
		s.lock.Unlock()

		return false
	}

	delete(s.contexts, key)
	s.lock.Unlock()

	current.evict()

	return true
}

// Take removes the context at key without evicting it, handing
// ownership of its resources to the caller. Used when a context is about
// to be resumed rather than discarded: the caller is responsible for
// either storing a (possibly new) context back or evicting the one it
// took.
func (s *ContextStore) Take(key SupplyContextKey, expected *SupplyContext) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	current, exists := s.contexts[key]

	if !exists || current != expected {
		return false
	}

	delete(s.contexts, key)

	return true
}

// EvictKey removes whatever context is currently stored at key,
// regardless of identity, and evicts it. Used by the topology subscriber,
// which only has a key, not the context pointer it expects to find there.
func (s *ContextStore) EvictKey(key SupplyContextKey) {
	s.lock.Lock()
	ctx, exists := s.contexts[key]

	if exists {
		delete(s.contexts, key)
	}

	s.lock.Unlock()

	if exists {
		ctx.evict()
	}
}

func (s *ContextStore) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.contexts)
}
