package overflow

import (
	"sync"

	"github.com/ashokrj/supplyd/data"
)

// listenerRegistry tracks the callbacks registered against a single
// partition on one event channel (overflow or promotion; each store
// keeps one registry per channel per partition). Removing a token that
// was already removed, or was never registered, is a no-op rather than
// an error, so a caller tearing down defensively does not have to track
// whether it already removed its token.
type listenerRegistry struct {
	lock      sync.Mutex
	nextToken int
	listeners map[int]func(data.OverflowEntry)
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{
		listeners: make(map[int]func(data.OverflowEntry)),
	}
}

func (r *listenerRegistry) add(onEvent func(data.OverflowEntry)) int {
	r.lock.Lock()
	defer r.lock.Unlock()

	token := r.nextToken
	r.nextToken++
	r.listeners[token] = onEvent

	return token
}

// remove is idempotent: removing an already-removed or unknown token
// simply returns false instead of EListenerNotFound, so callers that
// remove defensively on every teardown path don't need to track whether
// they already did.
func (r *listenerRegistry) remove(token int) bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, exists := r.listeners[token]; !exists {
		return false
	}

	delete(r.listeners, token)

	return true
}

func (r *listenerRegistry) fire(entry data.OverflowEntry) {
	r.lock.Lock()
	listeners := make([]func(data.OverflowEntry), 0, len(r.listeners))

	for _, listener := range r.listeners {
		listeners = append(listeners, listener)
	}
	r.lock.Unlock()

	for _, listener := range listeners {
		listener(entry)
	}
}
