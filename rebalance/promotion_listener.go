package rebalance

import (
	"sync"

	"github.com/ashokrj/supplyd/data"
	"github.com/ashokrj/supplyd/overflow"
)

// promotionListener is registered on the overflow store when a partition
// is first reserved and stays registered through phases 1 and 2; it is
// deregistered as phase 3 begins. It buffers every entry promoted out of overflow while it is
// active so phase 3 can replay them after phase 2 has already scanned a
// now-stale snapshot of the overflow tier. Entries are captured in their
// post-promotion, in-memory shape: once promoted, an entry is no
// different from one phase 1 would have read directly.
type promotionListener struct {
	lock           sync.Mutex
	buffer         []data.EntryInfo
	part           uint64
	store          overflow.OverflowStore
	overflowToken  int
	promotionToken int
	registered     bool
}

// registerPromotionListener attaches a promotionListener to both of the
// given partition's overflow store listener channels, so the buffer
// captures an entry whether it left overflow by promotion or by eviction
// or overwrite. Callers must call deregister exactly once before draining
// entries(), even if deregister is also called again later on an exit
// path — deregistration is idempotent.
func registerPromotionListener(store overflow.OverflowStore, part uint64) *promotionListener {
	l := &promotionListener{part: part, store: store}

	capture := func(entry data.OverflowEntry) {
		l.lock.Lock()
		l.buffer = append(l.buffer, entry.ToEntryInfo())
		l.lock.Unlock()
	}

	l.overflowToken = store.AddOverflowListener(part, capture)
	l.promotionToken = store.AddPromotionListener(part, capture)
	l.registered = true

	return l
}

// deregister is safe to call more than once; only the first call has any
// effect.
func (l *promotionListener) deregister() {
	l.lock.Lock()
	defer l.lock.Unlock()

	if !l.registered {
		return
	}

	l.registered = false
	l.store.RemoveOverflowListener(l.part, l.overflowToken)
	l.store.RemovePromotionListener(l.part, l.promotionToken)
}

// entries returns the buffered sequence. It is meant to be read exactly
// once, in phase 3, after deregister has already run.
func (l *promotionListener) entries() []data.EntryInfo {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.buffer
}
