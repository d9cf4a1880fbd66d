package partition

import (
	"sort"
	"sync"

	"github.com/ashokrj/supplyd/data"
)

// LocalPartition is an in-memory reference implementation of Partition. It
// exists to exercise the rebalance engine in tests and as the default
// store backing for small deployments; a production store would page
// entries off disk instead of holding them all in a map.
type LocalPartition struct {
	lock         sync.Mutex
	number       uint64
	state        PartitionState
	entries      map[string]data.EntryInfo
	keys         []string
	reservations int
}

func NewLocalPartition(number uint64) *LocalPartition {
	return &LocalPartition{
		number:  number,
		state:   StateOwning,
		entries: make(map[string]data.EntryInfo),
	}
}

func (p *LocalPartition) Number() uint64 {
	return p.number
}

func (p *LocalPartition) State() PartitionState {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.state
}

func (p *LocalPartition) SetState(state PartitionState) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.state = state
}

// Reserve takes out a counted lease against eviction. Any number of
// concurrent supply turns may hold a reservation on the same OWNING
// partition at once; the partition cannot move to StateEvicted until every
// outstanding reservation is released. It fails only once the partition
// has already moved to StateEvicted.
func (p *LocalPartition) Reserve() bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.state == StateEvicted {
		return false
	}

	p.reservations++

	return true
}

// Release gives up one reservation taken out by Reserve. It must be called
// exactly once per successful Reserve.
func (p *LocalPartition) Release() {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.reservations > 0 {
		p.reservations--
	}
}

// Reservations reports how many reservations are currently outstanding.
// A partition store uses this to tell a busy partition (EPartitionAlreadyReserved)
// apart from one it can evict immediately.
func (p *LocalPartition) Reservations() int {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.reservations
}

func (p *LocalPartition) Put(entry data.EntryInfo) {
	p.lock.Lock()
	defer p.lock.Unlock()

	key := entry.Key()

	if _, exists := p.entries[key]; !exists {
		p.keys = append(p.keys, key)
		sort.Strings(p.keys)
	}

	p.entries[key] = entry
}

func (p *LocalPartition) Remove(key string) {
	p.lock.Lock()
	defer p.lock.Unlock()

	delete(p.entries, key)

	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)

			break
		}
	}
}

func (p *LocalPartition) Entries() EntryIterator {
	p.lock.Lock()
	defer p.lock.Unlock()

	snapshot := make([]data.EntryInfo, 0, len(p.keys))

	for _, key := range p.keys {
		snapshot = append(snapshot, p.entries[key])
	}

	return &sliceIterator{entries: snapshot}
}

// EntriesFrom returns an iterator over the entries whose keys sort after
// afterKey. The supplier does not use it: a suspended turn keeps the
// iterator returned by Entries in its context instead.
func (p *LocalPartition) EntriesFrom(afterKey string) EntryIterator {
	p.lock.Lock()
	defer p.lock.Unlock()

	start := sort.SearchStrings(p.keys, afterKey)

	if start < len(p.keys) && p.keys[start] == afterKey {
		start++
	}

	snapshot := make([]data.EntryInfo, 0, len(p.keys)-start)

	for _, key := range p.keys[start:] {
		snapshot = append(snapshot, p.entries[key])
	}

	return &sliceIterator{entries: snapshot}
}

type sliceIterator struct {
	entries []data.EntryInfo
	pos     int
	closed  bool
}

func (it *sliceIterator) Next() (data.EntryInfo, bool) {
	if it.closed || it.pos >= len(it.entries) {
		return data.EntryInfo{}, false
	}

	entry := it.entries[it.pos]
	it.pos++

	return entry, true
}

func (it *sliceIterator) Close() error {
	it.closed = true

	return nil
}
