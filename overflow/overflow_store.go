package overflow

import (
	"errors"

	"github.com/ashokrj/supplyd/data"
)

var EOverflowDisabled = errors.New("overflow store is not enabled for this partition")
var EListenerNotFound = errors.New("no such promotion listener")

// OverflowIterator walks the entries a partition has spilled to its
// overflow tier, in key order, so a supply turn's cursor can resume from
// an exact key across separate calls.
type OverflowIterator interface {
	Next() (data.OverflowEntry, bool)
	Close() error
}

// OverflowStore is the off-heap/on-disk tier a partition spills to once
// its in-memory footprint is exceeded. Enabled reports whether this tier
// is in use at all for a partition; most deployments never touch it.
type OverflowStore interface {
	Enabled(part uint64) bool
	Iterator(part uint64, afterKey string) (OverflowIterator, error)
	Remove(part uint64, key string) error

	// AddOverflowListener registers a callback fired whenever an entry
	// already spilled to this partition's overflow tier is evicted or
	// overwritten without being promoted, so a listener watching both
	// channels sees every way an entry can leave overflow while it is
	// registered. The returned token is passed to RemoveOverflowListener.
	AddOverflowListener(part uint64, onOverflow func(data.OverflowEntry)) int
	RemoveOverflowListener(part uint64, token int) error

	// AddPromotionListener registers a callback fired exactly once per key
	// the instant it is promoted out of overflow and back into the
	// in-memory tier, so a supply turn whose in-memory scan has already
	// passed an entry's slot can still pick up entries that move out from
	// under it before its overflow scan reaches them. The returned token is passed
	// to RemovePromotionListener.
	AddPromotionListener(part uint64, onPromote func(data.OverflowEntry)) int
	RemovePromotionListener(part uint64, token int) error
}
