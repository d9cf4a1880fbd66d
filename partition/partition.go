package partition

import (
	"errors"

	"github.com/ashokrj/supplyd/data"
)

var EPartitionNotFound = errors.New("no such partition")
var EPartitionAlreadyReserved = errors.New("partition is already reserved by a concurrent supply turn")

// PartitionState mirrors the lifecycle a local partition moves through
// relative to an in-flight rebalance. The supplier only reserves a
// partition that is Owning; one in any other state is reported as missed.
// The state is checked when a turn first reserves the partition, not again
// while a suspended turn resumes on its existing reservation.
type PartitionState uint8

const (
	StateOwning PartitionState = iota
	StateMoving
	StateRenting
	StateEvicted
)

func (s PartitionState) String() string {
	switch s {
	case StateOwning:
		return "OWNING"
	case StateMoving:
		return "MOVING"
	case StateRenting:
		return "RENTING"
	case StateEvicted:
		return "EVICTED"
	default:
		return "UNKNOWN"
	}
}

// Partition is a single shard of the keyspace as seen locally. Reserve is a
// counted lease: any number of concurrent supply turns may reserve the same
// OWNING partition at once, and it cannot move to StateEvicted until every
// outstanding reservation has been released. Release must be called exactly
// once per successful Reserve.
type Partition interface {
	Number() uint64
	State() PartitionState
	Reserve() bool
	Release()
	Reservations() int
	Entries() EntryIterator
}

// EntryIterator walks a partition's in-memory entries in a stable order.
// A supply turn captures the iterator's position between calls to Next so
// a later turn can resume from exactly where the last one stopped.
type EntryIterator interface {
	Next() (data.EntryInfo, bool)
	Close() error
}
