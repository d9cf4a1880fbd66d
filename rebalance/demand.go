package rebalance

import (
	"github.com/google/uuid"

	"github.com/ashokrj/supplyd/cluster"
)

// DemandMessage is what a demander sends to request one or more
// partitions. One (DemanderID, WorkerSlot) pair has at most one
// outstanding demand at a time; the demander enforces this on its side.
type DemandMessage struct {
	DemanderID      uuid.UUID
	NodeID          uint64
	WorkerSlot      int
	UpdateSequence  uint64
	TopologyVersion cluster.AffinityTopologyVersion
	Partitions      []uint64
	ReplyTopic      string
	TimeoutMillis   int
}

// SupplyContextKey identifies the one in-flight demand a stored
// SupplyContext belongs to.
type SupplyContextKey struct {
	DemanderID uuid.UUID
	WorkerSlot int
}

func (d DemandMessage) Key() SupplyContextKey {
	return SupplyContextKey{DemanderID: d.DemanderID, WorkerSlot: d.WorkerSlot}
}
