package cluster

import (
	"sync"

	"github.com/google/uuid"
)

// DemanderRegistry tracks which demander identity a cluster node is
// currently issuing demands under. Contexts are keyed by demander id, but
// membership events only name a node id, so a topology subscriber needs
// this mapping to turn "node 7 left" into the SupplyContextKey it must
// evict.
type DemanderRegistry struct {
	lock   sync.RWMutex
	byNode map[uint64]uuid.UUID
}

func NewDemanderRegistry() *DemanderRegistry {
	return &DemanderRegistry{byNode: make(map[uint64]uuid.UUID)}
}

// Record associates nodeID with demanderID, overwriting any previous
// entry. Called once per inbound demand, so the mapping always reflects
// whichever demander identity the node most recently used.
func (r *DemanderRegistry) Record(nodeID uint64, demanderID uuid.UUID) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.byNode[nodeID] = demanderID
}

// Lookup returns the demander identity recorded for nodeID, or uuid.Nil if
// that node has never issued a demand.
func (r *DemanderRegistry) Lookup(nodeID uint64) uuid.UUID {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.byNode[nodeID]
}
