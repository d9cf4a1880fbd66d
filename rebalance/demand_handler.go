package rebalance

import (
	"github.com/ashokrj/supplyd/cluster"
	"github.com/ashokrj/supplyd/logging"
)

// DemandHandler is the entry point the message bus calls into whenever a
// demand message arrives. It applies the preconditions from the
// algorithm, looks up or discards the stored context, and drives the
// Supplier. Internal failures are logged and swallowed: the demander
// notices nothing went out and simply reissues.
type DemandHandler struct {
	affinity  cluster.AffinityOracle
	contexts  *ContextStore
	supplier  *Supplier
	config    Config
	demanders *cluster.DemanderRegistry
}

// NewDemandHandler wires a DemandHandler. demanders may be nil, in which
// case node-to-demander tracking is skipped and a TopologySubscriber
// relying on it will never find anything to evict — production wiring
// should always supply a live registry.
func NewDemandHandler(affinity cluster.AffinityOracle, contexts *ContextStore, supplier *Supplier, config Config, demanders *cluster.DemanderRegistry) *DemandHandler {
	return &DemandHandler{
		affinity:  affinity,
		contexts:  contexts,
		supplier:  supplier,
		config:    config,
		demanders: demanders,
	}
}

// Handle processes one demand message end to end. It never panics: any
// unexpected failure from a collaborator is caught, logged, and the
// demand is abandoned rather than propagated to the caller.
func (h *DemandHandler) Handle(demand DemandMessage) {
	defer func() {
		if r := recover(); r != nil {
			logging.Log.Errorf("%v servicing demand from %s/%d: %v", EInternalFailure, demand.DemanderID, demand.WorkerSlot, r)
		}
	}()

	if h.demanders != nil {
		h.demanders.Record(demand.NodeID, demand.DemanderID)
	}

	if !h.affinity.CurrentTopologyVersion().Equals(demand.TopologyVersion) {
		logging.Log.Debugf("dropping demand from %s/%d: stale topology version", demand.DemanderID, demand.WorkerSlot)

		return
	}

	key := demand.Key()
	ctx, exists := h.contexts.Get(key)

	if exists && !ctx.TopologyVersion.Equals(demand.TopologyVersion) {
		h.contexts.RemoveIf(key, ctx)
		exists = false
		ctx = nil
	}

	if !exists && len(demand.Partitions) == 0 {
		return
	}

	maxBatches := h.config.RebalanceBatchesCount

	var current *SupplyContext

	if exists {
		maxBatches = 1

		if h.contexts.Take(key, ctx) {
			current = ctx
		}
	}

	newContext, recipientGone := h.supplier.runTurn(demand, current, maxBatches)

	if recipientGone {
		recordContextStoreSize(h.contexts.Len())

		return
	}

	if newContext != nil {
		h.contexts.Put(newContext)
	}

	recordContextStoreSize(h.contexts.Len())
}
