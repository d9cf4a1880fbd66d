package rebalance

import (
	"github.com/google/uuid"

	"github.com/ashokrj/supplyd/cluster"
)

// TopologySubscriber is the component that reacts to membership churn
// by tearing down supply contexts that no longer have anywhere to go.
// It is the only writer of the context store besides the demand handler.
type TopologySubscriber struct {
	contexts         *ContextStore
	membership       cluster.ClusterMembershipService
	threadPoolSize   int
	nodeIDToDemander func(nodeID uint64) uuid.UUID
}

// NewTopologySubscriber wires a TopologySubscriber to a membership
// service. nodeIDToDemander maps a failed or departed node's cluster id
// to the demander id it used when issuing demands, since contexts are
// keyed by demander id rather than node id.
func NewTopologySubscriber(contexts *ContextStore, membership cluster.ClusterMembershipService, threadPoolSize int, nodeIDToDemander func(nodeID uint64) uuid.UUID) *TopologySubscriber {
	return &TopologySubscriber{
		contexts:         contexts,
		membership:       membership,
		threadPoolSize:   threadPoolSize,
		nodeIDToDemander: nodeIDToDemander,
	}
}

// Start subscribes to the membership service and returns an unsubscribe
// function. NodeLeft, NodeFailed, and RebalanceStopped events all evict
// every worker slot's context for the affected node; there is no reason
// to distinguish them once a context needs tearing down.
func (t *TopologySubscriber) Start() func() {
	return t.membership.Subscribe(func(event cluster.MembershipEvent) {
		switch event.Type {
		case cluster.NodeLeft, cluster.NodeFailed, cluster.RebalanceStopped:
			t.evictNode(event.NodeID)
		}
	})
}

func (t *TopologySubscriber) evictNode(nodeID uint64) {
	demanderID := t.nodeIDToDemander(nodeID)

	for slot := 0; slot < t.threadPoolSize; slot++ {
		t.contexts.EvictKey(SupplyContextKey{DemanderID: demanderID, WorkerSlot: slot})
	}
}
