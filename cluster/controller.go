package cluster

import (
	"sort"
	"sync"

	"github.com/ashokrj/supplyd/logging"
)

// ClusterState is the controller's view of membership and token placement
// at a single topology version. State returns it by value, and every
// membership or replication change installs a new node list and token
// assignment, so a reader that captured a ClusterState value can keep
// using it without locking.
type ClusterState struct {
	Nodes             []NodeConfig
	TokenAssignment   []uint64
	PartitionCount    uint64
	ReplicationFactor uint64
	TopologyVersion   AffinityTopologyVersion
}

// ClusterController owns the authoritative ClusterState for this process
// and is the only writer of it. It satisfies AffinityOracle so the supply
// engine can ask it ownership questions directly.
type ClusterController struct {
	lock     sync.RWMutex
	state    ClusterState
	strategy PartitioningStrategy
	deltas   chan ClusterStateDelta
}

func NewClusterController(partitionCount uint64, replicationFactor uint64) *ClusterController {
	return &ClusterController{
		state: ClusterState{
			Nodes:             nil,
			TokenAssignment:   make([]uint64, partitionCount),
			PartitionCount:    partitionCount,
			ReplicationFactor: replicationFactor,
			TopologyVersion:   AffinityTopologyVersion{Version: 1},
		},
		strategy: &SimplePartitioningStrategy{},
		deltas:   make(chan ClusterStateDelta, 64),
	}
}

// Deltas returns the channel a topology subscriber reads from. Sends are
// non-blocking from the controller's perspective: the channel is buffered
// and, when it is full, the new delta is dropped (and a warning logged)
// rather than stalling the change that produced it.
func (c *ClusterController) Deltas() <-chan ClusterStateDelta {
	return c.deltas
}

func (c *ClusterController) publish(delta ClusterStateDelta) {
	select {
	case c.deltas <- delta:
	default:
		logging.Log.Warningf("dropping cluster delta, subscriber channel is full: %+v", delta)
	}
}

func (c *ClusterController) State() ClusterState {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.state
}

func (c *ClusterController) CurrentTopologyVersion() AffinityTopologyVersion {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.state.TopologyVersion
}

func (c *ClusterController) PartitionCount() uint64 {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.state.PartitionCount
}

func (c *ClusterController) Owners(partition uint64) []uint64 {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.strategy.Owners(c.state.TokenAssignment, partition, c.state.ReplicationFactor)
}

func (c *ClusterController) Belongs(nodeID uint64, partition uint64, topologyVersion AffinityTopologyVersion) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if !c.state.TopologyVersion.Equals(topologyVersion) {
		return false
	}

	for _, owner := range c.strategy.Owners(c.state.TokenAssignment, partition, c.state.ReplicationFactor) {
		if owner == nodeID {
			return true
		}
	}

	return false
}

// AddNode inserts a new node into the cluster and reassigns tokens,
// producing a new topology version. Nodes must stay sorted by NodeID for
// the partitioning strategy's preconditions to hold.
func (c *ClusterController) AddNode(node NodeConfig) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	nodes := append(append([]NodeConfig{}, c.state.Nodes...), node)

	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].NodeID < nodes[j].NodeID
	})

	assignment, err := c.strategy.AssignTokens(nodes, c.state.TokenAssignment, c.state.PartitionCount)

	if err != nil {
		return err
	}

	c.recordAssignment(nodes, assignment)
	c.publish(ClusterStateDelta{Type: DeltaTypeNodeAdd, NodeID: node.NodeID, TopologyVersion: c.state.TopologyVersion})

	return nil
}

// RemoveNode evicts a node from the cluster, freeing its tokens for
// reassignment among the remaining nodes.
func (c *ClusterController) RemoveNode(nodeID uint64) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	nodes := make([]NodeConfig, 0, len(c.state.Nodes))

	for _, node := range c.state.Nodes {
		if node.NodeID == nodeID {
			continue
		}

		nodes = append(nodes, node)
	}

	assignment := append([]uint64{}, c.state.TokenAssignment...)

	for token, owner := range assignment {
		if owner == nodeID {
			assignment[token] = 0
		}
	}

	reassigned, err := c.strategy.AssignTokens(nodes, assignment, c.state.PartitionCount)

	if err != nil {
		return err
	}

	c.recordAssignment(nodes, reassigned)
	c.publish(ClusterStateDelta{Type: DeltaTypeNodeRemove, NodeID: nodeID, TopologyVersion: c.state.TopologyVersion})

	return nil
}

// TakePartitionReplica marks a decommissioning node's capacity as zero so
// the next AssignTokens call drains its tokens without removing it from
// the membership list outright.
func (c *ClusterController) TakePartitionReplica(nodeID uint64) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	nodes := append([]NodeConfig{}, c.state.Nodes...)

	for i := range nodes {
		if nodes[i].NodeID == nodeID {
			nodes[i].Capacity = 0
		}
	}

	assignment, err := c.strategy.AssignTokens(nodes, c.state.TokenAssignment, c.state.PartitionCount)

	if err != nil {
		return err
	}

	c.recordAssignment(nodes, assignment)
	c.publish(ClusterStateDelta{Type: DeltaTypeTokensChanged, NodeID: nodeID, TopologyVersion: c.state.TopologyVersion})

	return nil
}

func (c *ClusterController) SetReplicationFactor(replicationFactor uint64) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.state.ReplicationFactor = replicationFactor
	c.state.TopologyVersion = c.state.TopologyVersion.Next()
	c.publish(ClusterStateDelta{Type: DeltaTypeReplicationFactorChanged, TopologyVersion: c.state.TopologyVersion})
}

func (c *ClusterController) recordAssignment(nodes []NodeConfig, assignment []uint64) {
	for i := range nodes {
		nodes[i].Tokens = make(map[uint64]bool)
	}

	for token, owner := range assignment {
		for i := range nodes {
			if nodes[i].NodeID == owner {
				nodes[i].Tokens[uint64(token)] = true
			}
		}
	}

	c.state.Nodes = nodes
	c.state.TokenAssignment = assignment
	c.state.TopologyVersion = c.state.TopologyVersion.Next()
}
