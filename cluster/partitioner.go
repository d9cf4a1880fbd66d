package cluster

import (
	"errors"
	"math/bits"
	"sort"
	"sync"

	. "github.com/ashokrj/supplyd/data"
)

const MaxPartitionCount uint64 = 65536
const DefaultPartitionCount uint64 = 1024
const MinPartitionCount uint64 = 64

var EPreconditionFailed = errors.New("unable to validate precondition")
var ENoNodesAvailable = errors.New("unable to assign tokens because there are no available nodes in the cluster")

// PartitioningStrategy assigns keyspace tokens to nodes and answers
// ownership queries for a given token assignment.
type PartitioningStrategy interface {
	AssignTokens(nodes []NodeConfig, currentTokenAssignment []uint64, partitions uint64) ([]uint64, error)
	Owners(tokenAssignment []uint64, partition uint64, replicationFactor uint64) []uint64
	Partition(key string, partitionCount uint64) uint64
}

// nodeQuota is one node's target share of the partition space for a single
// AssignTokens call, proportional to its capacity, alongside how many
// tokens it currently holds against that share.
type nodeQuota struct {
	nodeID uint64
	quota  uint64
	held   uint64
}

func (q *nodeQuota) deficit() uint64 {
	if q.held >= q.quota {
		return 0
	}

	return q.quota - q.held
}

// SimplePartitioningStrategy spreads partitions across nodes in proportion
// to their capacity, draining tokens away from decommissioning nodes
// (Capacity == 0) and from any node whose capacity shrank since the last
// assignment.
type SimplePartitioningStrategy struct {
	shiftAmount int
	lock        sync.Mutex
}

// validateTopology rejects an AssignTokens call whose inputs couldn't have
// come from a real cluster controller: an unsorted or duplicate node list,
// a current assignment sized for a different partition count, or a token
// pointing at a node that isn't in nodes.
func (ps *SimplePartitioningStrategy) validateTopology(nodes []NodeConfig, currentAssignments []uint64, partitions uint64) error {
	if nodes == nil || partitions == 0 || uint64(len(currentAssignments)) != partitions {
		return EPreconditionFailed
	}

	known := make(map[uint64]bool, len(nodes))
	var previousID uint64

	for i, node := range nodes {
		if i > 0 && node.NodeID <= previousID {
			return EPreconditionFailed
		}

		previousID = node.NodeID
		known[node.NodeID] = true
	}

	for _, owner := range currentAssignments {
		if owner != 0 && !known[owner] {
			return EPreconditionFailed
		}
	}

	return nil
}

// quotas divides partitions across nodes proportionally to capacity.
// Integer division leaves a remainder of partitions unassigned to any
// quota; those go one at a time to the nodes with the most capacity, so
// the largest nodes absorb the rounding instead of the smallest.
func (ps *SimplePartitioningStrategy) quotas(nodes []NodeConfig, partitions uint64) []nodeQuota {
	quotas := make([]nodeQuota, len(nodes))

	var totalCapacity uint64

	for i, node := range nodes {
		quotas[i].nodeID = node.NodeID
		totalCapacity += node.Capacity
	}

	if totalCapacity == 0 {
		return quotas
	}

	var assigned uint64

	for i, node := range nodes {
		if node.Capacity == 0 {
			continue
		}

		quotas[i].quota = node.Capacity * partitions / totalCapacity
		assigned += quotas[i].quota
	}

	byCapacityDesc := make([]int, len(nodes))

	for i := range byCapacityDesc {
		byCapacityDesc[i] = i
	}

	sort.SliceStable(byCapacityDesc, func(a, b int) bool {
		return nodes[byCapacityDesc[a]].Capacity > nodes[byCapacityDesc[b]].Capacity
	})

	for _, i := range byCapacityDesc {
		if assigned >= partitions {
			break
		}

		if nodes[i].Capacity == 0 {
			continue
		}

		quotas[i].quota++
		assigned++
	}

	return quotas
}

// AssignTokens rebuilds the token-to-node assignment for the given
// topology. Tokens already pointing at a node that still has a positive
// quota stay put; everything else — unassigned tokens, tokens orphaned by
// a removed node, and tokens held in excess of a shrunk quota — is handed
// to whichever node is furthest below its own quota.
func (ps *SimplePartitioningStrategy) AssignTokens(nodes []NodeConfig, currentAssignments []uint64, partitions uint64) ([]uint64, error) {
	if err := ps.validateTopology(nodes, currentAssignments, partitions); err != nil {
		return nil, err
	}

	quotas := ps.quotas(nodes, partitions)
	byNode := make(map[uint64]*nodeQuota, len(quotas))

	var totalQuota uint64

	for i := range quotas {
		byNode[quotas[i].nodeID] = &quotas[i]
		totalQuota += quotas[i].quota
	}

	if totalQuota == 0 {
		return nil, ENoNodesAvailable
	}

	assignments := append([]uint64{}, currentAssignments...)

	for token, owner := range assignments {
		quota, exists := byNode[owner]

		if owner == 0 || !exists {
			assignments[token] = 0
			continue
		}

		if quota.held < quota.quota {
			quota.held++
			continue
		}

		assignments[token] = 0
	}

	mostNeeded := func() *nodeQuota {
		var best *nodeQuota

		for i := range quotas {
			if quotas[i].deficit() == 0 {
				continue
			}

			if best == nil || quotas[i].deficit() > best.deficit() {
				best = &quotas[i]
			}
		}

		return best
	}

	for token, owner := range assignments {
		if owner != 0 {
			continue
		}

		recipient := mostNeeded()

		if recipient == nil {
			break
		}

		assignments[token] = recipient.nodeID
		recipient.held++
	}

	return assignments, nil
}

// Owners returns up to replicationFactor distinct node IDs responsible for
// partition, walking the ring clockwise from partition's own slot. If
// fewer than replicationFactor distinct owners are found — because some
// tokens are still unassigned — the owners that were found are cycled to
// pad the result out to the requested length.
func (ps *SimplePartitioningStrategy) Owners(tokenAssignment []uint64, partition uint64, replicationFactor uint64) []uint64 {
	if tokenAssignment == nil || partition >= uint64(len(tokenAssignment)) {
		return []uint64{}
	}

	ring := len(tokenAssignment)
	seen := make(map[uint64]bool, replicationFactor)
	owners := make([]uint64, 0, replicationFactor)

	for step := 0; step < ring; step++ {
		candidate := tokenAssignment[(int(partition)+step)%ring]

		if candidate == 0 || seen[candidate] {
			continue
		}

		seen[candidate] = true
		owners = append(owners, candidate)

		if uint64(len(owners)) == replicationFactor {
			return owners
		}
	}

	found := len(owners)

	for found > 0 && uint64(len(owners)) < replicationFactor {
		owners = append(owners, owners[len(owners)-found])
	}

	return owners
}

// Partition hashes key into the ring and maps it down to a partition index
// by discarding the low bits the partition count doesn't need.
func (ps *SimplePartitioningStrategy) Partition(key string, partitionCount uint64) uint64 {
	hash := NewHash([]byte(key)).High()

	return hash >> uint(ps.CalculateShiftAmount(partitionCount))
}

// CalculateShiftAmount computes, and caches, how many low bits of a 64-bit
// hash to discard so the remaining bits span exactly partitionCount
// buckets. It is computed once per strategy instance since partitionCount
// never changes for the lifetime of a cluster.
func (ps *SimplePartitioningStrategy) CalculateShiftAmount(partitionCount uint64) int {
	ps.lock.Lock()
	defer ps.lock.Unlock()

	if ps.shiftAmount != 0 {
		return ps.shiftAmount
	}

	ps.shiftAmount = 65 - bits.Len64(partitionCount)

	return ps.shiftAmount
}
