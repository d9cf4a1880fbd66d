package cluster

// AffinityTopologyVersion orders successive token assignments. Every change
// to cluster membership or partition count produces a new, strictly greater
// version; stale callers compare against the current version to detect that
// their view of ownership is out of date.
type AffinityTopologyVersion struct {
	Version uint64
}

func (v AffinityTopologyVersion) Equals(other AffinityTopologyVersion) bool {
	return v.Version == other.Version
}

func (v AffinityTopologyVersion) Less(other AffinityTopologyVersion) bool {
	return v.Version < other.Version
}

func (v AffinityTopologyVersion) Next() AffinityTopologyVersion {
	return AffinityTopologyVersion{Version: v.Version + 1}
}

// AffinityOracle answers the two questions the supply engine needs about
// ownership: what version of the assignment is current, and whether a given
// node is allowed to hold a given partition under that assignment.
type AffinityOracle interface {
	CurrentTopologyVersion() AffinityTopologyVersion
	Belongs(nodeID uint64, partition uint64, topologyVersion AffinityTopologyVersion) bool
	Owners(partition uint64) []uint64
	PartitionCount() uint64
}
