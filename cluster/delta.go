package cluster

// ClusterStateDeltaType identifies the kind of change a ClusterController
// applied to its state. Subscribers use the type to decide whether a delta
// is relevant to them without inspecting the whole new state.
type ClusterStateDeltaType uint8

const (
	DeltaTypeNodeAdd ClusterStateDeltaType = iota
	DeltaTypeNodeRemove
	DeltaTypeTokensChanged
	DeltaTypePartitionCountChanged
	DeltaTypeReplicationFactorChanged
)

// ClusterStateDelta is emitted on the controller's delta channel every time
// AddNode, RemoveNode, TakePartitionReplica or SetReplicationFactor
// produces a new topology version. TopologyVersion is always the
// version that resulted from applying this delta.
type ClusterStateDelta struct {
	Type            ClusterStateDeltaType
	NodeID          uint64
	TopologyVersion AffinityTopologyVersion
}
