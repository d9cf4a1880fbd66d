package rebalance

import (
	"github.com/ashokrj/supplyd/cluster"
	"github.com/ashokrj/supplyd/data"
	"github.com/ashokrj/supplyd/deployment"
)

// SupplyMessage is the wire shape sent back on a demand's reply topic.
// Missed and Last are keyed by partition number; a partition never
// appears in both within the same message, and never in both across the
// whole stream for that partition.
type SupplyMessage struct {
	UpdateSequence  uint64
	TopologyVersion cluster.AffinityTopologyVersion
	Entries         map[uint64][]data.EntryInfo
	Missed          map[uint64]bool
	Last            map[uint64]bool
	DeploymentInfo  *deployment.DeploymentInfo
}

// SupplyMessageBuilder accumulates one outbound batch. A fresh builder is
// allocated every time a batch is rotated or a turn suspends; it is never
// reused across batches.
type SupplyMessageBuilder struct {
	updateSequence  uint64
	topologyVersion cluster.AffinityTopologyVersion
	entries         map[uint64][]data.EntryInfo
	missed          map[uint64]bool
	last            map[uint64]bool
	deploymentInfo  *deployment.DeploymentInfo
	sizeBytes       int
}

func NewSupplyMessageBuilder(updateSequence uint64, topologyVersion cluster.AffinityTopologyVersion) *SupplyMessageBuilder {
	return &SupplyMessageBuilder{
		updateSequence:  updateSequence,
		topologyVersion: topologyVersion,
		entries:         make(map[uint64][]data.EntryInfo),
		missed:          make(map[uint64]bool),
		last:            make(map[uint64]bool),
	}
}

func (b *SupplyMessageBuilder) addEntry(part uint64, info data.EntryInfo) {
	b.entries[part] = append(b.entries[part], info)
	b.sizeBytes += info.ApproximateSize()
}

// AddEntry appends an in-memory entry to the batch, in the order it was
// read from the partition.
func (b *SupplyMessageBuilder) AddEntry(part uint64, info data.EntryInfo) {
	b.addEntry(part, info)
}

// AddOverflowEntry appends an entry sourced from overflow. It behaves
// exactly like AddEntry and the wire shape is identical; the builder does
// not record which source an entry came from. Deployment info is attached
// separately, through SetDeploymentInfo.
func (b *SupplyMessageBuilder) AddOverflowEntry(part uint64, info data.EntryInfo) {
	b.addEntry(part, info)
}

// Missed marks p as no longer sourced by this node. Calling it more than
// once for the same partition has no additional effect.
func (b *SupplyMessageBuilder) Missed(part uint64) {
	b.missed[part] = true
}

// Last marks p's iteration as complete. Idempotent for the same reason as
// Missed.
func (b *SupplyMessageBuilder) Last(part uint64) {
	b.last[part] = true
}

// SetDeploymentInfo attaches deployment metadata to the batch. First call
// wins; a later call with a different value is ignored, matching the
// first-success latch semantics of the overflow scan that calls it.
func (b *SupplyMessageBuilder) SetDeploymentInfo(info deployment.DeploymentInfo) {
	if b.deploymentInfo != nil {
		return
	}

	b.deploymentInfo = &info
}

func (b *SupplyMessageBuilder) HasDeploymentInfo() bool {
	return b.deploymentInfo != nil
}

// MessageSize returns the sum of ApproximateSize over the entries added
// so far. It counts raw key and value bytes plus 32 bytes per entry, so it
// is not an upper bound on the JSON the supplier sends: the encoder
// base64-encodes byte slices and adds field names, partition keys and the
// Missed/Last maps, none of which are counted. Callers consult this after appending an
// entry to decide whether the batch is full, so a batch is never closed
// strictly below the configured limit: the entry that pushes it over is
// always included.
func (b *SupplyMessageBuilder) MessageSize() int {
	return b.sizeBytes
}

func (b *SupplyMessageBuilder) IsEmpty() bool {
	return len(b.entries) == 0 && len(b.missed) == 0 && len(b.last) == 0
}

func (b *SupplyMessageBuilder) Build() SupplyMessage {
	return SupplyMessage{
		UpdateSequence:  b.updateSequence,
		TopologyVersion: b.topologyVersion,
		Entries:         b.entries,
		Missed:          b.missed,
		Last:            b.last,
		DeploymentInfo:  b.deploymentInfo,
	}
}
