package rebalance

import (
	"encoding/json"
	"time"

	"github.com/ashokrj/supplyd/cluster"
	"github.com/ashokrj/supplyd/data"
	"github.com/ashokrj/supplyd/deployment"
	"github.com/ashokrj/supplyd/logging"
	"github.com/ashokrj/supplyd/messagebus"
	"github.com/ashokrj/supplyd/overflow"
	"github.com/ashokrj/supplyd/partition"
)

// phaseOutcome is what draining one source (in-memory, overflow, or the
// promotion buffer) for one partition produced.
type phaseOutcome int

const (
	phaseDone phaseOutcome = iota
	phaseOwnershipLost
	phaseSuspended
	phaseRecipientGone
)

// partitionStatus is runPartition's verdict for one partition within a
// turn.
type partitionStatus int

const (
	statusCompleted partitionStatus = iota
	statusMissed
	statusSuspended
	statusRecipientGone
)

type partitionResult struct {
	status            partitionStatus
	cursor            EntryCursor
	listener          *promotionListener
	reservedPartition partition.Partition
}

// pendingPartition is one partition's worth of work for a turn, either
// fresh (reservedPartition nil) or carried over from a suspended context.
type pendingPartition struct {
	part              uint64
	reservedPartition partition.Partition
	listener          *promotionListener
	cursor            EntryCursor
	hasCursor         bool
}

// Supplier is the per-node instance of the four-phase supply state
// machine (component D) and the reservation logic that backs it. One
// Supplier is shared by every worker slot; the context store, not the
// Supplier, carries per-slot state.
type Supplier struct {
	localNodeID      uint64
	affinity         cluster.AffinityOracle
	partitionStore   partition.PartitionStore
	overflowStore    overflow.OverflowStore
	deploymentLoader deployment.Loader
	bus              messagebus.MessageBus
	config           Config
	preloadPredicate func(data.EntryInfo) bool
}

func NewSupplier(localNodeID uint64, affinity cluster.AffinityOracle, partitionStore partition.PartitionStore, overflowStore overflow.OverflowStore, deploymentLoader deployment.Loader, bus messagebus.MessageBus, config Config) *Supplier {
	return &Supplier{
		localNodeID:      localNodeID,
		affinity:         affinity,
		partitionStore:   partitionStore,
		overflowStore:    overflowStore,
		deploymentLoader: deploymentLoader,
		bus:              bus,
		config:           config,
	}
}

// SetPreloadPredicate installs an optional filter consulted before an
// in-memory or overflow entry is admitted to a batch. A nil predicate (the
// default) admits everything.
func (s *Supplier) SetPreloadPredicate(predicate func(data.EntryInfo) bool) {
	s.preloadPredicate = predicate
}

func (s *Supplier) reservePartition(part uint64, topologyVersion cluster.AffinityTopologyVersion) (partition.Partition, ReserveOutcome) {
	p, err := s.partitionStore.LocalPartition(part, topologyVersion, false)

	if err != nil {
		return nil, NotPresent
	}

	if p.State() != partition.StateOwning {
		return nil, NotOwner
	}

	if !s.affinity.Belongs(s.localNodeID, part, topologyVersion) {
		return nil, NotOwner
	}

	if !p.Reserve() {
		return nil, NotOwner
	}

	return p, Reserved
}

func (s *Supplier) encode(msg SupplyMessage) []byte {
	payload, err := json.Marshal(msg)

	if err != nil {
		logging.Log.Errorf("unable to encode supply message: %v", err)

		return nil
	}

	return payload
}

func (s *Supplier) send(demand DemandMessage, builder *SupplyMessageBuilder) messagebus.SendOutcome {
	msg := builder.Build()
	payload := s.encode(msg)

	outcome := s.bus.SendOrdered(demand.DemanderID.String(), demand.ReplyTopic, payload, messagebus.PolicyBulk, demand.TimeoutMillis)

	if outcome == messagebus.Delivered {
		recordBatchSent("delivered", builder.MessageSize())
	} else {
		recordBatchSent("recipient_gone", builder.MessageSize())
	}

	return outcome
}

// closeIterator closes it and logs a failure rather than propagating it:
// the supplier's error taxonomy treats a close failure as something to
// log and otherwise ignore, since eviction of the partition and listener
// proceeds either way.
func closeIterator(it interface{ Close() error }) {
	if err := it.Close(); err != nil {
		logging.Log.Warningf("error closing iterator: %v", err)
	}
}

func (s *Supplier) throttle() {
	if s.config.RebalanceThrottleMillis > 0 {
		time.Sleep(time.Duration(s.config.RebalanceThrottleMillis) * time.Millisecond)
	}
}

// finalizeSend transmits the turn's final batch. Unlike a mid-turn
// rotation, this send is never followed by a throttle sleep: throttling
// only happens between batches within a turn, not after the last one.
func (s *Supplier) finalizeSend(demand DemandMessage, builder *SupplyMessageBuilder) bool {
	if builder.IsEmpty() {
		return true
	}

	return s.send(demand, builder) == messagebus.Delivered
}

// drainEntryInfoSource is shared by the in-memory and promotion-drain
// phases: both iterate a sequence of already-resolved data.EntryInfo
// values under identical ownership-recheck, predicate, and saturation
// rules. The overflow phase is similar in shape but reads OverflowEntry
// and additionally resolves deployment info, so it is not folded into
// this helper.
func (s *Supplier) drainEntryInfoSource(demand DemandMessage, part uint64, next func() (data.EntryInfo, bool), makeCursor func() EntryCursor, builder **SupplyMessageBuilder, batchesSent *int, maxBatches int) (phaseOutcome, EntryCursor) {
	for {
		entry, ok := next()

		if !ok {
			return phaseDone, EntryCursor{}
		}

		if !s.affinity.Belongs(s.localNodeID, part, demand.TopologyVersion) {
			return phaseOwnershipLost, EntryCursor{}
		}

		if s.preloadPredicate != nil && !s.preloadPredicate(entry) {
			continue
		}

		if entry.IsNew {
			continue
		}

		(*builder).AddEntry(part, entry)

		if (*builder).MessageSize() < s.config.RebalanceBatchSize {
			continue
		}

		*batchesSent++

		if *batchesSent >= maxBatches {
			return phaseSuspended, makeCursor()
		}

		if s.send(demand, *builder) == messagebus.RecipientGone {
			return phaseRecipientGone, EntryCursor{}
		}

		s.throttle()
		*builder = NewSupplyMessageBuilder(demand.UpdateSequence, demand.TopologyVersion)
	}
}

func (s *Supplier) drainOverflow(demand DemandMessage, part uint64, it overflow.OverflowIterator, builder **SupplyMessageBuilder, batchesSent *int, maxBatches int) (phaseOutcome, EntryCursor) {
	for {
		oe, ok := it.Next()

		if !ok {
			return phaseDone, EntryCursor{}
		}

		if !s.affinity.Belongs(s.localNodeID, part, demand.TopologyVersion) {
			return phaseOwnershipLost, EntryCursor{}
		}

		info := oe.ToEntryInfo()

		if s.preloadPredicate != nil && !s.preloadPredicate(info) {
			continue
		}

		if !(*builder).HasDeploymentInfo() && oe.KeyClassLoaderID != "" {
			deploymentInfo, err := s.deploymentLoader.Load(oe.KeyClassLoaderID)

			if err == nil {
				(*builder).SetDeploymentInfo(deploymentInfo)
			}
		}

		(*builder).AddOverflowEntry(part, info)

		if (*builder).MessageSize() < s.config.RebalanceBatchSize {
			continue
		}

		*batchesSent++

		if *batchesSent >= maxBatches {
			return phaseSuspended, overflowCursor(it)
		}

		if s.send(demand, *builder) == messagebus.RecipientGone {
			return phaseRecipientGone, EntryCursor{}
		}

		s.throttle()
		*builder = NewSupplyMessageBuilder(demand.UpdateSequence, demand.TopologyVersion)
	}
}

// runPartition drives one partition through as many of the four phases
// as the turn budget allows, resuming from pp's cursor when one is
// present.
func (s *Supplier) runPartition(demand DemandMessage, builder **SupplyMessageBuilder, batchesSent *int, maxBatches int, pp pendingPartition) partitionResult {
	localPart := pp.reservedPartition
	listener := pp.listener
	startPhase := cursorInMemory

	if localPart == nil {
		p, outcome := s.reservePartition(pp.part, demand.TopologyVersion)

		if outcome != Reserved {
			return partitionResult{status: statusMissed}
		}

		localPart = p

		if s.overflowStore != nil && s.overflowStore.Enabled(pp.part) {
			listener = registerPromotionListener(s.overflowStore, pp.part)
		}
	} else if pp.hasCursor {
		startPhase = pp.cursor.kind

		if listener == nil && pp.cursor.isPromotion() {
			listener = pp.cursor.listener
		}
	}

	if startPhase == cursorInMemory {
		var it partition.EntryIterator

		if pp.hasCursor && pp.cursor.isInMemory() {
			it = pp.cursor.inMemory
		} else {
			it = localPart.Entries()
		}

		next := func() (data.EntryInfo, bool) { return it.Next() }
		makeCursor := func() EntryCursor { return inMemoryCursor(it) }

		outcome, cursor := s.drainEntryInfoSource(demand, pp.part, next, makeCursor, builder, batchesSent, maxBatches)

		switch outcome {
		case phaseOwnershipLost:
			closeIterator(it)
			if listener != nil {
				listener.deregister()
			}
			localPart.Release()

			return partitionResult{status: statusMissed}
		case phaseSuspended:
			return partitionResult{status: statusSuspended, cursor: cursor, listener: listener, reservedPartition: localPart}
		case phaseRecipientGone:
			closeIterator(it)
			if listener != nil {
				listener.deregister()
			}
			localPart.Release()

			return partitionResult{status: statusRecipientGone}
		}

		startPhase = cursorOverflow
	}

	if startPhase == cursorOverflow && s.overflowStore != nil {
		var it overflow.OverflowIterator

		if pp.hasCursor && pp.cursor.isOverflow() {
			it = pp.cursor.overflow
		} else if s.overflowStore.Enabled(pp.part) {
			opened, err := s.overflowStore.Iterator(pp.part, "")

			if err == nil {
				it = opened
			}
		}

		if it != nil {
			outcome, cursor := s.drainOverflow(demand, pp.part, it, builder, batchesSent, maxBatches)

			switch outcome {
			case phaseOwnershipLost:
				closeIterator(it)
				if listener != nil {
					listener.deregister()
				}
				localPart.Release()

				return partitionResult{status: statusMissed}
			case phaseSuspended:
				return partitionResult{status: statusSuspended, cursor: cursor, listener: listener, reservedPartition: localPart}
			case phaseRecipientGone:
				closeIterator(it)
				if listener != nil {
					listener.deregister()
				}
				localPart.Release()

				return partitionResult{status: statusRecipientGone}
			}
		}

		startPhase = cursorPromotion
	}

	if listener != nil {
		listener.deregister()

		entries := listener.entries()
		startIndex := 0

		if pp.hasCursor && pp.cursor.isPromotion() {
			startIndex = pp.cursor.promotionIndex
		}

		idx := startIndex
		next := func() (data.EntryInfo, bool) {
			if idx >= len(entries) {
				return data.EntryInfo{}, false
			}

			entry := entries[idx]
			idx++

			return entry, true
		}
		makeCursor := func() EntryCursor { return promotionCursor(listener, idx) }

		outcome, cursor := s.drainEntryInfoSource(demand, pp.part, next, makeCursor, builder, batchesSent, maxBatches)

		switch outcome {
		case phaseOwnershipLost:
			localPart.Release()

			return partitionResult{status: statusMissed}
		case phaseSuspended:
			return partitionResult{status: statusSuspended, cursor: cursor, listener: nil, reservedPartition: localPart}
		case phaseRecipientGone:
			localPart.Release()

			return partitionResult{status: statusRecipientGone}
		}
	}

	localPart.Release()

	return partitionResult{status: statusCompleted}
}

// runTurn drives the state machine for one demand. It returns the
// context to store for a future resumption, or nil if the turn
// terminated outright; recipientGone reports whether the bus stopped
// accepting batches partway through.
func (s *Supplier) runTurn(demand DemandMessage, ctx *SupplyContext, maxBatches int) (*SupplyContext, bool) {
	batchesSent := 0
	builder := NewSupplyMessageBuilder(demand.UpdateSequence, demand.TopologyVersion)

	var work []pendingPartition

	if ctx != nil {
		work = append(work, pendingPartition{
			part:              ctx.CurrentPartition,
			reservedPartition: ctx.ReservedPartition,
			listener:          ctx.Listener,
			cursor:            ctx.Cursor,
			hasCursor:         ctx.HasCursor,
		})

		for _, part := range ctx.RemainingPartitions {
			work = append(work, pendingPartition{part: part})
		}
	} else {
		for _, part := range demand.Partitions {
			work = append(work, pendingPartition{part: part})
		}
	}

	for i, pp := range work {
		result := s.runPartition(demand, &builder, &batchesSent, maxBatches, pp)

		switch result.status {
		case statusMissed:
			builder.Missed(pp.part)
		case statusCompleted:
			builder.Last(pp.part)
		case statusSuspended:
			remaining := make([]uint64, 0, len(work)-i-1)

			for _, next := range work[i+1:] {
				remaining = append(remaining, next.part)
			}

			suspended := &SupplyContext{
				Key:                 demand.Key(),
				TopologyVersion:     demand.TopologyVersion,
				RemainingPartitions: remaining,
				CurrentPartition:    pp.part,
				Cursor:              result.cursor,
				HasCursor:           true,
				Listener:            result.listener,
				ReservedPartition:   result.reservedPartition,
				UpdateSequence:      demand.UpdateSequence,
			}

			if !s.finalizeSend(demand, builder) {
				suspended.evict()

				return nil, true
			}

			recordTurnSuspended()

			return suspended, false
		case statusRecipientGone:
			return nil, true
		}
	}

	return nil, !s.finalizeSend(demand, builder)
}
