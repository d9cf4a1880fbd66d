package rebalance_test

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ashokrj/supplyd/data"
	"github.com/ashokrj/supplyd/deployment"
	"github.com/ashokrj/supplyd/messagebus"
	"github.com/ashokrj/supplyd/overflow"
	"github.com/ashokrj/supplyd/partition"

	. "github.com/ashokrj/supplyd/rebalance"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// These cover the testable properties that no single scenario exercises
// on its own: reservation discipline tracks the context store exactly,
// and a resumed turn never emits more than one batch before it either
// stores a fresh context or terminates the stream outright.
var _ = Describe("Supplier properties", func() {
	var (
		affinity   *fakeAffinityOracle
		store      *partition.InMemoryPartitionStore
		overflows  *overflow.InMemoryOverflowStore
		registry   *deployment.Registry
		bus        *messagebus.InMemoryMessageBus
		config     Config
		demanderID uuid.UUID
	)

	BeforeEach(func() {
		affinity = newFakeAffinityOracle(1)
		store = partition.NewInMemoryPartitionStore()
		overflows = overflow.NewInMemoryOverflowStore()
		registry = deployment.NewRegistry()
		bus = messagebus.NewInMemoryMessageBus()
		config = DefaultConfig()
		demanderID = uuid.New()
		bus.Connect(demanderID.String())
	})

	It("reserves a partition exactly while its context is stored, and releases it once fully drained", func() {
		fillPartition(store, affinity, 7, 400, 128)

		config.RebalanceBatchSize = 1024
		config.RebalanceBatchesCount = 1
		supplier := NewSupplier(localNodeID, affinity, store, overflows, registry, bus, config)

		contexts := NewContextStore()
		handler := NewDemandHandler(affinity, contexts, supplier, config, nil)

		demand := DemandMessage{
			DemanderID:      demanderID,
			WorkerSlot:      0,
			TopologyVersion: affinity.CurrentTopologyVersion(),
			Partitions:      []uint64{7},
			ReplyTopic:      "supply",
		}

		handler.Handle(demand)
		Expect(contexts.Len()).Should(Equal(1))

		p, _ := store.LocalPartition(7, affinity.CurrentTopologyVersion(), false)

		// the suspended turn holds exactly one reservation on the partition
		Expect(p.Reservations()).Should(Equal(1))

		for contexts.Len() > 0 {
			handler.Handle(demand)
		}

		// once the context store is empty again, nothing holds the partition
		Expect(p.Reservations()).Should(Equal(0))
	})

	It("never emits more than one batch for a resumed demand before storing or terminating", func() {
		fillPartition(store, affinity, 7, 2000, 128)

		config.RebalanceBatchSize = 256
		config.RebalanceBatchesCount = 3
		supplier := NewSupplier(localNodeID, affinity, store, overflows, registry, bus, config)

		contexts := NewContextStore()
		handler := NewDemandHandler(affinity, contexts, supplier, config, nil)

		demand := DemandMessage{
			DemanderID:      demanderID,
			WorkerSlot:      0,
			TopologyVersion: affinity.CurrentTopologyVersion(),
			Partitions:      []uint64{7},
			ReplyTopic:      "supply",
		}

		handler.Handle(demand)
		Expect(contexts.Len()).Should(Equal(1))

		sentBefore := len(bus.Sent())

		handler.Handle(demand)

		sentAfter := len(bus.Sent())

		Expect(sentAfter - sentBefore).Should(Equal(1))
	})

	It("orders entries phase by phase: in-memory before overflow before promotion, with last marked once", func() {
		fillPartition(store, affinity, 9, 5, 32)

		for i := 0; i < 5; i++ {
			overflows.Put(9, data.OverflowEntry{
				KeyBytes:   []byte(fmt.Sprintf("overflow-%04d", i)),
				ValueBytes: make([]byte, 32),
				Version:    data.Version(i + 1),
			})
		}

		supplier := NewSupplier(localNodeID, affinity, store, overflows, registry, bus, config)

		// promote overflow-0000 during the in-memory scan, so it leaves the
		// overflow scan and is shipped by the promotion drain instead
		promoted := false

		supplier.SetPreloadPredicate(func(entry data.EntryInfo) bool {
			if entry.Key() == "key-0000" && !promoted {
				overflows.Promote(9, data.OverflowEntry{KeyBytes: []byte("overflow-0000"), Version: data.Version(100)})
				promoted = true
			}

			return true
		})

		demand := DemandMessage{
			DemanderID:      demanderID,
			WorkerSlot:      0,
			TopologyVersion: affinity.CurrentTopologyVersion(),
			Partitions:      []uint64{9},
			ReplyTopic:      "supply",
		}

		handler := NewDemandHandler(affinity, NewContextStore(), supplier, config, nil)
		handler.Handle(demand)

		sent := bus.Sent()
		Expect(len(sent)).Should(Equal(1))

		var decoded SupplyMessage
		Expect(json.Unmarshal(sent[0].Payload, &decoded)).Should(BeNil())

		entries := decoded.Entries[9]
		Expect(len(entries)).Should(Equal(10))

		for i := 0; i < 5; i++ {
			Expect(entries[i].Key()).Should(Equal(fmt.Sprintf("key-%04d", i)))
		}

		for i := 5; i < 10; i++ {
			Expect(entries[i].Key()).Should(HavePrefix("overflow-"))
		}

		Expect(entries[9].Key()).Should(Equal("overflow-0000"))

		Expect(decoded.Last[9]).Should(BeTrue())
		Expect(decoded.Missed).Should(BeEmpty())
	})
})
