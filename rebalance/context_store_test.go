package rebalance_test

import (
	"github.com/google/uuid"

	"github.com/ashokrj/supplyd/partition"

	. "github.com/ashokrj/supplyd/rebalance"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("ContextStore", func() {
	var store *ContextStore
	var key SupplyContextKey

	BeforeEach(func() {
		store = NewContextStore()
		key = SupplyContextKey{DemanderID: uuid.New(), WorkerSlot: 0}
	})

	It("should return a context put under its key", func() {
		ctx := &SupplyContext{Key: key}
		store.Put(ctx)

		found, exists := store.Get(key)

		Expect(exists).Should(BeTrue())
		Expect(found).Should(Equal(ctx))
	})

	It("should be idempotent when evicting an already-evicted context", func() {
		p := partition.NewLocalPartition(7)
		p.Reserve()

		ctx := &SupplyContext{Key: key, ReservedPartition: p}
		store.Put(ctx)

		Expect(store.RemoveIf(key, ctx)).Should(BeTrue())

		// the eviction released the reservation
		Expect(p.Reservations()).Should(Equal(0))

		// the context is gone from the store: a second RemoveIf against
		// the same pointer must not find it and must not double-release
		Expect(store.RemoveIf(key, ctx)).Should(BeFalse())
	})

	It("should let Take hand off ownership without evicting", func() {
		p := partition.NewLocalPartition(7)
		p.Reserve()

		ctx := &SupplyContext{Key: key, ReservedPartition: p}
		store.Put(ctx)

		Expect(store.Take(key, ctx)).Should(BeTrue())

		// the partition must still be reserved: Take does not evict
		Expect(p.Reservations()).Should(Equal(1))
	})

	It("EvictKey should be a no-op for an absent key", func() {
		store.EvictKey(key)
	})
})
