package partition_test

import (
	"github.com/ashokrj/supplyd/cluster"
	"github.com/ashokrj/supplyd/data"

	. "github.com/ashokrj/supplyd/partition"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalPartition", func() {
	var p *LocalPartition

	BeforeEach(func() {
		p = NewLocalPartition(3)
		p.Put(data.EntryInfo{KeyBytes: []byte("a")})
		p.Put(data.EntryInfo{KeyBytes: []byte("b")})
		p.Put(data.EntryInfo{KeyBytes: []byte("c")})
	})

	Describe("#Reserve", func() {
		It("should allow any number of concurrent reservations", func() {
			Expect(p.Reserve()).Should(BeTrue())
			Expect(p.Reserve()).Should(BeTrue())
			Expect(p.Reservations()).Should(Equal(2))

			p.Release()

			Expect(p.Reservations()).Should(Equal(1))

			p.Release()

			Expect(p.Reservations()).Should(Equal(0))
		})

		It("should fail once the partition is evicted", func() {
			p.SetState(StateEvicted)

			Expect(p.Reserve()).Should(BeFalse())
		})

		It("should not let Release drive the count below zero", func() {
			p.Release()

			Expect(p.Reservations()).Should(Equal(0))
		})
	})

	Describe("#Entries", func() {
		It("should iterate every entry in key order", func() {
			it := p.Entries()
			defer it.Close()

			var keys []string

			for {
				entry, ok := it.Next()

				if !ok {
					break
				}

				keys = append(keys, entry.Key())
			}

			Expect(keys).Should(Equal([]string{"a", "b", "c"}))
		})
	})

	Describe("#EntriesFrom", func() {
		It("should resume just after the given key", func() {
			it := p.EntriesFrom("a")
			defer it.Close()

			var keys []string

			for {
				entry, ok := it.Next()

				if !ok {
					break
				}

				keys = append(keys, entry.Key())
			}

			Expect(keys).Should(Equal([]string{"b", "c"}))
		})
	})
})

var _ = Describe("InMemoryPartitionStore", func() {
	It("should create a partition on first request when create is true", func() {
		store := NewInMemoryPartitionStore()

		p, err := store.LocalPartition(7, cluster.AffinityTopologyVersion{Version: 1}, true)

		Expect(err).Should(BeNil())
		Expect(p.Number()).Should(Equal(uint64(7)))
	})

	It("should return EPartitionNotFound when create is false and the partition does not exist", func() {
		store := NewInMemoryPartitionStore()

		_, err := store.LocalPartition(7, cluster.AffinityTopologyVersion{Version: 1}, false)

		Expect(err).Should(Equal(EPartitionNotFound))
	})

	It("should mark an evicted partition as StateEvicted", func() {
		store := NewInMemoryPartitionStore()

		p, _ := store.LocalPartition(7, cluster.AffinityTopologyVersion{Version: 1}, true)

		Expect(store.Evict(7)).Should(BeNil())
		Expect(p.State()).Should(Equal(StateEvicted))
	})

	It("should refuse to evict a partition with an outstanding reservation", func() {
		store := NewInMemoryPartitionStore()

		p, _ := store.LocalPartition(7, cluster.AffinityTopologyVersion{Version: 1}, true)
		p.Reserve()

		Expect(store.Evict(7)).Should(Equal(EPartitionAlreadyReserved))
		Expect(p.State()).Should(Equal(StateOwning))

		p.Release()

		Expect(store.Evict(7)).Should(BeNil())
		Expect(p.State()).Should(Equal(StateEvicted))
	})
})
