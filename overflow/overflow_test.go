package overflow_test

import (
	"github.com/ashokrj/supplyd/data"

	. "github.com/ashokrj/supplyd/overflow"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("InMemoryOverflowStore", func() {
	var store *InMemoryOverflowStore

	BeforeEach(func() {
		store = NewInMemoryOverflowStore()
	})

	Describe("#Enabled", func() {
		It("should be false for a partition with no spilled entries", func() {
			Expect(store.Enabled(1)).Should(BeFalse())
		})

		It("should be true once an entry has been spilled", func() {
			store.Put(1, data.OverflowEntry{KeyBytes: []byte("a")})

			Expect(store.Enabled(1)).Should(BeTrue())
		})
	})

	Describe("#Iterator", func() {
		It("should iterate entries in key order and resume after a given key", func() {
			store.Put(1, data.OverflowEntry{KeyBytes: []byte("a")})
			store.Put(1, data.OverflowEntry{KeyBytes: []byte("b")})
			store.Put(1, data.OverflowEntry{KeyBytes: []byte("c")})

			it, err := store.Iterator(1, "a")

			Expect(err).Should(BeNil())
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

	Describe("#AddPromotionListener / #Promote", func() {
		It("should notify a registered listener exactly once when an entry is promoted", func() {
			store.Put(1, data.OverflowEntry{KeyBytes: []byte("a")})

			promoted := make(chan data.OverflowEntry, 1)

			store.AddPromotionListener(1, func(entry data.OverflowEntry) {
				promoted <- entry
			})

			store.Promote(1, data.OverflowEntry{KeyBytes: []byte("a")})

			entry := <-promoted

			Expect(entry.Key()).Should(Equal("a"))
			Expect(store.Enabled(1)).Should(BeFalse())
		})

		It("should allow removing a listener twice without error", func() {
			token := store.AddPromotionListener(1, func(data.OverflowEntry) {})

			Expect(store.RemovePromotionListener(1, token)).Should(BeNil())
			Expect(store.RemovePromotionListener(1, token)).Should(BeNil())
		})

		It("should not fail when removing a listener for a partition with no registry", func() {
			Expect(store.RemovePromotionListener(99, 0)).Should(BeNil())
		})
	})

	Describe("#AddOverflowListener / eviction and overwrite", func() {
		It("should notify a registered listener when an overwritten entry is replaced", func() {
			store.Put(1, data.OverflowEntry{KeyBytes: []byte("a"), ValueBytes: []byte("1")})

			overflowed := make(chan data.OverflowEntry, 1)

			store.AddOverflowListener(1, func(entry data.OverflowEntry) {
				overflowed <- entry
			})

			store.Put(1, data.OverflowEntry{KeyBytes: []byte("a"), ValueBytes: []byte("2")})

			entry := <-overflowed

			Expect(entry.Key()).Should(Equal("a"))
			Expect(entry.ValueBytes).Should(Equal([]byte("1")))
		})

		It("should notify a registered listener when an entry is removed without being promoted", func() {
			store.Put(1, data.OverflowEntry{KeyBytes: []byte("a")})

			overflowed := make(chan data.OverflowEntry, 1)

			store.AddOverflowListener(1, func(entry data.OverflowEntry) {
				overflowed <- entry
			})

			Expect(store.Remove(1, "a")).Should(BeNil())

			entry := <-overflowed

			Expect(entry.Key()).Should(Equal("a"))
			Expect(store.Enabled(1)).Should(BeFalse())
		})

		It("should not notify the overflow listener when an entry is promoted instead", func() {
			store.Put(1, data.OverflowEntry{KeyBytes: []byte("a")})

			overflowed := make(chan data.OverflowEntry, 1)

			store.AddOverflowListener(1, func(entry data.OverflowEntry) {
				overflowed <- entry
			})

			store.Promote(1, data.OverflowEntry{KeyBytes: []byte("a")})

			Expect(overflowed).Should(BeEmpty())
		})

		It("should allow removing an overflow listener twice without error", func() {
			token := store.AddOverflowListener(1, func(data.OverflowEntry) {})

			Expect(store.RemoveOverflowListener(1, token)).Should(BeNil())
			Expect(store.RemoveOverflowListener(1, token)).Should(BeNil())
		})
	})
})
