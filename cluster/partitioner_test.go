package cluster_test

import (
	. "github.com/ashokrj/supplyd/cluster"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("SimplePartitioningStrategy", func() {
	var strategy *SimplePartitioningStrategy

	BeforeEach(func() {
		strategy = &SimplePartitioningStrategy{}
	})

	Describe("#AssignTokens", func() {
		It("should assign every token to a node when all nodes have capacity", func() {
			nodes := []NodeConfig{
				NewNodeConfig(1, "node1", 8080, 1),
				NewNodeConfig(2, "node2", 8080, 1),
				NewNodeConfig(3, "node3", 8080, 1),
			}

			assignment, err := strategy.AssignTokens(nodes, make([]uint64, 12), 12)

			Expect(err).Should(BeNil())
			Expect(len(assignment)).Should(Equal(12))

			for _, owner := range assignment {
				Expect(owner).ShouldNot(Equal(uint64(0)))
			}
		})

		It("should not assign tokens to a decommissioned node", func() {
			nodes := []NodeConfig{
				NewNodeConfig(1, "node1", 8080, 1),
				NewNodeConfig(2, "node2", 8080, 0),
			}

			assignment, err := strategy.AssignTokens(nodes, make([]uint64, 8), 8)

			Expect(err).Should(BeNil())

			for _, owner := range assignment {
				Expect(owner).ShouldNot(Equal(uint64(2)))
			}
		})

		It("should reject an assignment whose length does not match the partition count", func() {
			nodes := []NodeConfig{NewNodeConfig(1, "node1", 8080, 1)}

			_, err := strategy.AssignTokens(nodes, make([]uint64, 4), 8)

			Expect(err).Should(Equal(EPreconditionFailed))
		})

		It("should reject nodes that are not sorted by node id", func() {
			nodes := []NodeConfig{
				NewNodeConfig(2, "node2", 8080, 1),
				NewNodeConfig(1, "node1", 8080, 1),
			}

			_, err := strategy.AssignTokens(nodes, make([]uint64, 4), 4)

			Expect(err).Should(Equal(EPreconditionFailed))
		})
	})

	Describe("#Owners", func() {
		It("should return the distinct owners starting at the given partition", func() {
			assignment := []uint64{1, 2, 3, 1}

			owners := strategy.Owners(assignment, 0, 2)

			Expect(owners).Should(Equal([]uint64{1, 2}))
		})

		It("should return an empty slice for an out of range partition", func() {
			owners := strategy.Owners([]uint64{1, 2}, 5, 2)

			Expect(owners).Should(Equal([]uint64{}))
		})
	})

	Describe("#Partition", func() {
		It("should be deterministic for the same key and partition count", func() {
			p1 := strategy.Partition("abc", 1024)
			p2 := strategy.Partition("abc", 1024)

			Expect(p1).Should(Equal(p2))
		})
	})
})
