package cluster_test

import (
	. "github.com/ashokrj/supplyd/cluster"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("ClusterController", func() {
	var controller *ClusterController

	BeforeEach(func() {
		controller = NewClusterController(16, 2)
	})

	Describe("#AddNode", func() {
		It("should bump the topology version", func() {
			before := controller.CurrentTopologyVersion()

			Expect(controller.AddNode(NewNodeConfig(1, "node1", 8080, 1))).Should(BeNil())

			after := controller.CurrentTopologyVersion()

			Expect(before.Less(after)).Should(BeTrue())
		})

		It("should make the added node an owner of at least one partition", func() {
			Expect(controller.AddNode(NewNodeConfig(1, "node1", 8080, 1))).Should(BeNil())

			state := controller.State()

			Expect(len(state.Nodes[0].Tokens)).Should(Equal(16))
		})

		It("should publish a node add delta", func() {
			Expect(controller.AddNode(NewNodeConfig(1, "node1", 8080, 1))).Should(BeNil())

			delta := <-controller.Deltas()

			Expect(delta.Type).Should(Equal(DeltaTypeNodeAdd))
			Expect(delta.NodeID).Should(Equal(uint64(1)))
		})
	})

	Describe("#Belongs", func() {
		It("should return false for a stale topology version", func() {
			Expect(controller.AddNode(NewNodeConfig(1, "node1", 8080, 1))).Should(BeNil())

			stale := AffinityTopologyVersion{Version: 1}

			Expect(controller.Belongs(1, 0, stale)).Should(BeFalse())
		})

		It("should return true for an owner under the current topology version", func() {
			Expect(controller.AddNode(NewNodeConfig(1, "node1", 8080, 1))).Should(BeNil())

			current := controller.CurrentTopologyVersion()

			Expect(controller.Belongs(1, 0, current)).Should(BeTrue())
		})
	})

	Describe("#RemoveNode", func() {
		It("should redistribute a removed node's tokens among the survivors", func() {
			Expect(controller.AddNode(NewNodeConfig(1, "node1", 8080, 1))).Should(BeNil())
			Expect(controller.AddNode(NewNodeConfig(2, "node2", 8080, 1))).Should(BeNil())
			Expect(controller.RemoveNode(1)).Should(BeNil())

			state := controller.State()

			for _, owner := range state.TokenAssignment {
				Expect(owner).Should(Equal(uint64(2)))
			}
		})
	})

	Describe("#TakePartitionReplica", func() {
		It("should drain a decommissioning node's tokens without removing it from membership", func() {
			Expect(controller.AddNode(NewNodeConfig(1, "node1", 8080, 1))).Should(BeNil())
			Expect(controller.AddNode(NewNodeConfig(2, "node2", 8080, 1))).Should(BeNil())
			Expect(controller.TakePartitionReplica(1)).Should(BeNil())

			state := controller.State()

			Expect(len(state.Nodes)).Should(Equal(2))

			for _, owner := range state.TokenAssignment {
				Expect(owner).Should(Equal(uint64(2)))
			}
		})
	})
})
