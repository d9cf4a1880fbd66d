package cluster_test

import (
	. "github.com/ashokrj/supplyd/cluster"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("InMemoryMembershipService", func() {
	It("should deliver published events to every subscriber", func() {
		service := NewInMemoryMembershipService()

		received := make(chan MembershipEvent, 1)

		service.Subscribe(func(event MembershipEvent) {
			received <- event
		})

		service.Publish(MembershipEvent{Type: NodeFailed, NodeID: 5})

		event := <-received

		Expect(event.Type).Should(Equal(NodeFailed))
		Expect(event.NodeID).Should(Equal(uint64(5)))
	})

	It("should not deliver events to an unsubscribed handler", func() {
		service := NewInMemoryMembershipService()

		calls := 0

		unsubscribe := service.Subscribe(func(event MembershipEvent) {
			calls++
		})

		unsubscribe()
		unsubscribe()

		service.Publish(MembershipEvent{Type: NodeLeft, NodeID: 1})

		Expect(calls).Should(Equal(0))
	})
})
