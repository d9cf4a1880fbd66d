package messagebus_test

import (
	. "github.com/ashokrj/supplyd/messagebus"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("InMemoryMessageBus", func() {
	It("should deliver a send to a connected peer's subscriber", func() {
		bus := NewInMemoryMessageBus()
		bus.Connect("peer1")

		received := make(chan []byte, 1)

		bus.Subscribe("supply", func(fromPeerID string, payload []byte) {
			received <- payload
		})

		outcome := bus.SendOrdered("peer1", "supply", []byte("hello"), PolicyBulk, 5000)

		Expect(outcome).Should(Equal(Delivered))
		Expect(<-received).Should(Equal([]byte("hello")))
	})

	It("should report RecipientGone for a peer that never connected", func() {
		bus := NewInMemoryMessageBus()

		outcome := bus.SendOrdered("peer1", "supply", []byte("hello"), PolicyBulk, 5000)

		Expect(outcome).Should(Equal(RecipientGone))
	})

	It("should report RecipientGone after a connected peer disconnects", func() {
		bus := NewInMemoryMessageBus()
		bus.Connect("peer1")
		bus.Disconnect("peer1")

		outcome := bus.SendOrdered("peer1", "supply", []byte("hello"), PolicyBulk, 5000)

		Expect(outcome).Should(Equal(RecipientGone))
	})

	It("should record the timeout a send was given alongside its policy", func() {
		bus := NewInMemoryMessageBus()
		bus.Connect("peer1")

		bus.SendOrdered("peer1", "supply", []byte("hello"), PolicyBulk, 2500)

		sent := bus.Sent()

		Expect(sent).Should(HaveLen(1))
		Expect(sent[0].TimeoutMillis).Should(Equal(2500))
	})
})
