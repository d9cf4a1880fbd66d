package messagebus

import "sync"

// InMemoryMessageBus is a MessageBus test double. Peers are "reachable"
// until explicitly disconnected, which is how tests simulate a demander
// going away mid-supply without standing up a real transport.
type InMemoryMessageBus struct {
	lock      sync.Mutex
	reachable map[string]bool
	handlers  map[string]func(fromPeerID string, payload []byte)
	sent      []SentMessage
}

type SentMessage struct {
	PeerID        string
	Topic         string
	Payload       []byte
	Policy        IOPolicy
	TimeoutMillis int
}

func NewInMemoryMessageBus() *InMemoryMessageBus {
	return &InMemoryMessageBus{
		reachable: make(map[string]bool),
		handlers:  make(map[string]func(fromPeerID string, payload []byte)),
	}
}

func (b *InMemoryMessageBus) Connect(peerID string) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.reachable[peerID] = true
}

func (b *InMemoryMessageBus) Disconnect(peerID string) {
	b.lock.Lock()
	defer b.lock.Unlock()

	delete(b.reachable, peerID)
}

func (b *InMemoryMessageBus) Subscribe(topic string, handler func(fromPeerID string, payload []byte)) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.handlers[topic] = handler
}

func (b *InMemoryMessageBus) SendOrdered(peerID string, topic string, payload []byte, policy IOPolicy, timeoutMillis int) SendOutcome {
	b.lock.Lock()

	if !b.reachable[peerID] {
		b.lock.Unlock()

		return RecipientGone
	}

	b.sent = append(b.sent, SentMessage{PeerID: peerID, Topic: topic, Payload: payload, Policy: policy, TimeoutMillis: timeoutMillis})
	handler := b.handlers[topic]
	b.lock.Unlock()

	if handler != nil {
		handler(peerID, payload)
	}

	return Delivered
}

func (b *InMemoryMessageBus) Sent() []SentMessage {
	b.lock.Lock()
	defer b.lock.Unlock()

	return append([]SentMessage{}, b.sent...)
}
