package messagebus

import "errors"

var ERecipientGone = errors.New("recipient is no longer reachable")

// IOPolicy selects the channel a message travels over. Supply traffic
// rides the bulk lane so it never head-of-line blocks latency-sensitive
// demand acknowledgements sharing the same peer connection.
type IOPolicy int

const (
	PolicyDefault IOPolicy = iota
	PolicyBulk
)

// SendOutcome reports what became of an ordered send attempt. Losing a
// peer mid-send is routine during a rebalance and callers branch on this
// value instead of matching on an error type.
type SendOutcome int

const (
	Delivered SendOutcome = iota
	RecipientGone
)

// MessageBus delivers typed payloads to a named peer in FIFO order per
// peer. A supply turn depends on this ordering: out-of-order batches would
// let a demander apply a "missed" marker before the entries it was
// supposed to cover.
type MessageBus interface {
	SendOrdered(peerID string, topic string, payload []byte, policy IOPolicy, timeoutMillis int) SendOutcome
	Subscribe(topic string, handler func(fromPeerID string, payload []byte))
}
