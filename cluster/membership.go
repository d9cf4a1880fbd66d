package cluster

// MembershipEventType enumerates the membership transitions a supply
// engine cares about. These mirror the narrower set of Ignite discovery
// events relevant to an in-flight rebalance: a peer leaving, a peer being
// declared failed, and the cluster announcing that a rebalance round has
// been called off entirely.
type MembershipEventType uint8

const (
	NodeLeft MembershipEventType = iota
	NodeFailed
	RebalanceStopped
)

// MembershipEvent is delivered to every subscriber registered with a
// ClusterMembershipService. TopologyVersion is the version the event was
// raised under, letting a subscriber discard events that predate a
// context it has already evicted for a newer reason.
type MembershipEvent struct {
	Type            MembershipEventType
	NodeID          uint64
	TopologyVersion AffinityTopologyVersion
}

// ClusterMembershipService decouples the cluster's membership machinery
// from whatever wants to react to it. Subscribe returns an unsubscribe
// function; calling it more than once is a no-op.
type ClusterMembershipService interface {
	Subscribe(handler func(MembershipEvent)) (unsubscribe func())
}

// InMemoryMembershipService is a ClusterMembershipService backed by an
// in-process fan-out list, suitable for wiring a ClusterController's own
// node removals directly into the rebalance engine's topology subscriber
// without a real discovery transport. Publish lets a test or the local
// controller raise an event directly.
type InMemoryMembershipService struct {
	handlers map[int]func(MembershipEvent)
	nextID   int
}

func NewInMemoryMembershipService() *InMemoryMembershipService {
	return &InMemoryMembershipService{
		handlers: make(map[int]func(MembershipEvent)),
	}
}

func (s *InMemoryMembershipService) Subscribe(handler func(MembershipEvent)) func() {
	id := s.nextID
	s.nextID++
	s.handlers[id] = handler

	removed := false

	return func() {
		if removed {
			return
		}

		removed = true
		delete(s.handlers, id)
	}
}

func (s *InMemoryMembershipService) Publish(event MembershipEvent) {
	for _, handler := range s.handlers {
		handler(event)
	}
}
