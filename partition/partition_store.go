package partition

import (
	"sync"

	"github.com/ashokrj/supplyd/cluster"
)

// PartitionStore resolves a partition number to the local Partition
// backing it, scoped to a topology version so a store can refuse to hand
// out a partition it no longer owns under that version.
type PartitionStore interface {
	LocalPartition(part uint64, topologyVersion cluster.AffinityTopologyVersion, create bool) (Partition, error)
	Evict(part uint64) error
}

// InMemoryPartitionStore keeps every LocalPartition it creates in a map,
// lazily materializing one on first request when create is true.
type InMemoryPartitionStore struct {
	lock       sync.Mutex
	partitions map[uint64]*LocalPartition
}

func NewInMemoryPartitionStore() *InMemoryPartitionStore {
	return &InMemoryPartitionStore{
		partitions: make(map[uint64]*LocalPartition),
	}
}

func (s *InMemoryPartitionStore) LocalPartition(part uint64, topologyVersion cluster.AffinityTopologyVersion, create bool) (Partition, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if p, exists := s.partitions[part]; exists {
		return p, nil
	}

	if !create {
		return nil, EPartitionNotFound
	}

	p := NewLocalPartition(part)
	s.partitions[part] = p

	return p, nil
}

// Evict retires part, refusing while any supply turn still holds a
// reservation on it. The caller is expected to retry once that turn
// finishes; it is not this store's job to wait one out.
func (s *InMemoryPartitionStore) Evict(part uint64) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	p, exists := s.partitions[part]

	if !exists {
		return nil
	}

	if p.Reservations() > 0 {
		return EPartitionAlreadyReserved
	}

	p.SetState(StateEvicted)
	delete(s.partitions, part)

	return nil
}
