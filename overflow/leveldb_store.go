package overflow

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	levelErrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/ashokrj/supplyd/data"
	"github.com/ashokrj/supplyd/logging"
)

var ECorrupted = errors.New("overflow store is corrupted")

// LevelDBOverflowStore keeps spilled entries on disk, keyed by a
// partition-scoped prefix so every partition's overflow tier lives in one
// shared database file without its keys colliding with another
// partition's.
type LevelDBOverflowStore struct {
	lock               sync.Mutex
	db                 *leveldb.DB
	overflowListeners  map[uint64]*listenerRegistry
	promotionListeners map[uint64]*listenerRegistry
}

func OpenLevelDBOverflowStore(file string) (*LevelDBOverflowStore, error) {
	db, err := leveldb.OpenFile(file, &opt.Options{})

	if err != nil {
		if levelErrors.IsCorrupted(err) {
			logging.Log.Criticalf("overflow store at %s is corrupted: %v", file, err)

			return nil, ECorrupted
		}

		return nil, err
	}

	return &LevelDBOverflowStore{
		db:                 db,
		overflowListeners:  make(map[uint64]*listenerRegistry),
		promotionListeners: make(map[uint64]*listenerRegistry),
	}, nil
}

func (s *LevelDBOverflowStore) Close() error {
	return s.db.Close()
}

func partitionPrefix(part uint64) []byte {
	prefix := make([]byte, 8)
	binary.BigEndian.PutUint64(prefix, part)

	return prefix
}

func encodeKey(part uint64, key string) []byte {
	return append(partitionPrefix(part), []byte(key)...)
}

func decodeKey(part uint64, encoded []byte) string {
	return string(encoded[len(partitionPrefix(part)):])
}

// Enabled reports whether this partition currently has any entries
// spilled to disk. A partition with nothing overflowed never pays for a
// range scan during phase 2 of a supply turn.
func (s *LevelDBOverflowStore) Enabled(part uint64) bool {
	it := s.db.NewIterator(util.BytesPrefix(partitionPrefix(part)), nil)
	defer it.Release()

	return it.Next()
}

// Put spills entry into the overflow tier. Overwriting a key already on
// disk fires the overflow channel with the entry being replaced, the
// same as an eviction: the old value is leaving overflow without being
// promoted.
func (s *LevelDBOverflowStore) Put(part uint64, entry data.OverflowEntry) error {
	value, err := encodeOverflowEntry(entry)

	if err != nil {
		return err
	}

	key := encodeKey(part, entry.Key())
	previous, getErr := s.db.Get(key, nil)
	overwritten := getErr == nil

	if err := s.db.Put(key, value, nil); err != nil {
		return err
	}

	if !overwritten {
		return nil
	}

	s.fireOverflow(part, entry.Key(), previous)

	return nil
}

// deleteKey removes a key from disk without notifying either listener
// channel; callers decide which channel, if any, the removal belongs to.
func (s *LevelDBOverflowStore) deleteKey(part uint64, key string) error {
	return s.db.Delete(encodeKey(part, key), nil)
}

// Remove evicts an entry from overflow without promoting it, firing the
// overflow channel for any listener watching this partition. Removing a
// key the partition never spilled is a harmless no-op.
func (s *LevelDBOverflowStore) Remove(part uint64, key string) error {
	previous, getErr := s.db.Get(encodeKey(part, key), nil)
	existed := getErr == nil

	if err := s.deleteKey(part, key); err != nil {
		return err
	}

	if !existed {
		return nil
	}

	s.fireOverflow(part, key, previous)

	return nil
}

// Promote removes an entry from overflow and fires every promotion
// listener registered against this partition. It deletes directly rather
// than going through Remove so promotion never also fires the overflow
// channel. Calling Promote for a key the partition never spilled is a
// harmless no-op.
func (s *LevelDBOverflowStore) Promote(part uint64, entry data.OverflowEntry) error {
	if _, err := s.db.Get(encodeKey(part, entry.Key()), nil); err != nil {
		if err == leveldb.ErrNotFound {
			return nil
		}

		return err
	}

	if err := s.deleteKey(part, entry.Key()); err != nil {
		return err
	}

	s.lock.Lock()
	registry := s.promotionListeners[part]
	s.lock.Unlock()

	if registry != nil {
		registry.fire(entry)
	}

	return nil
}

func (s *LevelDBOverflowStore) fireOverflow(part uint64, key string, encoded []byte) {
	s.lock.Lock()
	registry := s.overflowListeners[part]
	s.lock.Unlock()

	if registry == nil {
		return
	}

	previousEntry, err := decodeOverflowEntry(encoded)

	if err != nil {
		return
	}

	previousEntry.KeyBytes = []byte(key)
	registry.fire(previousEntry)
}

func (s *LevelDBOverflowStore) Iterator(part uint64, afterKey string) (OverflowIterator, error) {
	snapshot, err := s.db.GetSnapshot()

	if err != nil {
		return nil, err
	}

	start := partitionPrefix(part)

	if afterKey != "" {
		start = append(encodeKey(part, afterKey), 0x00)
	}

	r := util.BytesPrefix(partitionPrefix(part))
	r.Start = start

	return &levelDBOverflowIterator{
		part:     part,
		snapshot: snapshot,
		it:       snapshot.NewIterator(r, nil),
	}, nil
}

func (s *LevelDBOverflowStore) AddOverflowListener(part uint64, onOverflow func(data.OverflowEntry)) int {
	s.lock.Lock()
	defer s.lock.Unlock()

	registry, exists := s.overflowListeners[part]

	if !exists {
		registry = newListenerRegistry()
		s.overflowListeners[part] = registry
	}

	return registry.add(onOverflow)
}

func (s *LevelDBOverflowStore) RemoveOverflowListener(part uint64, token int) error {
	s.lock.Lock()
	registry, exists := s.overflowListeners[part]
	s.lock.Unlock()

	if !exists {
		return nil
	}

	registry.remove(token)

	return nil
}

func (s *LevelDBOverflowStore) AddPromotionListener(part uint64, onPromote func(data.OverflowEntry)) int {
	s.lock.Lock()
	defer s.lock.Unlock()

	registry, exists := s.promotionListeners[part]

	if !exists {
		registry = newListenerRegistry()
		s.promotionListeners[part] = registry
	}

	return registry.add(onPromote)
}

func (s *LevelDBOverflowStore) RemovePromotionListener(part uint64, token int) error {
	s.lock.Lock()
	registry, exists := s.promotionListeners[part]
	s.lock.Unlock()

	if !exists {
		return nil
	}

	registry.remove(token)

	return nil
}

type levelDBOverflowIterator struct {
	part     uint64
	snapshot *leveldb.Snapshot
	it       interface {
		Next() bool
		Key() []byte
		Value() []byte
		Release()
	}
	closed bool
}

func (it *levelDBOverflowIterator) Next() (data.OverflowEntry, bool) {
	if it.closed || !it.it.Next() {
		return data.OverflowEntry{}, false
	}

	entry, err := decodeOverflowEntry(it.it.Value())

	if err != nil {
		return data.OverflowEntry{}, false
	}

	entry.KeyBytes = []byte(decodeKey(it.part, it.it.Key()))

	return entry, true
}

func (it *levelDBOverflowIterator) Close() error {
	if it.closed {
		return nil
	}

	it.closed = true
	it.it.Release()
	it.snapshot.Release()

	return nil
}

func encodeOverflowEntry(entry data.OverflowEntry) ([]byte, error) {
	var buf bytes.Buffer

	writeLenPrefixed(&buf, entry.ValueBytes)
	writeUint64(&buf, uint64(entry.Version))
	writeUint64(&buf, uint64(entry.TTLMillis))
	writeUint64(&buf, uint64(entry.ExpireTimeMillis))
	writeLenPrefixed(&buf, []byte(entry.KeyClassLoaderID))
	writeLenPrefixed(&buf, []byte(entry.ValueClassLoaderID))

	return buf.Bytes(), nil
}

func decodeOverflowEntry(raw []byte) (data.OverflowEntry, error) {
	r := bytes.NewReader(raw)

	value, err := readLenPrefixed(r)

	if err != nil {
		return data.OverflowEntry{}, err
	}

	version, err := readUint64(r)

	if err != nil {
		return data.OverflowEntry{}, err
	}

	ttl, err := readUint64(r)

	if err != nil {
		return data.OverflowEntry{}, err
	}

	expireTime, err := readUint64(r)

	if err != nil {
		return data.OverflowEntry{}, err
	}

	keyClassLoaderID, err := readLenPrefixed(r)

	if err != nil {
		return data.OverflowEntry{}, err
	}

	valueClassLoaderID, err := readLenPrefixed(r)

	if err != nil {
		return data.OverflowEntry{}, err
	}

	return data.OverflowEntry{
		ValueBytes:         value,
		Version:            data.Version(version),
		TTLMillis:          int64(ttl),
		ExpireTimeMillis:   int64(expireTime),
		KeyClassLoaderID:   string(keyClassLoaderID),
		ValueClassLoaderID: string(valueClassLoaderID),
	}, nil
}

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(b)))
	buf.Write(length[:])
	buf.Write(b)
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	var length [4]byte

	if _, err := r.Read(length[:]); err != nil {
		return nil, err
	}

	b := make([]byte, binary.BigEndian.Uint32(length[:]))

	if _, err := r.Read(b); err != nil && len(b) > 0 {
		return nil, err
	}

	return b, nil
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte

	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint64(b[:]), nil
}
