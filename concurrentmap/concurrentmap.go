// Package concurrentmap implements a fine-grained locked mapping from
// uint64 keys to uint64 values, sharded across buckets so unrelated keys
// rarely contend on the same lock.
//
// It backs the knowledge facade's term-to-concept and concept-to-actor
// registries: the "concurrent registry that maps external identifiers to
// actor handles" called out as core runtime machinery.
package concurrentmap

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

const defaultShardCount = 32

// Map is a sharded uint64 -> uint64 map safe for concurrent use.
type Map struct {
	shards []*shard
	count  atomic.Int64
}

type shard struct {
	mu   sync.RWMutex
	data map[uint64]uint64
}

// New creates a Map with the default shard count.
func New() *Map {
	return NewWithShards(defaultShardCount)
}

// NewWithShards creates a Map with n shards. n is rounded up to 1 if
// given a non-positive value, since a map needs at least one bucket.
func NewWithShards(n int) *Map {
	return NewWithCapacityHint(n, 0)
}

// NewWithCapacity creates a Map with the default shard count, presized to
// hold roughly capacityHint entries.
func NewWithCapacity(capacityHint int) *Map {
	return NewWithCapacityHint(defaultShardCount, capacityHint)
}

// NewWithCapacityHint creates a Map with n shards (rounded up to 1), each
// shard's underlying Go map preallocated for roughly capacityHint/n
// entries. capacityHint <= 0 leaves shards at their default empty-map
// capacity; it only ever saves rehashing on the first inserts and never
// changes observable behavior.
func NewWithCapacityHint(n, capacityHint int) *Map {
	if n <= 0 {
		n = 1
	}
	perShard := 0
	if capacityHint > 0 {
		perShard = capacityHint / n
	}
	m := &Map{shards: make([]*shard, n)}
	for i := range m.shards {
		m.shards[i] = &shard{data: make(map[uint64]uint64, perShard)}
	}
	return m
}

// shardFor hashes key with xxhash rather than taking key % len(shards)
// directly, so that bursts of sequentially-assigned ids (concept ids,
// term hashes that happen to land close together) spread evenly across
// shards instead of piling onto whichever bucket the raw modulo favors.
func (m *Map) shardFor(key uint64) *shard {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	h := xxhash.Sum64(buf[:])
	return m.shards[h%uint64(len(m.shards))]
}

// Get returns the value for key and whether it was present.
func (m *Map) Get(key uint64) (uint64, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Put inserts or overwrites the value for key.
func (m *Map) Put(key, value uint64) {
	s := m.shardFor(key)
	s.mu.Lock()
	_, existed := s.data[key]
	s.data[key] = value
	s.mu.Unlock()

	if !existed {
		m.count.Add(1)
	}
}

// Remove deletes key, reporting whether it was present.
func (m *Map) Remove(key uint64) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	_, existed := s.data[key]
	delete(s.data, key)
	s.mu.Unlock()

	if existed {
		m.count.Add(-1)
	}
	return existed
}

// Count returns the number of entries currently stored.
func (m *Map) Count() int64 {
	return m.count.Load()
}

// Entry is one key-value pair yielded by Iterator.
type Entry struct {
	Key   uint64
	Value uint64
}

// Iterator returns a channel of entries, visiting shards one at a time.
// Each shard's read lock is held only while that shard's entries are
// copied out, then released before moving to the next shard: this is not
// a point-in-time snapshot of the whole map. A concurrent Put or Remove
// targeting a shard not yet visited is reflected in the iteration; one
// targeting an already-visited shard is not. Every single (key, value)
// pair observed is internally consistent — readers never see a torn
// value — because it is always read under that shard's lock.
func (m *Map) Iterator() <-chan Entry {
	ch := make(chan Entry)
	go func() {
		defer close(ch)
		for _, s := range m.shards {
			s.mu.RLock()
			pairs := make([]Entry, 0, len(s.data))
			for k, v := range s.data {
				pairs = append(pairs, Entry{Key: k, Value: v})
			}
			s.mu.RUnlock()

			for _, e := range pairs {
				ch <- e
			}
		}
	}()
	return ch
}
