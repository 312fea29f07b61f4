package state

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local StateStore. Revisions come from one
// counter shared by every key, so they are unique across the store.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string]*item
	leases map[string]*memoryLock
	seq    uint64
	closed bool
}

type item struct {
	value    []byte
	revision uint64
	created  time.Time
	modified time.Time
}

var (
	_ StateStore = (*MemoryStore)(nil)
	_ Batcher    = (*MemoryStore)(nil)
)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:  map[string]*item{},
		leases: map[string]*memoryLock{},
	}
}

// read runs fn under the read lock once key and store state check out.
func (s *MemoryStore) read(key string, fn func() error) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return fn()
}

// mutate is read with the write lock.
func (s *MemoryStore) mutate(key string, fn func() error) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return fn()
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	kv, err := s.GetKeyValue(ctx, key)
	if err != nil {
		return nil, err
	}
	return kv.Value, nil
}

func (s *MemoryStore) GetKeyValue(ctx context.Context, key string) (*KeyValue, error) {
	var kv *KeyValue
	err := s.read(key, func() error {
		it, ok := s.items[key]
		if !ok {
			return ErrNotFound
		}
		kv = &KeyValue{
			Key:      key,
			Value:    bytes.Clone(it.value),
			Revision: it.revision,
			Created:  it.created,
			Modified: it.modified,
		}
		return nil
	})
	return kv, err
}

func (s *MemoryStore) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	var rev uint64
	err := s.mutate(key, func() error {
		rev = s.store(key, value)
		return nil
	})
	return rev, err
}

func (s *MemoryStore) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	var rev uint64
	err := s.mutate(key, func() error {
		if _, taken := s.items[key]; taken {
			return ErrKeyExists
		}
		rev = s.store(key, value)
		return nil
	})
	return rev, err
}

func (s *MemoryStore) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	var rev uint64
	err := s.mutate(key, func() error {
		it, ok := s.items[key]
		switch {
		case !ok:
			return ErrNotFound
		case it.revision != revision:
			return ErrRevisionMismatch
		}
		rev = s.store(key, value)
		return nil
	})
	return rev, err
}

// CreateBatch writes every entry or, if any key is taken or repeated,
// none of them.
func (s *MemoryStore) CreateBatch(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if err := ValidateKey(e.Key); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	fresh := make(map[string]bool, len(entries))
	for _, e := range entries {
		if _, taken := s.items[e.Key]; taken || fresh[e.Key] {
			return ErrKeyExists
		}
		fresh[e.Key] = true
	}
	for _, e := range entries {
		s.store(e.Key, e.Value)
	}
	return nil
}

// store copies value in under the next revision. Callers hold mu.
func (s *MemoryStore) store(key string, value []byte) uint64 {
	s.seq++
	now := time.Now()
	it := &item{value: bytes.Clone(value), revision: s.seq, created: now, modified: now}
	if prev, ok := s.items[key]; ok {
		it.created = prev.created
	}
	s.items[key] = it
	return s.seq
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	return s.mutate(key, func() error {
		delete(s.items, key)
		return nil
	})
}

func (s *MemoryStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var keys []string
	for key := range s.items {
		if MatchPattern(pattern, key) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Lock grants a lease on key for ttl. A lapsed lease is replaced.
func (s *MemoryStore) Lock(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	if err := ValidateTTL(ttl); err != nil {
		return nil, err
	}

	var granted *memoryLock
	err := s.mutate(key, func() error {
		name := lockPrefix + key
		now := time.Now()
		if cur, ok := s.leases[name]; ok && !cur.released && now.Before(cur.expires) {
			return ErrLockHeld
		} else if ok {
			cur.released = true
		}
		granted = &memoryLock{store: s, key: name, ttl: ttl, expires: now.Add(ttl)}
		s.leases[name] = granted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return granted, nil
}

// Close drops all data and releases every lease.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, l := range s.leases {
		l.released = true
	}
	s.items, s.leases = nil, nil
	return nil
}

// memoryLock fields are guarded by store.mu.
type memoryLock struct {
	store    *MemoryStore
	key      string
	ttl      time.Duration
	expires  time.Time
	released bool
}

func (l *memoryLock) Unlock() error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	if l.released {
		return ErrLockNotHeld
	}
	l.release()
	return nil
}

func (l *memoryLock) Refresh() error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	if l.released {
		return ErrLockNotHeld
	}
	now := time.Now()
	if now.After(l.expires) {
		l.release()
		return ErrLockExpired
	}
	l.expires = now.Add(l.ttl)
	return nil
}

// release forgets the lease if it is still the current one. Callers hold
// store.mu.
func (l *memoryLock) release() {
	l.released = true
	if l.store.leases[l.key] == l {
		delete(l.store.leases, l.key)
	}
}

func (l *memoryLock) Key() string { return l.key }
