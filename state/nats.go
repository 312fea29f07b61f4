package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// lockPrefix keeps lock entries out of the profiles.* and tasks.* ranges.
const lockPrefix = "_lock."

// NATSStore keeps profiles and task lists in a JetStream KV bucket. KV
// revisions back the conditional writes directly.
type NATSStore struct {
	js     jetstream.JetStream
	kv     jetstream.KeyValue
	config NATSStoreConfig
	closed atomic.Bool

	heldMu sync.Mutex
	held   map[string]*natsLock
}

var _ StateStore = (*NATSStore)(nil)

// NATSStoreConfig configures the KV bucket.
type NATSStoreConfig struct {
	// Conn is owned by the caller and left open by Close.
	Conn *nats.Conn

	Bucket       string
	History      int
	MaxValueSize int32
	Replicas     int

	// OpTimeout bounds a KV call whose context carries no deadline.
	OpTimeout time.Duration
}

// DefaultNATSStoreConfig returns a single-replica bucket named todokit.
func DefaultNATSStoreConfig() NATSStoreConfig {
	return NATSStoreConfig{
		Bucket:       "todokit",
		History:      1,
		MaxValueSize: 1 << 20,
		Replicas:     1,
		OpTimeout:    5 * time.Second,
	}
}

func (c NATSStoreConfig) withDefaults() NATSStoreConfig {
	d := DefaultNATSStoreConfig()
	if c.Bucket == "" {
		c.Bucket = d.Bucket
	}
	if c.History <= 0 {
		c.History = d.History
	}
	if c.MaxValueSize <= 0 {
		c.MaxValueSize = d.MaxValueSize
	}
	if c.Replicas <= 0 {
		c.Replicas = d.Replicas
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = d.OpTimeout
	}
	return c
}

// NewNATSStore binds to the bucket, creating it on first use.
func NewNATSStore(ctx context.Context, cfg NATSStoreConfig) (*NATSStore, error) {
	if cfg.Conn == nil {
		return nil, errors.New("nats store: connection required")
	}
	cfg = cfg.withDefaults()

	js, err := jetstream.New(cfg.Conn)
	if err != nil {
		return nil, fmt.Errorf("nats store: jetstream: %w", err)
	}

	setupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	kv, err := js.CreateOrUpdateKeyValue(setupCtx, jetstream.KeyValueConfig{
		Bucket:       cfg.Bucket,
		History:      uint8(cfg.History),
		MaxValueSize: cfg.MaxValueSize,
		Replicas:     cfg.Replicas,
	})
	if err != nil {
		return nil, fmt.Errorf("nats store: bucket %s: %w", cfg.Bucket, err)
	}

	return &NATSStore{js: js, kv: kv, config: cfg, held: map[string]*natsLock{}}, nil
}

// call validates key, bounds ctx by OpTimeout and runs fn.
func (s *NATSStore) call(ctx context.Context, key string, fn func(context.Context) error) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.OpTimeout)
		defer cancel()
	}
	return fn(ctx)
}

// kvError maps JetStream KV failures onto the store's sentinel errors.
func kvError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jetstream.ErrKeyNotFound):
		return ErrNotFound
	case wrongRevision(err):
		return ErrRevisionMismatch
	case errors.Is(err, jetstream.ErrKeyExists):
		return ErrKeyExists
	}
	return fmt.Errorf("kv %s: %w", op, err)
}

// wrongRevision reports JetStream refusing an expected-revision write.
func wrongRevision(err error) bool {
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

func (s *NATSStore) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := s.GetKeyValue(ctx, key)
	if err != nil {
		return nil, err
	}
	return entry.Value, nil
}

// GetKeyValue returns the entry and its revision. With History 1 only the
// latest revision survives, so Created and Modified are equal.
func (s *NATSStore) GetKeyValue(ctx context.Context, key string) (*KeyValue, error) {
	var out *KeyValue
	err := s.call(ctx, key, func(ctx context.Context) error {
		entry, err := s.kv.Get(ctx, key)
		if err != nil {
			return kvError("get", err)
		}
		out = &KeyValue{
			Key:      entry.Key(),
			Value:    entry.Value(),
			Revision: entry.Revision(),
			Created:  entry.Created(),
			Modified: entry.Created(),
		}
		return nil
	})
	return out, err
}

func (s *NATSStore) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	var rev uint64
	err := s.call(ctx, key, func(ctx context.Context) (err error) {
		rev, err = s.kv.Put(ctx, key, value)
		return kvError("put", err)
	})
	return rev, err
}

func (s *NATSStore) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	var rev uint64
	err := s.call(ctx, key, func(ctx context.Context) (err error) {
		rev, err = s.kv.Create(ctx, key, value)
		if err != nil && errors.Is(err, jetstream.ErrKeyExists) {
			return ErrKeyExists
		}
		return kvError("create", err)
	})
	return rev, err
}

// Update writes value only if key is still at revision. A missing key is
// reported as ErrNotFound rather than a mismatch.
func (s *NATSStore) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	var rev uint64
	err := s.call(ctx, key, func(ctx context.Context) (err error) {
		rev, err = s.kv.Update(ctx, key, value, revision)
		if err == nil {
			return nil
		}
		if !wrongRevision(err) && !errors.Is(err, jetstream.ErrKeyExists) {
			return kvError("update", err)
		}
		if _, getErr := s.kv.Get(ctx, key); errors.Is(getErr, jetstream.ErrKeyNotFound) {
			return ErrNotFound
		}
		return ErrRevisionMismatch
	})
	return rev, err
}

// Delete is a no-op for a missing key.
func (s *NATSStore) Delete(ctx context.Context, key string) error {
	return s.call(ctx, key, func(ctx context.Context) error {
		if err := kvError("delete", s.kv.Delete(ctx, key)); err != ErrNotFound {
			return err
		}
		return nil
	})
}

// Keys lists the bucket and filters by pattern client side.
func (s *NATSStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, 2*s.config.OpTimeout)
	defer cancel()

	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return nil, kvError("list", err)
	}
	defer lister.Stop()

	var keys []string
	for key := range lister.Keys() {
		if MatchPattern(pattern, key) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Lock stores the lease expiry under _lock.<key>. An expired lease is
// taken over by a revision-checked update, so only one contender wins.
func (s *NATSStore) Lock(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	if err := ValidateTTL(ttl); err != nil {
		return nil, err
	}

	lock := &natsLock{store: s, key: lockPrefix + key, ttl: ttl}
	err := s.call(ctx, key, func(ctx context.Context) error {
		expires := time.Now().Add(ttl)
		rev, err := s.kv.Create(ctx, lock.key, encodeExpiry(expires))
		if err != nil {
			rev, err = s.takeOver(ctx, lock.key, expires, err)
			if err != nil {
				return err
			}
		}
		lock.expires, lock.revision = expires, rev
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.heldMu.Lock()
	s.held[lock.key] = lock
	s.heldMu.Unlock()
	return lock, nil
}

// takeOver claims a lease entry that Create found, if it has lapsed.
func (s *NATSStore) takeOver(ctx context.Context, lockKey string, expires time.Time, createErr error) (uint64, error) {
	if !errors.Is(createErr, jetstream.ErrKeyExists) {
		return 0, fmt.Errorf("acquire lock: %w", createErr)
	}

	current, err := s.kv.Get(ctx, lockKey)
	switch {
	case errors.Is(err, jetstream.ErrKeyNotFound):
		return 0, ErrLockHeld
	case err != nil:
		return 0, fmt.Errorf("inspect lock: %w", err)
	case time.Now().Before(decodeExpiry(current.Value())):
		return 0, ErrLockHeld
	}

	rev, err := s.kv.Update(ctx, lockKey, encodeExpiry(expires), current.Revision())
	if err != nil {
		if wrongRevision(err) || errors.Is(err, jetstream.ErrKeyExists) {
			return 0, ErrLockHeld
		}
		return 0, fmt.Errorf("take over lock: %w", err)
	}
	return rev, nil
}

// Close marks every outstanding lock released. The NATS connection stays
// open.
func (s *NATSStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.heldMu.Lock()
	defer s.heldMu.Unlock()
	for _, l := range s.held {
		l.released.Store(true)
	}
	s.held = nil
	return nil
}

func encodeExpiry(t time.Time) []byte {
	return strconv.AppendInt(nil, t.UnixNano(), 10)
}

// decodeExpiry reads garbage as the zero time, i.e. already expired.
func decodeExpiry(b []byte) time.Time {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n)
}

type natsLock struct {
	store    *NATSStore
	key      string
	ttl      time.Duration
	released atomic.Bool

	mu       sync.Mutex
	expires  time.Time
	revision uint64
}

// Unlock deletes the lease only while it is still at our revision.
func (l *natsLock) Unlock() error {
	if l.released.Swap(true) {
		return ErrLockNotHeld
	}

	l.store.heldMu.Lock()
	delete(l.store.held, l.key)
	l.store.heldMu.Unlock()

	l.mu.Lock()
	rev := l.revision
	l.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), l.store.config.OpTimeout)
	defer cancel()

	switch err := kvError("release lock", l.store.kv.Delete(ctx, l.key, jetstream.LastRevision(rev))); err {
	case nil, ErrNotFound, ErrRevisionMismatch, ErrKeyExists:
		return nil
	default:
		return err
	}
}

// Refresh pushes the expiry out by another ttl.
func (l *natsLock) Refresh() error {
	if l.released.Load() {
		return ErrLockNotHeld
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Now().After(l.expires) {
		l.released.Store(true)
		return ErrLockExpired
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.store.config.OpTimeout)
	defer cancel()

	expires := time.Now().Add(l.ttl)
	rev, err := l.store.kv.Update(ctx, l.key, encodeExpiry(expires), l.revision)
	switch {
	case err == nil:
		l.expires, l.revision = expires, rev
		return nil
	case wrongRevision(err) || errors.Is(err, jetstream.ErrKeyExists):
		l.released.Store(true)
		return ErrLockExpired
	}
	return fmt.Errorf("refresh lock: %w", err)
}

func (l *natsLock) Key() string { return l.key }
