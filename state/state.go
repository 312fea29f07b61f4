package state

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// Common errors.
var (
	ErrNotFound         = errors.New("key not found")
	ErrKeyExists        = errors.New("key already exists")
	ErrRevisionMismatch = errors.New("revision mismatch")
	ErrClosed           = errors.New("store closed")
	ErrLockHeld         = errors.New("lock already held")
	ErrLockNotHeld      = errors.New("lock not held")
	ErrLockExpired      = errors.New("lock expired")
	ErrInvalidKey       = errors.New("invalid key")
	ErrInvalidTTL       = errors.New("invalid TTL")
)

// KeyValue represents a stored entry with metadata.
type KeyValue struct {
	// Key is the entry key.
	Key string

	// Value is the entry value.
	Value []byte

	// Revision changes on every write to the key. Pass it to Update to
	// replace the value only if nobody wrote in between.
	Revision uint64

	// Created is when the key was first created.
	Created time.Time

	// Modified is when the key was last written.
	Modified time.Time
}

// Entry is a key and value to be written.
type Entry struct {
	Key   string
	Value []byte
}

// StateStore provides durable key-value storage with conditional writes
// and locking.
type StateStore interface {
	// Get retrieves a value by key.
	// Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// GetKeyValue retrieves the full entry including its revision.
	// Returns ErrNotFound if the key does not exist.
	GetKeyValue(ctx context.Context, key string) (*KeyValue, error)

	// Put stores a value unconditionally and returns the new revision.
	Put(ctx context.Context, key string, value []byte) (uint64, error)

	// Create stores a value only if the key does not exist.
	// Returns ErrKeyExists otherwise.
	Create(ctx context.Context, key string, value []byte) (uint64, error)

	// Update replaces a value only if the key is still at revision.
	// Returns ErrNotFound if the key is gone and ErrRevisionMismatch if
	// it was written since.
	Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error)

	// Delete removes a key.
	// Returns nil if the key does not exist.
	Delete(ctx context.Context, key string) error

	// Keys returns all keys matching a pattern.
	// Pattern supports * wildcard at the end (e.g., "profiles.*").
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Lock acquires a lock with the given TTL.
	// Returns ErrLockHeld if the lock is already held.
	Lock(ctx context.Context, key string, ttl time.Duration) (Lock, error)

	// Close shuts down the store and releases resources.
	Close() error
}

// Batcher is implemented by stores that can create several keys atomically.
type Batcher interface {
	// CreateBatch creates every entry or none of them.
	// Returns ErrKeyExists if any key already exists.
	CreateBatch(ctx context.Context, entries []Entry) error
}

// Lock represents a held lock.
type Lock interface {
	// Unlock releases the lock.
	// Returns ErrLockNotHeld if already released.
	Unlock() error

	// Refresh extends the lock TTL.
	// Returns ErrLockExpired if the lock has expired.
	Refresh() error

	// Key returns the lock key.
	Key() string
}

// ValidateKey checks if a key is valid.
// Keys are dot separated tokens; see EncodeToken for embedding arbitrary ids.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if strings.ContainsAny(key, " \t\r\n*>") {
		return ErrInvalidKey
	}
	if strings.HasPrefix(key, ".") || strings.HasSuffix(key, ".") || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	if len(key) > 1024 {
		return ErrInvalidKey
	}
	return nil
}

// ValidateTTL checks if a lock TTL is valid.
func ValidateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}

// MatchPattern checks if a key matches a pattern.
// Supports * wildcard at the end (e.g., "tasks.*" matches "tasks.YWxpY2U").
func MatchPattern(pattern, key string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(key, prefix)
	}
	return pattern == key
}

// EncodeToken encodes an arbitrary identifier as a single key token.
// The result only uses [A-Za-z0-9_-], which every backend accepts.
func EncodeToken(id string) string {
	if id == "" {
		return "_"
	}
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// DecodeToken reverses EncodeToken.
func DecodeToken(token string) (string, error) {
	if token == "_" {
		return "", nil
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrInvalidKey
	}
	return string(b), nil
}

// Key joins tokens into a store key.
func Key(parts ...string) string {
	return strings.Join(parts, ".")
}
