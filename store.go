package saga

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// KVStore is the durable key-value store consumed by the idempotency gate
// and by steps that keep entity records (for example user:{customerID}).
// A ttl of zero means the entry does not expire.
type KVStore interface {
	// Get retrieves the value stored under key. The second return value is
	// false when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores value under key, expiring it after ttl if ttl > 0.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// memoryEntry is a stored value plus its expiry deadline (zero = never).
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore provides an in-memory implementation of KVStore for testing
// or scenarios where persistence is not required. It is safe for use by
// concurrent transactions. Expired entries are dropped lazily on read.
type MemoryStore struct {
	entries *xsync.MapOf[string, memoryEntry]
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: xsync.NewMapOf[string, memoryEntry](),
		now:     time.Now,
	}
}

// Get retrieves the value under key, honouring expiry.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, ok := m.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		m.entries.Delete(key)
		return nil, false, nil
	}
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, true, nil
}

// Put stores the value under key with an optional ttl.
func (m *MemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: make([]byte, len(value))}
	copy(entry.value, value)
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.entries.Store(key, entry)
	return nil
}

// Delete removes the key from memory.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.entries.Delete(key)
	return nil
}
