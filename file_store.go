package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// fileEntry is the on-disk representation of one stored value.
type fileEntry struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// FileStore provides a file-based implementation of KVStore that persists
// entries as JSON files on disk. It suits single-node deployments where
// idempotency records must survive a process restart but no shared
// infrastructure is available.
type FileStore struct {
	basePath string
	mu       sync.Mutex // Protects file operations
	now      func() time.Time
}

// NewFileStore creates a new file-based store that saves entries to the
// specified directory.
func NewFileStore(basePath string) (*FileStore, error) {
	// Ensure the base directory exists
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FileStore{
		basePath: basePath,
		now:      time.Now,
	}, nil
}

// Get reads the entry for key, honouring expiry. An expired entry is
// removed and reported as absent.
func (f *FileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.filename(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read entry file: %w", err)
	}

	var entry fileEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal entry: %w", err)
	}

	if !entry.ExpiresAt.IsZero() && !f.now().Before(entry.ExpiresAt) {
		_ = os.Remove(f.filename(key))
		return nil, false, nil
	}

	return entry.Value, true, nil
}

// Put persists the value under key as a JSON file.
func (f *FileStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry := fileEntry{
		Key:      key,
		Value:    value,
		StoredAt: f.now(),
	}
	if ttl > 0 {
		entry.ExpiresAt = entry.StoredAt.Add(ttl)
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	if err := os.WriteFile(f.filename(key), data, 0644); err != nil {
		return fmt.Errorf("failed to write entry file: %w", err)
	}

	return nil
}

// Delete removes the entry file for key.
func (f *FileStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.filename(key)); err != nil {
		if os.IsNotExist(err) {
			// Already deleted, not an error
			return nil
		}
		return fmt.Errorf("failed to delete entry file: %w", err)
	}

	return nil
}

// filename returns the full path for a key's entry file. Key separators
// are flattened so keys like "idempotency:op-1" stay within basePath.
func (f *FileStore) filename(key string) string {
	safe := strings.NewReplacer(":", "_", "/", "_", string(os.PathSeparator), "_").Replace(key)
	return filepath.Join(f.basePath, safe+".json")
}
