package storage

import (
	"context"
	"path"
	"sync"

	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/types"
)

// FileStore archives bank files.
type FileStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// BankFileKey is bank-files/<direction>/<business_date>/<file_name>.
func BankFileKey(direction types.BankBatchDirection, businessDate types.Date, fileName string) string {
	return path.Join("bank-files", string(direction), businessDate.String(), path.Base(fileName))
}

// MemoryStore keeps files in memory.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[key]
	if !ok {
		return nil, ierr.NewError("file not found").
			WithHintf("No archived file at %s", key).
			Mark(ierr.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// Keys lists the stored keys.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.files))
	for k := range m.files {
		keys = append(keys, k)
	}
	return keys
}
