package session

import (
	"context"
	"sync"
	"time"
)

// Storage is the string key/value store signatures are persisted in
type Storage interface {
	// GetItem returns the value for key and whether it was present
	GetItem(ctx context.Context, key string) (string, bool, error)
	// SetItem stores value under key; ttl <= 0 means no expiry
	SetItem(ctx context.Context, key, value string, ttl time.Duration) error
	RemoveItem(ctx context.Context, key string) error
}

type memoryItem struct {
	value     string
	expiresAt time.Time
}

// MemoryStorage is a process-local Storage
type MemoryStorage struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

func (m *MemoryStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok {
		return "", false, nil
	}
	if !item.expiresAt.IsZero() && !m.now().Before(item.expiresAt) {
		delete(m.items, key)
		return "", false, nil
	}
	return item.value, true, nil
}

func (m *MemoryStorage) SetItem(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := memoryItem{value: value}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = item
	return nil
}

func (m *MemoryStorage) RemoveItem(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}

// Len returns the number of stored items, expired ones included
func (m *MemoryStorage) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
