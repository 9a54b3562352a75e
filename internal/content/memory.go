package content

import (
	"context"
	"sort"
	"sync"

	"zblog/internal/models"
)

// MemoryBackend keeps content in process memory. A restart loses everything.
type MemoryBackend struct {
	mu     sync.RWMutex
	byPost map[string]*models.StoredContent
	byHash map[uint64]string // content hash -> post id
}

// NewMemoryBackend creates an empty MemoryBackend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		byPost: make(map[string]*models.StoredContent),
		byHash: make(map[uint64]string),
	}
}

// SaveContent stores a copy of the record, replacing any previous one for the post
func (m *MemoryBackend) SaveContent(ctx context.Context, record *models.StoredContent) error {
	stored := *record

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.byPost[stored.PostID]; ok && prev.ContentHash != 0 {
		delete(m.byHash, prev.ContentHash)
	}
	m.byPost[stored.PostID] = &stored
	if stored.ContentHash != 0 {
		m.byHash[stored.ContentHash] = stored.PostID
	}
	return nil
}

// GetContent returns a copy of the record stored for postID
func (m *MemoryBackend) GetContent(ctx context.Context, postID string) (*models.StoredContent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.byPost[postID]
	if !ok {
		return nil, models.ErrContentNotFound
	}
	out := *rec
	return &out, nil
}

// GetContentByHash returns a copy of the record indexed under contentHash
func (m *MemoryBackend) GetContentByHash(ctx context.Context, contentHash uint64) (*models.StoredContent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	postID, ok := m.byHash[contentHash]
	if !ok {
		return nil, models.ErrContentNotFound
	}
	out := *m.byPost[postID]
	return &out, nil
}

// ListContents returns copies of all records ordered by post id
func (m *MemoryBackend) ListContents(ctx context.Context) ([]*models.StoredContent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.StoredContent, 0, len(m.byPost))
	for _, rec := range m.byPost {
		c := *rec
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostID < out[j].PostID })
	return out, nil
}

// ClearContents drops every record
func (m *MemoryBackend) ClearContents(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byPost = make(map[string]*models.StoredContent)
	m.byHash = make(map[uint64]string)
	return nil
}
