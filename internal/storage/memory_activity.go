package storage

import (
	"context"
	"sort"
	"sync"

	"zblog/internal/models"
)

// MemoryActivityLog keeps post activity in memory
type MemoryActivityLog struct {
	mu     sync.RWMutex
	seen   map[string]struct{}
	byPost map[string][]*models.PostActivity
}

// NewMemoryActivityLog creates an empty activity log
func NewMemoryActivityLog() *MemoryActivityLog {
	return &MemoryActivityLog{
		seen:   make(map[string]struct{}),
		byPost: make(map[string][]*models.PostActivity),
	}
}

// SaveActivity appends an activity; a repeated activity id is ignored
func (l *MemoryActivityLog) SaveActivity(ctx context.Context, activity *models.PostActivity) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, dup := l.seen[activity.ActivityID]; dup {
		return nil
	}
	l.seen[activity.ActivityID] = struct{}{}

	stored := *activity
	l.byPost[stored.PostID] = append(l.byPost[stored.PostID], &stored)
	return nil
}

// ListActivities returns the activities of a post, newest first
func (l *MemoryActivityLog) ListActivities(ctx context.Context, postID string, limit, offset int) ([]*models.PostActivity, error) {
	l.mu.RLock()
	all := make([]*models.PostActivity, 0, len(l.byPost[postID]))
	for _, a := range l.byPost[postID] {
		c := *a
		all = append(all, &c)
	}
	l.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].Timestamp.After(all[j].Timestamp)
		}
		return all[i].BlockNumber > all[j].BlockNumber
	})

	if offset >= len(all) {
		return []*models.PostActivity{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}
