package storage

import (
	"context"

	"zblog/internal/models"
)

// ActivityStore records confirmed post activity
type ActivityStore interface {
	SaveActivity(ctx context.Context, activity *models.PostActivity) error
	ListActivities(ctx context.Context, postID string, limit, offset int) ([]*models.PostActivity, error)
}

// Repository defines the interface for all storage operations
type Repository interface {
	// Post contents
	SaveContent(ctx context.Context, record *models.StoredContent) error
	GetContent(ctx context.Context, postID string) (*models.StoredContent, error)
	GetContentByHash(ctx context.Context, contentHash uint64) (*models.StoredContent, error)
	ListContents(ctx context.Context) ([]*models.StoredContent, error)
	ClearContents(ctx context.Context) error

	// Post activities
	ActivityStore

	// Health & Maintenance
	Ping(ctx context.Context) error
	Close() error
}
