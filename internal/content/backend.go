package content

import (
	"context"

	"zblog/internal/models"
)

// Backend persists full post content.
// Implementations return models.ErrContentNotFound for unknown keys.
type Backend interface {
	SaveContent(ctx context.Context, record *models.StoredContent) error
	GetContent(ctx context.Context, postID string) (*models.StoredContent, error)
	GetContentByHash(ctx context.Context, contentHash uint64) (*models.StoredContent, error)
	ListContents(ctx context.Context) ([]*models.StoredContent, error)
	ClearContents(ctx context.Context) error
}
