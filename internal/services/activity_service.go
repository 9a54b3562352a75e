package services

import (
	"context"
	"fmt"
	"log/slog"

	"zblog/internal/models"
	"zblog/internal/storage"
)

// ActivityService records every confirmed post activity
type ActivityService struct {
	store storage.ActivityStore
}

// NewActivityService creates a new ActivityService instance
func NewActivityService(store storage.ActivityStore) *ActivityService {
	return &ActivityService{store: store}
}

// Process saves the activity carried by the transaction
func (s *ActivityService) Process(ctx context.Context, tx *ConfirmedTx) error {
	activity := &models.PostActivity{
		ActivityID:   fmt.Sprintf("%s:%s", tx.Receipt.TxHash, tx.Action),
		PostID:       tx.PostID,
		ActivityType: tx.Action,
		Actor:        tx.Actor,
		Target:       tx.Target,
		TxHash:       tx.Receipt.TxHash,
		BlockNumber:  tx.Receipt.BlockNumber,
		Timestamp:    tx.Receipt.Timestamp,
	}

	if err := s.store.SaveActivity(ctx, activity); err != nil {
		return fmt.Errorf("failed to save activity: %w", err)
	}

	slog.Debug("ActivityService: Activity saved",
		"post_id", activity.PostID,
		"activity_type", activity.ActivityType,
		"tx_hash", activity.TxHash,
	)
	return nil
}

// Activities lists the recorded activity of a post, newest first
func (s *ActivityService) Activities(ctx context.Context, postID string, limit, offset int) ([]*models.PostActivity, error) {
	return s.store.ListActivities(ctx, postID, limit, offset)
}

// Name returns the service name
func (s *ActivityService) Name() string {
	return "ActivityService"
}
