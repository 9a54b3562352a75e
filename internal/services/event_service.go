package services

import (
	"context"
	"fmt"
	"log/slog"

	"zblog/internal/ledger"
	"zblog/internal/models"
)

// expectedEvents maps each action to the event its contract call emits
var expectedEvents = map[models.ActivityType]string{
	models.ActivityCreate: ledger.EventPostCreated,
	models.ActivityView:   ledger.EventPostViewed,
	models.ActivityLike:   ledger.EventPostLiked,
	models.ActivityGrant:  ledger.EventAccessGranted,
}

// EventService checks that a confirmed call emitted the event its action
// promises and that the event names the same post
type EventService struct{}

// NewEventService creates a new EventService instance
func NewEventService() *EventService {
	return &EventService{}
}

// Process validates the receipt logs of the transaction
func (s *EventService) Process(ctx context.Context, tx *ConfirmedTx) error {
	name, ok := expectedEvents[tx.Action]
	if !ok {
		return nil
	}

	log, found := tx.Receipt.FindLog(name)
	if !found {
		slog.Warn("EventService: Expected event missing from receipt",
			"event", name,
			"post_id", tx.PostID,
			"tx_hash", tx.Receipt.TxHash,
		)
		return fmt.Errorf("event %s missing from %s", name, tx.Receipt.TxHash)
	}

	if raw, ok := log.Args["postId"]; ok && tx.PostID != models.UnknownPostID {
		id, err := ledger.ClearValueToUint64(raw)
		if err != nil {
			return fmt.Errorf("event %s has malformed postId: %w", name, err)
		}
		if fmt.Sprint(id) != tx.PostID {
			return fmt.Errorf("event %s names post %d, expected %s", name, id, tx.PostID)
		}
	}

	slog.Debug("EventService: Event confirmed",
		"event", name,
		"post_id", tx.PostID,
		"block", tx.Receipt.BlockNumber,
	)
	return nil
}

// Name returns the service name
func (s *EventService) Name() string {
	return "EventService"
}
