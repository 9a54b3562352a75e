package services

import (
	"context"

	"zblog/internal/ledger"
	"zblog/internal/models"
)

// ConfirmedTx is a confirmed, successful contract call ready for service processing
type ConfirmedTx struct {
	Action  models.ActivityType
	PostID  string
	Actor   string
	Target  string // reader for grants
	Receipt *ledger.Receipt
}

// Service defines the interface that all post services must implement
type Service interface {
	// Process handles a single confirmed transaction.
	// A returned error is logged by the caller and never undoes the transaction.
	Process(ctx context.Context, tx *ConfirmedTx) error

	// Name returns the service name for logging
	Name() string
}
