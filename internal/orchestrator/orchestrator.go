package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"zblog/internal/content"
	"zblog/internal/ledger"
	"zblog/internal/ledger/retry"
	"zblog/internal/models"
	"zblog/internal/services"
	"zblog/internal/session"
)

var (
	// ErrInvalidInput is returned for requests rejected before any ledger call
	ErrInvalidInput = errors.New("invalid input")

	// ErrBusy is returned when a guarded operation is already running
	ErrBusy = errors.New("operation already in progress")

	// ErrTransactionFailed covers submission failures and failed receipts
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrDecryptFailed covers rejected or malformed decrypt round trips
	ErrDecryptFailed = errors.New("decryption failed")
)

// Deps are the collaborators of an Orchestrator
type Deps struct {
	Contract ledger.Contract
	Platform ledger.Platform
	Sessions *session.Manager
	Content  *content.Cache

	// Signer is the connected signing identity; nil means no identity
	Signer session.Signer

	// Reads wraps idempotent ledger reads; defaults to no retry
	Reads retry.Strategy

	// Services run after every confirmed transaction
	Services []services.Service
}

// Orchestrator drives the post lifecycle against the ledger
type Orchestrator struct {
	contract ledger.Contract
	platform ledger.Platform
	sessions *session.Manager
	content  *content.Cache
	signer   session.Signer
	reads    retry.Strategy
	services []services.Service

	creating atomic.Bool
	loading  atomic.Bool

	mu    sync.RWMutex
	posts []models.BlogPost
}

// New creates a new Orchestrator with the given collaborators
func New(deps Deps) *Orchestrator {
	reads := deps.Reads
	if reads == nil {
		reads = retry.NewNoRetryStrategy()
	}
	return &Orchestrator{
		contract: deps.Contract,
		platform: deps.Platform,
		sessions: deps.Sessions,
		content:  deps.Content,
		signer:   deps.Signer,
		reads:    reads,
		services: deps.Services,
	}
}

// ContractAddress returns the address of the blog contract
func (o *Orchestrator) ContractAddress() string {
	return o.contract.Address()
}

// SignerAddress returns the connected identity's address, or "" when none
func (o *Orchestrator) SignerAddress() string {
	if o.signer == nil {
		return ""
	}
	return o.signer.Address()
}

// Content returns the content cache
func (o *Orchestrator) Content() *content.Cache {
	return o.content
}

// Services returns the list of registered services (for inspection/testing)
func (o *Orchestrator) Services() []services.Service {
	return o.services
}

// IsCreating reports whether a post creation is in flight
func (o *Orchestrator) IsCreating() bool {
	return o.creating.Load()
}

// IsLoading reports whether a post list load is in flight
func (o *Orchestrator) IsLoading() bool {
	return o.loading.Load()
}

// dispatch runs a confirmed transaction through all registered services
func (o *Orchestrator) dispatch(ctx context.Context, tx *services.ConfirmedTx) {
	slog.Debug("Orchestrator: Dispatching confirmed transaction",
		"action", tx.Action,
		"post_id", tx.PostID,
		"tx_hash", tx.Receipt.TxHash,
		"services_count", len(o.services),
	)

	for _, service := range o.services {
		if err := service.Process(ctx, tx); err != nil {
			// The transaction is already final; service failures are reported only
			slog.Error("Service processing failed",
				"service", service.Name(),
				"tx_hash", tx.Receipt.TxHash,
				"error", err,
			)
		}
	}
}

func (o *Orchestrator) sender() (ledger.TxOpts, error) {
	if o.signer == nil {
		return ledger.TxOpts{}, fmt.Errorf("%w: no signing identity connected", ErrInvalidInput)
	}
	return ledger.TxOpts{From: o.signer.Address()}, nil
}

// read runs an idempotent ledger read through the retry strategy
func read[T any](ctx context.Context, o *Orchestrator, name string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := o.reads.Execute(ctx, name, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// ParsePostID parses a decimal post id
func ParsePostID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: post id %q", ErrInvalidInput, s)
	}
	return id, nil
}

func formatPostID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
