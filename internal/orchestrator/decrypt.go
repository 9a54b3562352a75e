package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"zblog/internal/debug"
	"zblog/internal/ledger"
	"zblog/internal/metrics"
	"zblog/internal/models"
	"zblog/internal/reconstruct"
	"zblog/internal/session"
)

// DecryptStats decrypts the view and like counters of a post in one batch.
// Either both counters are returned or an error; never one of them.
func (o *Orchestrator) DecryptStats(ctx context.Context, postID uint64) (*models.PostStats, error) {
	sig, err := o.sessions.LoadOrSign(ctx, []string{o.contract.Address()}, o.signer)
	if err != nil {
		return nil, err
	}

	viewHandle, err := read(ctx, o, "getEncryptedViewCount", func(ctx context.Context) (ledger.Handle, error) {
		return o.contract.GetEncryptedViewCount(ctx, postID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get view count handle: %w", err)
	}
	likeHandle, err := read(ctx, o, "getEncryptedLikeCount", func(ctx context.Context) (ledger.Handle, error) {
		return o.contract.GetEncryptedLikeCount(ctx, postID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get like count handle: %w", err)
	}

	values, err := o.decrypt(ctx, "stats", sig, viewHandle, likeHandle)
	if err != nil {
		return nil, err
	}

	views, err := ledger.ClearValueToUint64(values[viewHandle])
	if err != nil {
		metrics.DecryptRequests.WithLabelValues("stats", "malformed").Inc()
		return nil, fmt.Errorf("%w: view count: %w", ErrDecryptFailed, err)
	}
	likes, err := ledger.ClearValueToUint64(values[likeHandle])
	if err != nil {
		metrics.DecryptRequests.WithLabelValues("stats", "malformed").Inc()
		return nil, fmt.Errorf("%w: like count: %w", ErrDecryptFailed, err)
	}

	stats := &models.PostStats{
		PostID:    formatPostID(postID),
		ViewCount: views,
		LikeCount: likes,
	}
	debug.PrintStats(stats.PostID, stats)
	o.updatePost(stats.PostID, func(p *models.BlogPost) {
		p.ViewCount = &views
		p.LikeCount = &likes
	})
	return stats, nil
}

// DecryptContent decrypts the content words and category of a post in one
// batch and reconstructs the best available text
func (o *Orchestrator) DecryptContent(ctx context.Context, postID uint64) (*models.DecryptedContent, error) {
	sig, err := o.sessions.LoadOrSign(ctx, []string{o.contract.Address()}, o.signer)
	if err != nil {
		return nil, err
	}

	encrypted, err := read(ctx, o, "getEncryptedContent", func(ctx context.Context) (*ledger.EncryptedContent, error) {
		return o.contract.GetEncryptedContent(ctx, postID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get content handles: %w", err)
	}
	categoryHandle, err := read(ctx, o, "getEncryptedCategory", func(ctx context.Context) (ledger.Handle, error) {
		return o.contract.GetEncryptedCategory(ctx, postID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get category handle: %w", err)
	}

	values, err := o.decrypt(ctx, "content", sig, append(encrypted.Handles(), categoryHandle)...)
	if err != nil {
		return nil, err
	}

	id := formatPostID(postID)
	rebuilt, err := reconstruct.Reconstruct(ctx, o.content, id, *encrypted, values)
	if err != nil {
		metrics.DecryptRequests.WithLabelValues("content", "malformed").Inc()
		return nil, fmt.Errorf("%w: %w", ErrDecryptFailed, err)
	}

	category, err := ledger.ClearValueToUint64(values[categoryHandle])
	if err != nil || category > math.MaxUint8 {
		metrics.DecryptRequests.WithLabelValues("content", "malformed").Inc()
		return nil, fmt.Errorf("%w: category %v: %v", ErrDecryptFailed, values[categoryHandle], err)
	}

	cat := uint8(category)
	o.updatePost(id, func(p *models.BlogPost) { p.Category = &cat })

	return &models.DecryptedContent{
		PostID:         id,
		Text:           rebuilt.Text,
		Fragment:       rebuilt.Fragment,
		OriginalLength: rebuilt.OriginalLength,
		Truncated:      rebuilt.Truncated,
		FromCache:      rebuilt.FromCache,
		Category:       cat,
	}, nil
}

// decrypt issues one batched UserDecrypt for all handles under sig
func (o *Orchestrator) decrypt(ctx context.Context, kind string, sig *session.DecryptionSignature, handles ...ledger.Handle) (map[ledger.Handle]any, error) {
	requests := make([]ledger.DecryptRequest, len(handles))
	for i, h := range handles {
		requests[i] = ledger.DecryptRequest{Handle: h, ContractAddress: o.contract.Address()}
	}

	start := time.Now()
	values, err := o.platform.UserDecrypt(ctx, requests, sig.DecryptParams())
	metrics.DecryptDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DecryptRequests.WithLabelValues(kind, "error").Inc()
		slog.Error("Decrypt request rejected", "kind", kind, "handles", len(handles), "error", err)
		if errors.Is(err, ledger.ErrGrantRejected) {
			// the next call signs a fresh grant
			if ferr := o.sessions.Forget(ctx, sig.UserAddress, sig.ContractAddresses); ferr != nil {
				slog.Warn("Failed to drop rejected signature", "user", sig.UserAddress, "error", ferr)
			}
		}
		return nil, fmt.Errorf("%w: %w", ErrDecryptFailed, err)
	}

	metrics.DecryptRequests.WithLabelValues(kind, "ok").Inc()
	return values, nil
}
