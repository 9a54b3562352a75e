package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"zblog/internal/debug"
	"zblog/internal/ledger"
	"zblog/internal/metrics"
	"zblog/internal/models"
)

// ListUserPosts loads the posts of the connected identity. A post whose
// metadata fails to load is logged and skipped. Only one load runs at a time.
func (o *Orchestrator) ListUserPosts(ctx context.Context) ([]models.BlogPost, error) {
	if o.signer == nil {
		return nil, fmt.Errorf("%w: no signing identity connected", ErrInvalidInput)
	}

	if !o.loading.CompareAndSwap(false, true) {
		metrics.BusyRejections.WithLabelValues("load").Inc()
		return nil, ErrBusy
	}
	defer o.loading.Store(false)

	user := o.signer.Address()
	ids, err := read(ctx, o, "getUserPosts", func(ctx context.Context) ([]uint64, error) {
		return o.contract.GetUserPosts(ctx, user)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user posts: %w", err)
	}

	slog.Debug("Loading posts", "user", user, "count", len(ids))

	posts := make([]models.BlogPost, 0, len(ids))
	for _, id := range ids {
		post, err := o.GetPost(ctx, id)
		if err != nil {
			metrics.PostLoadFailures.Inc()
			slog.Error("Failed to load post, skipping", "post_id", id, "error", err)
			continue
		}
		debug.PrintPost(post)
		posts = append(posts, *post)
	}

	o.mu.Lock()
	carryDecrypted(posts, o.posts)
	o.posts = posts
	o.mu.Unlock()
	metrics.PostsListed.Set(float64(len(posts)))

	slog.Info("Loaded blog posts", "user", user, "loaded", len(posts), "skipped", len(ids)-len(posts))
	return slices.Clone(posts), nil
}

// Posts returns the result of the last successful ListUserPosts
func (o *Orchestrator) Posts() []models.BlogPost {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Clone(o.posts)
}

// updatePost applies fn to the loaded entry for postID, if any
func (o *Orchestrator) updatePost(postID string, fn func(*models.BlogPost)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.posts {
		if o.posts[i].PostID == postID {
			fn(&o.posts[i])
			return
		}
	}
}

// carryDecrypted copies decrypted fields from the previous list into a fresh one
func carryDecrypted(fresh, previous []models.BlogPost) {
	byID := make(map[string]*models.BlogPost, len(previous))
	for i := range previous {
		byID[previous[i].PostID] = &previous[i]
	}
	for i := range fresh {
		if old, ok := byID[fresh[i].PostID]; ok {
			fresh[i].Category = old.Category
			fresh[i].ViewCount = old.ViewCount
			fresh[i].LikeCount = old.LikeCount
		}
	}
}

// GetPost returns the public metadata of one post
func (o *Orchestrator) GetPost(ctx context.Context, postID uint64) (*models.BlogPost, error) {
	data, err := read(ctx, o, "getPost", func(ctx context.Context) (*ledger.PostData, error) {
		return o.contract.GetPost(ctx, postID)
	})
	if err != nil {
		return nil, err
	}
	return &models.BlogPost{
		PostID:    formatPostID(data.ID),
		Author:    data.Author,
		CreatedAt: data.CreatedAt,
	}, nil
}

// TotalPosts returns the number of posts on the contract
func (o *Orchestrator) TotalPosts(ctx context.Context) (uint64, error) {
	return read(ctx, o, "getTotalPosts", func(ctx context.Context) (uint64, error) {
		return o.contract.GetTotalPosts(ctx)
	})
}
