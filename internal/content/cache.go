package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"zblog/internal/metrics"
	"zblog/internal/models"
)

// Source tells where a hash lookup result came from
type Source int

const (
	SourceFound Source = iota
	SourceSynthesized
)

func (s Source) String() string {
	switch s {
	case SourceFound:
		return "found"
	case SourceSynthesized:
		return "synthesized"
	default:
		return "unknown"
	}
}

// Lookup is the result of RetrieveByHash.
// A synthesized record is a placeholder and must never be persisted.
type Lookup struct {
	Record models.StoredContent
	Source Source
}

// Synthesized reports whether the record is a generated placeholder
func (l Lookup) Synthesized() bool {
	return l.Source == SourceSynthesized
}

// Cache is the off-ledger store of full post content keyed by post id
type Cache struct {
	backend Backend
	samples map[uint64]models.StoredContent
	now     func() time.Time
}

// NewCache creates a content cache over the given backend
func NewCache(backend Backend) *Cache {
	return &Cache{
		backend: backend,
		samples: sampleRecords(),
		now:     time.Now,
	}
}

// WithClock overrides the clock used for CreatedAt (tests)
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Store saves the full content of a post, replacing any previous record.
// It returns false when the backend fails; the post then only exists in its
// truncated on-ledger form.
func (c *Cache) Store(ctx context.Context, postID, title, content, author string, category uint8) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Content store panicked", "post_id", postID, "panic", r)
			metrics.ContentCacheOperations.WithLabelValues("store", "error").Inc()
			ok = false
		}
	}()

	record := &models.StoredContent{
		PostID:      postID,
		ContentHash: HashForPostID(postID),
		Title:       title,
		Content:     content,
		Author:      author,
		CreatedAt:   c.now().UTC(),
		Category:    category,
	}

	if err := c.backend.SaveContent(ctx, record); err != nil {
		slog.Error("Failed to store content", "post_id", postID, "error", err)
		metrics.ContentCacheOperations.WithLabelValues("store", "error").Inc()
		return false
	}

	slog.Debug("Content stored", "post_id", postID, "content_hash", record.ContentHash, "chars", len([]rune(content)))
	metrics.ContentCacheOperations.WithLabelValues("store", "ok").Inc()
	return true
}

// Retrieve returns the record stored for postID.
// Absence is not an error; backend faults are logged and reported as absence.
func (c *Cache) Retrieve(ctx context.Context, postID string) (*models.StoredContent, bool) {
	record, err := c.backend.GetContent(ctx, postID)
	if err != nil {
		if errors.Is(err, models.ErrContentNotFound) {
			metrics.ContentCacheOperations.WithLabelValues("retrieve", "miss").Inc()
			return nil, false
		}
		slog.Warn("Content backend failed, treating as absent", "post_id", postID, "error", err)
		metrics.ContentCacheOperations.WithLabelValues("retrieve", "error").Inc()
		return nil, false
	}

	metrics.ContentCacheOperations.WithLabelValues("retrieve", "hit").Inc()
	return record, true
}

// RetrieveByHash looks up a record by content hash. It checks the built-in
// samples, then the backend, and falls back to a synthesized placeholder.
func (c *Cache) RetrieveByHash(ctx context.Context, contentHash uint64) Lookup {
	if sample, ok := c.samples[contentHash]; ok {
		metrics.ContentCacheOperations.WithLabelValues("retrieve_hash", "sample").Inc()
		return Lookup{Record: sample, Source: SourceFound}
	}

	record, err := c.backend.GetContentByHash(ctx, contentHash)
	switch {
	case err == nil:
		metrics.ContentCacheOperations.WithLabelValues("retrieve_hash", "hit").Inc()
		return Lookup{Record: *record, Source: SourceFound}
	case !errors.Is(err, models.ErrContentNotFound):
		slog.Warn("Content backend failed on hash lookup", "content_hash", contentHash, "error", err)
	}

	metrics.ContentCacheOperations.WithLabelValues("retrieve_hash", "synthesized").Inc()
	return Lookup{Record: c.placeholder(contentHash), Source: SourceSynthesized}
}

// All returns every stored record (debug)
func (c *Cache) All(ctx context.Context) ([]*models.StoredContent, error) {
	records, err := c.backend.ListContents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list contents: %w", err)
	}
	return records, nil
}

// Clear drops every stored record (debug). Samples are not affected.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.backend.ClearContents(ctx); err != nil {
		return fmt.Errorf("failed to clear contents: %w", err)
	}
	slog.Info("🧹 Content storage cleared")
	return nil
}

func (c *Cache) placeholder(contentHash uint64) models.StoredContent {
	now := c.now().UTC()
	return models.StoredContent{
		ContentHash: contentHash,
		Title:       fmt.Sprintf("Article #%d", contentHash),
		Content: fmt.Sprintf("# Article Content\n\nNo stored content matches hash %d.\n\n"+
			"Decrypted at %s.", contentHash, now.Format(time.RFC3339)),
		Author:    PlaceholderAuthor,
		CreatedAt: now,
		Category:  PlaceholderCategory,
	}
}

// HashForPostID returns the numeric post id, or 0 when it does not parse
func HashForPostID(postID string) uint64 {
	n, err := strconv.ParseUint(postID, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
