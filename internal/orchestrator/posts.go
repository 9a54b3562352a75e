package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stellar/go/strkey"

	"zblog/internal/ledger"
	"zblog/internal/metrics"
	"zblog/internal/models"
	"zblog/internal/services"
	"zblog/internal/wordcodec"
)

// CreatePostRequest is the input of CreatePost
type CreatePostRequest struct {
	Content     string `json:"content"`
	Title       string `json:"title,omitempty"`
	Category    uint8  `json:"category"`
	AccessLevel uint8  `json:"access_level"`
	Price       uint32 `json:"price"`
}

// CreateResult reports the outcome of CreatePost
type CreateResult struct {
	PostID        string                 `json:"post_id"`
	State         models.PostState       `json:"state"`
	Title         string                 `json:"title"`
	Encoded       wordcodec.EncodedWords `json:"encoded"`
	ContentStored bool                   `json:"content_stored"`
	TxHash        string                 `json:"tx_hash,omitempty"`
	BlockNumber   uint64                 `json:"block_number,omitempty"`
}

// TxResult reports the outcome of a view, like or grant
type TxResult struct {
	PostID      string           `json:"post_id"`
	State       models.PostState `json:"state"`
	TxHash      string           `json:"tx_hash,omitempty"`
	BlockNumber uint64           `json:"block_number,omitempty"`
}

// CreatePost encrypts and submits a new post, then stores its full text in
// the content cache. Only one creation runs at a time; a concurrent call
// returns ErrBusy without touching the ledger.
func (o *Orchestrator) CreatePost(ctx context.Context, req CreatePostRequest) (*CreateResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if req.AccessLevel > models.AccessPaid {
		return nil, fmt.Errorf("%w: access level %d", ErrInvalidInput, req.AccessLevel)
	}
	opts, err := o.sender()
	if err != nil {
		return nil, err
	}

	if !o.creating.CompareAndSwap(false, true) {
		metrics.BusyRejections.WithLabelValues("create").Inc()
		return nil, ErrBusy
	}
	defer o.creating.Store(false)

	res := &CreateResult{State: models.PostDraft}
	res.Encoded = wordcodec.Encode(req.Content)

	bundle, err := o.platform.CreateEncryptedInput(o.contract.Address(), opts.From).
		Add32(res.Encoded.Part1).
		Add32(res.Encoded.Part2).
		Add32(res.Encoded.Part3).
		Add32(res.Encoded.OriginalLength).
		Add8(req.Category).
		Add8(req.AccessLevel).
		Add32(req.Price).
		Encrypt(ctx)
	if err != nil {
		res.State = models.PostFailed
		metrics.TransactionFailures.WithLabelValues("createPost").Inc()
		return res, fmt.Errorf("%w: failed to encrypt post inputs: %w", ErrTransactionFailed, err)
	}
	if len(bundle.Handles) != 7 {
		res.State = models.PostFailed
		return res, fmt.Errorf("%w: expected 7 encrypted handles, got %d", ErrTransactionFailed, len(bundle.Handles))
	}

	res.State = models.PostSubmitting
	metrics.TransactionsSubmitted.WithLabelValues("createPost").Inc()

	receipt, err := o.contract.CreatePost(ctx, opts, ledger.CreatePostInput{
		ContentPart1: bundle.Handles[0],
		ContentPart2: bundle.Handles[1],
		ContentPart3: bundle.Handles[2],
		Length:       bundle.Handles[3],
		Category:     bundle.Handles[4],
		AccessLevel:  bundle.Handles[5],
		Price:        bundle.Handles[6],
		InputProof:   bundle.InputProof,
	})
	if err != nil {
		res.State = models.PostFailed
		metrics.TransactionFailures.WithLabelValues("createPost").Inc()
		return res, fmt.Errorf("%w: createPost: %w", ErrTransactionFailed, err)
	}
	if !receipt.Successful() {
		res.State = models.PostFailed
		res.TxHash = receipt.TxHash
		metrics.TransactionFailures.WithLabelValues("createPost").Inc()
		return res, fmt.Errorf("%w: createPost %s reverted", ErrTransactionFailed, receipt.TxHash)
	}

	res.State = models.PostConfirmed
	res.TxHash = receipt.TxHash
	res.BlockNumber = receipt.BlockNumber
	res.PostID = postIDFromReceipt(receipt)
	res.Title = DeriveTitle(req.Title, req.Content, res.PostID)
	metrics.PostsCreated.Inc()

	// The ledger record is final; a cache failure leaves only the truncated words
	res.ContentStored = o.content.Store(ctx, res.PostID, res.Title, req.Content, opts.From, req.Category)
	if res.ContentStored {
		slog.Info("✅ Post created",
			"post_id", res.PostID,
			"tx_hash", res.TxHash,
			"original_length", res.Encoded.OriginalLength,
		)
	} else {
		slog.Warn("⚠️ Post created but content storage failed",
			"post_id", res.PostID,
			"tx_hash", res.TxHash,
		)
	}

	o.dispatch(ctx, &services.ConfirmedTx{
		Action:  models.ActivityCreate,
		PostID:  res.PostID,
		Actor:   opts.From,
		Receipt: receipt,
	})

	if _, err := o.ListUserPosts(ctx); err != nil {
		slog.Debug("Post list refresh after create skipped", "error", err)
	}

	return res, nil
}

// ViewPost submits a view of a post
func (o *Orchestrator) ViewPost(ctx context.Context, postID uint64) (*TxResult, error) {
	return o.submit(ctx, "viewPost", models.ActivityView, postID, "", func(ctx context.Context, opts ledger.TxOpts) (*ledger.Receipt, error) {
		return o.contract.ViewPost(ctx, opts, postID)
	})
}

// LikePost submits a like of a post
func (o *Orchestrator) LikePost(ctx context.Context, postID uint64) (*TxResult, error) {
	return o.submit(ctx, "likePost", models.ActivityLike, postID, "", func(ctx context.Context, opts ledger.TxOpts) (*ledger.Receipt, error) {
		return o.contract.LikePost(ctx, opts, postID)
	})
}

// GrantAccess authorizes reader to decrypt the content of a post
func (o *Orchestrator) GrantAccess(ctx context.Context, postID uint64, reader string) (*TxResult, error) {
	reader = strings.TrimSpace(reader)
	if !strkey.IsValidEd25519PublicKey(reader) {
		return nil, fmt.Errorf("%w: reader %q is not a valid account address", ErrInvalidInput, reader)
	}
	return o.submit(ctx, "grantAccess", models.ActivityGrant, postID, reader, func(ctx context.Context, opts ledger.TxOpts) (*ledger.Receipt, error) {
		return o.contract.GrantAccess(ctx, opts, postID, reader)
	})
}

// submit sends a transaction and waits for its receipt. Transactions are never retried.
func (o *Orchestrator) submit(ctx context.Context, action string, activity models.ActivityType, postID uint64, target string, call func(context.Context, ledger.TxOpts) (*ledger.Receipt, error)) (*TxResult, error) {
	opts, err := o.sender()
	if err != nil {
		return nil, err
	}

	res := &TxResult{PostID: formatPostID(postID), State: models.PostSubmitting}
	metrics.TransactionsSubmitted.WithLabelValues(action).Inc()

	receipt, err := call(ctx, opts)
	if err != nil {
		res.State = models.PostFailed
		metrics.TransactionFailures.WithLabelValues(action).Inc()
		slog.Error("Transaction failed", "action", action, "post_id", res.PostID, "error", err)
		return res, fmt.Errorf("%w: %s: %w", ErrTransactionFailed, action, err)
	}
	res.TxHash = receipt.TxHash
	if !receipt.Successful() {
		res.State = models.PostFailed
		metrics.TransactionFailures.WithLabelValues(action).Inc()
		return res, fmt.Errorf("%w: %s %s reverted", ErrTransactionFailed, action, receipt.TxHash)
	}

	res.State = models.PostConfirmed
	res.BlockNumber = receipt.BlockNumber
	slog.Info("Transaction confirmed", "action", action, "post_id", res.PostID, "tx_hash", receipt.TxHash)

	o.dispatch(ctx, &services.ConfirmedTx{
		Action:  activity,
		PostID:  res.PostID,
		Actor:   opts.From,
		Target:  target,
		Receipt: receipt,
	})
	return res, nil
}

// postIDFromReceipt extracts the new post id from the PostCreated log
func postIDFromReceipt(receipt *ledger.Receipt) string {
	log, ok := receipt.FindLog(ledger.EventPostCreated)
	if !ok {
		metrics.UnknownPostIDs.Inc()
		slog.Warn("PostCreated event not found in receipt", "tx_hash", receipt.TxHash)
		return models.UnknownPostID
	}

	id, err := ledger.ClearValueToUint64(log.Args["postId"])
	if err != nil {
		metrics.UnknownPostIDs.Inc()
		slog.Warn("PostCreated event has no usable postId", "tx_hash", receipt.TxHash, "error", err)
		return models.UnknownPostID
	}
	return formatPostID(id)
}

// DeriveTitle picks the stored title of a post: the explicit title, else the
// first line of the content, else "Article #<id>"
func DeriveTitle(title, text, postID string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	first, _, _ := strings.Cut(text, "\n")
	if first = strings.TrimSpace(first); first != "" {
		return first
	}
	return "Article #" + postID
}
