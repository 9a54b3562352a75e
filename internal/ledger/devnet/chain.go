// Package devnet is an in-memory encryption-capable ledger running the blog
// contract. It implements ledger.Platform and ledger.Contract.
package devnet

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/stellar/go/network"
	"github.com/stellar/go/strkey"

	"zblog/internal/ledger"
)

var (
	ErrInvalidProof   = errors.New("invalid input proof")
	ErrUnknownHandle  = errors.New("unknown ciphertext handle")
	ErrUnknownAccount = errors.New("invalid account address")
)

type ciphertext struct {
	value uint64
	bits  int
	acl   map[string]struct{}

	// set for handles produced by Encrypt and not yet consumed by a transaction
	inputOwner string
}

func (c *ciphertext) allowed(account string) bool {
	_, ok := c.acl[account]
	return ok
}

type post struct {
	id        uint64
	author    string
	createdAt time.Time

	content   ledger.EncryptedContent
	category  ledger.Handle
	access    ledger.Handle
	price     ledger.Handle
	viewCount ledger.Handle
	likeCount ledger.Handle
}

// Option configures a Chain
type Option func(*Chain)

// WithClock sets the clock used for block timestamps and grant windows
func WithClock(now func() time.Time) Option {
	return func(c *Chain) { c.now = now }
}

// WithNetworkPassphrase sets the passphrase grants must be signed for
func WithNetworkPassphrase(passphrase string) Option {
	return func(c *Chain) { c.network = passphrase }
}

// WithoutCreateEvents makes createPost confirm without emitting PostCreated
func WithoutCreateEvents() Option {
	return func(c *Chain) { c.suppressCreateEvents = true }
}

// Chain is a single-contract development ledger
type Chain struct {
	mu sync.Mutex

	address string
	network string
	now     func() time.Time

	ciphertexts map[ledger.Handle]*ciphertext
	posts       map[uint64]*post
	byAuthor    map[string][]uint64
	nextPostID  uint64
	block       uint64

	suppressCreateEvents bool
	getPostFailures      map[uint64]error
	revertNext           map[string]bool
	decryptFailure       error
}

// New creates a Chain with a random contract address
func New(opts ...Option) (*Chain, error) {
	var id [32]byte
	if _, err := rand.Read(id[:]); err != nil {
		return nil, fmt.Errorf("failed to generate contract id: %w", err)
	}
	address, err := strkey.Encode(strkey.VersionByteContract, id[:])
	if err != nil {
		return nil, fmt.Errorf("failed to encode contract address: %w", err)
	}

	c := &Chain{
		address:         address,
		network:         network.TestNetworkPassphrase,
		now:             time.Now,
		ciphertexts:     make(map[ledger.Handle]*ciphertext),
		posts:           make(map[uint64]*post),
		byAuthor:        make(map[string][]uint64),
		nextPostID:      1,
		getPostFailures: make(map[uint64]error),
		revertNext:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}

	slog.Info("🧪 Devnet ledger started", "contract", c.address)
	return c, nil
}

// Address returns the contract strkey (C...)
func (c *Chain) Address() string {
	return c.address
}

// NetworkPassphrase returns the passphrase grants are verified against
func (c *Chain) NetworkPassphrase() string {
	return c.network
}

// FailGetPost makes GetPost return err for postID until cleared with a nil err
func (c *Chain) FailGetPost(postID uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.getPostFailures, postID)
		return
	}
	c.getPostFailures[postID] = err
}

// RevertNext makes the next transaction of the given action confirm with a
// failed status and no state change
func (c *Chain) RevertNext(action string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revertNext[action] = true
}

// FailNextDecrypt makes the next UserDecrypt call return err
func (c *Chain) FailNextDecrypt(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decryptFailure = err
}

// Transactions

func (c *Chain) CreatePost(ctx context.Context, opts ledger.TxOpts, in ledger.CreatePostInput) (*ledger.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if receipt, reverted := c.reverted("createPost"); reverted {
		return receipt, nil
	}

	handles := []ledger.Handle{
		in.ContentPart1, in.ContentPart2, in.ContentPart3, in.Length,
		in.Category, in.AccessLevel, in.Price,
	}
	widths := []int{32, 32, 32, 32, 8, 8, 32}

	if !slices.Equal(in.InputProof, inputProof(c.address, opts.From, handles)) {
		return nil, fmt.Errorf("createPost: %w", ErrInvalidProof)
	}
	for i, h := range handles {
		ct, ok := c.ciphertexts[h]
		if !ok {
			return nil, fmt.Errorf("createPost: %w: %s", ErrUnknownHandle, h)
		}
		if ct.inputOwner != opts.From {
			return nil, fmt.Errorf("createPost: input not owned by sender: %w", ErrInvalidProof)
		}
		if ct.bits != widths[i] {
			return nil, fmt.Errorf("createPost: input %d has %d bits, want %d: %w", i, ct.bits, widths[i], ErrInvalidProof)
		}
	}

	for _, h := range handles {
		ct := c.ciphertexts[h]
		ct.inputOwner = ""
		ct.acl = aclOf(c.address, opts.From)
	}

	id := c.nextPostID
	c.nextPostID++

	p := &post{
		id:        id,
		author:    opts.From,
		createdAt: c.now().UTC(),
		content: ledger.EncryptedContent{
			Part1:  in.ContentPart1,
			Part2:  in.ContentPart2,
			Part3:  in.ContentPart3,
			Length: in.Length,
		},
		category:  in.Category,
		access:    in.AccessLevel,
		price:     in.Price,
		viewCount: c.allocate(0, 32, aclOf(c.address, opts.From)),
		likeCount: c.allocate(0, 32, aclOf(c.address, opts.From)),
	}
	c.posts[id] = p
	c.byAuthor[opts.From] = append(c.byAuthor[opts.From], id)

	var logs []ledger.Log
	if !c.suppressCreateEvents {
		logs = append(logs, ledger.Log{
			Name: ledger.EventPostCreated,
			Args: map[string]any{"postId": new(big.Int).SetUint64(id), "author": opts.From},
		})
	}
	return c.confirm(logs), nil
}

func (c *Chain) ViewPost(ctx context.Context, opts ledger.TxOpts, postID uint64) (*ledger.Receipt, error) {
	return c.bumpCounter(ctx, "viewPost", opts, postID, func(p *post) *ledger.Handle { return &p.viewCount }, ledger.EventPostViewed, "viewer")
}

func (c *Chain) LikePost(ctx context.Context, opts ledger.TxOpts, postID uint64) (*ledger.Receipt, error) {
	return c.bumpCounter(ctx, "likePost", opts, postID, func(p *post) *ledger.Handle { return &p.likeCount }, ledger.EventPostLiked, "liker")
}

// bumpCounter adds an encrypted one to a counter. The result is a new handle
// with the ACL of the previous one.
func (c *Chain) bumpCounter(ctx context.Context, action string, opts ledger.TxOpts, postID uint64, counter func(*post) *ledger.Handle, event, actorArg string) (*ledger.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if receipt, reverted := c.reverted(action); reverted {
		return receipt, nil
	}

	p, ok := c.posts[postID]
	if !ok {
		return nil, fmt.Errorf("%s: %w: %d", action, ledger.ErrPostNotFound, postID)
	}

	h := counter(p)
	prev := c.ciphertexts[*h]
	*h = c.allocate(prev.value+1, prev.bits, cloneACL(prev.acl))

	return c.confirm([]ledger.Log{{
		Name: event,
		Args: map[string]any{"postId": new(big.Int).SetUint64(postID), actorArg: opts.From},
	}}), nil
}

func (c *Chain) GrantAccess(ctx context.Context, opts ledger.TxOpts, postID uint64, reader string) (*ledger.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !strkey.IsValidEd25519PublicKey(reader) {
		return nil, fmt.Errorf("grantAccess: %w: %q", ErrUnknownAccount, reader)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if receipt, reverted := c.reverted("grantAccess"); reverted {
		return receipt, nil
	}

	p, ok := c.posts[postID]
	if !ok {
		return nil, fmt.Errorf("grantAccess: %w: %d", ledger.ErrPostNotFound, postID)
	}
	if p.author != opts.From {
		return nil, fmt.Errorf("grantAccess: only the author may grant access: %w", ledger.ErrUnauthorized)
	}

	for _, h := range append(p.content.Handles(), p.category) {
		c.ciphertexts[h].acl[reader] = struct{}{}
	}

	return c.confirm([]ledger.Log{{
		Name: ledger.EventAccessGranted,
		Args: map[string]any{"postId": new(big.Int).SetUint64(postID), "reader": reader},
	}}), nil
}

// Reads

func (c *Chain) GetPost(ctx context.Context, postID uint64) (*ledger.PostData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.getPostFailures[postID]; err != nil {
		return nil, err
	}
	p, ok := c.posts[postID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ledger.ErrPostNotFound, postID)
	}
	return &ledger.PostData{ID: p.id, Author: p.author, CreatedAt: p.createdAt}, nil
}

func (c *Chain) GetUserPosts(ctx context.Context, user string) ([]uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.byAuthor[user]), nil
}

func (c *Chain) GetTotalPosts(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.posts)), nil
}

func (c *Chain) GetEncryptedContent(ctx context.Context, postID uint64) (*ledger.EncryptedContent, error) {
	p, err := c.post(postID)
	if err != nil {
		return nil, err
	}
	content := p.content
	return &content, nil
}

func (c *Chain) GetEncryptedCategory(ctx context.Context, postID uint64) (ledger.Handle, error) {
	p, err := c.post(postID)
	if err != nil {
		return "", err
	}
	return p.category, nil
}

func (c *Chain) GetEncryptedViewCount(ctx context.Context, postID uint64) (ledger.Handle, error) {
	p, err := c.post(postID)
	if err != nil {
		return "", err
	}
	return p.viewCount, nil
}

func (c *Chain) GetEncryptedLikeCount(ctx context.Context, postID uint64) (ledger.Handle, error) {
	p, err := c.post(postID)
	if err != nil {
		return "", err
	}
	return p.likeCount, nil
}

func (c *Chain) post(postID uint64) (post, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.posts[postID]
	if !ok {
		return post{}, fmt.Errorf("%w: %d", ledger.ErrPostNotFound, postID)
	}
	return *p, nil
}

// internals, called with c.mu held

func (c *Chain) allocate(value uint64, bits int, acl map[string]struct{}) ledger.Handle {
	h := newHandle()
	c.ciphertexts[h] = &ciphertext{value: value, bits: bits, acl: acl}
	return h
}

func (c *Chain) reverted(action string) (*ledger.Receipt, bool) {
	if !c.revertNext[action] {
		return nil, false
	}
	delete(c.revertNext, action)
	receipt := c.confirm(nil)
	receipt.Status = 0
	return receipt, true
}

func (c *Chain) confirm(logs []ledger.Log) *ledger.Receipt {
	c.block++
	return &ledger.Receipt{
		TxHash:      "0x" + randomHex(32),
		Status:      ledger.ReceiptStatusSuccessful,
		BlockNumber: c.block,
		Timestamp:   c.now().UTC(),
		Logs:        logs,
	}
}

func aclOf(accounts ...string) map[string]struct{} {
	acl := make(map[string]struct{}, len(accounts))
	for _, a := range accounts {
		acl[a] = struct{}{}
	}
	return acl
}

func cloneACL(acl map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(acl))
	for k := range acl {
		out[k] = struct{}{}
	}
	return out
}

func newHandle() ledger.Handle {
	return ledger.Handle("0x" + randomHex(32))
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("devnet: crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}
