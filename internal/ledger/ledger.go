package ledger

import (
	"context"
	"errors"
	"time"
)

// Handle is an opaque reference to a ciphertext held by the ledger
type Handle string

// ReceiptStatusSuccessful marks a confirmed, successful transaction
const ReceiptStatusSuccessful uint8 = 1

// Event names emitted by the blog contract
const (
	EventPostCreated   = "PostCreated"
	EventPostViewed    = "PostViewed"
	EventPostLiked     = "PostLiked"
	EventAccessGranted = "AccessGranted"
)

var (
	// ErrPostNotFound is returned by contract reads for an unknown post id
	ErrPostNotFound = errors.New("post not found")

	// ErrUnauthorized is returned when the sender may not perform the call
	ErrUnauthorized = errors.New("unauthorized")

	// ErrGrantRejected is returned by UserDecrypt when the decryption grant
	// itself is not acceptable (expired, mis-scoped or badly signed)
	ErrGrantRejected = errors.New("decryption grant rejected")
)

// TxOpts carries the sender of a state-changing call
type TxOpts struct {
	From string
}

// Log is a decoded contract event
type Log struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Receipt is the confirmation of a submitted transaction
type Receipt struct {
	TxHash      string    `json:"tx_hash"`
	Status      uint8     `json:"status"`
	BlockNumber uint64    `json:"block_number"`
	Timestamp   time.Time `json:"timestamp"`
	Logs        []Log     `json:"logs"`
}

// Successful reports whether the transaction was confirmed successfully
func (r *Receipt) Successful() bool {
	return r != nil && r.Status == ReceiptStatusSuccessful
}

// FindLog returns the first log with the given event name
func (r *Receipt) FindLog(name string) (Log, bool) {
	if r == nil {
		return Log{}, false
	}
	for _, l := range r.Logs {
		if l.Name == name {
			return l, true
		}
	}
	return Log{}, false
}

// EncryptedBundle is the result of encrypting a batch of scalar inputs
type EncryptedBundle struct {
	Handles    []Handle
	InputProof []byte
}

// EncryptedInput accumulates plaintext scalars to be encrypted for one contract and user
type EncryptedInput interface {
	Add32(value uint32) EncryptedInput
	Add8(value uint8) EncryptedInput
	Encrypt(ctx context.Context) (*EncryptedBundle, error)
}

// Keypair is the ephemeral key pair a decryption session is bound to
type Keypair struct {
	PublicKey  string
	PrivateKey string
}

// DecryptRequest names one handle and the contract it belongs to
type DecryptRequest struct {
	Handle          Handle
	ContractAddress string
}

// UserDecryptParams is the signed authorization presented with a decrypt call
type UserDecryptParams struct {
	PrivateKey        string
	PublicKey         string
	Signature         []byte
	ContractAddresses []string
	UserAddress       string
	StartTimestamp    int64
	DurationDays      int
}

// Platform is the encryption side of the ledger
type Platform interface {
	// CreateEncryptedInput starts an input batch bound to a contract and user
	CreateEncryptedInput(contractAddress, userAddress string) EncryptedInput

	// GenerateKeypair derives a fresh key pair for a decryption session
	GenerateKeypair() (Keypair, error)

	// UserDecrypt decrypts all requested handles under one authorization
	UserDecrypt(ctx context.Context, requests []DecryptRequest, params UserDecryptParams) (map[Handle]any, error)
}

// CreatePostInput holds the encrypted fields of a new post
type CreatePostInput struct {
	ContentPart1 Handle
	ContentPart2 Handle
	ContentPart3 Handle
	Length       Handle
	Category     Handle
	AccessLevel  Handle
	Price        Handle
	InputProof   []byte
}

// PostData is the public metadata of a post
type PostData struct {
	ID        uint64
	Author    string
	CreatedAt time.Time
}

// EncryptedContent holds the handles of a post's content words and length
type EncryptedContent struct {
	Part1  Handle
	Part2  Handle
	Part3  Handle
	Length Handle
}

// Handles returns the content handles in ledger order
func (c EncryptedContent) Handles() []Handle {
	return []Handle{c.Part1, c.Part2, c.Part3, c.Length}
}

// Contract is the blog contract surface
type Contract interface {
	Address() string

	CreatePost(ctx context.Context, opts TxOpts, in CreatePostInput) (*Receipt, error)
	ViewPost(ctx context.Context, opts TxOpts, postID uint64) (*Receipt, error)
	LikePost(ctx context.Context, opts TxOpts, postID uint64) (*Receipt, error)
	GrantAccess(ctx context.Context, opts TxOpts, postID uint64, reader string) (*Receipt, error)

	GetPost(ctx context.Context, postID uint64) (*PostData, error)
	GetUserPosts(ctx context.Context, user string) ([]uint64, error)
	GetTotalPosts(ctx context.Context) (uint64, error)
	GetEncryptedContent(ctx context.Context, postID uint64) (*EncryptedContent, error)
	GetEncryptedCategory(ctx context.Context, postID uint64) (Handle, error)
	GetEncryptedViewCount(ctx context.Context, postID uint64) (Handle, error)
	GetEncryptedLikeCount(ctx context.Context, postID uint64) (Handle, error)
}
