package models

import "time"

// PostState is the lifecycle state of a post submission
type PostState string

const (
	PostDraft      PostState = "draft"
	PostSubmitting PostState = "submitting"
	PostConfirmed  PostState = "confirmed"
	PostFailed     PostState = "failed"
)

// UnknownPostID is used when a confirmed creation emitted no PostCreated event
const UnknownPostID = "unknown"

// Access levels understood by the blog contract
const (
	AccessPublic   uint8 = 0
	AccessFriends  uint8 = 1
	AccessSpecific uint8 = 2
	AccessPaid     uint8 = 3
)

// BlogPost is the client-side projection of an on-ledger post.
// Optional fields stay nil until a decryption session fills them.
type BlogPost struct {
	PostID    string    `json:"post_id"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	Category  *uint8    `json:"category,omitempty"`
	ViewCount *uint64   `json:"view_count,omitempty"`
	LikeCount *uint64   `json:"like_count,omitempty"`
}

// PostStats holds decrypted engagement counters
type PostStats struct {
	PostID    string `json:"post_id"`
	ViewCount uint64 `json:"view_count"`
	LikeCount uint64 `json:"like_count"`
}

// DecryptedContent is the reconstructed content of a post
type DecryptedContent struct {
	PostID         string `json:"post_id"`
	Text           string `json:"text"`
	Fragment       string `json:"fragment"`
	OriginalLength int    `json:"original_length"`
	Truncated      bool   `json:"truncated"`
	FromCache      bool   `json:"from_cache"`
	Category       uint8  `json:"category"`
}
