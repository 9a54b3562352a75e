package models

import "time"

// PostActivity is one confirmed state-changing call against a post
type PostActivity struct {
	ActivityID   string       `json:"activity_id"` // tx hash : activity type
	PostID       string       `json:"post_id"`
	ActivityType ActivityType `json:"activity_type"`

	// Actor is the account that submitted the transaction
	Actor string `json:"actor"`
	// Target is the reader for grants, empty otherwise
	Target string `json:"target,omitempty"`

	TxHash      string    `json:"tx_hash"`
	BlockNumber uint64    `json:"block_number"`
	Timestamp   time.Time `json:"timestamp"`
}

// ActivityType represents the kind of post activity
type ActivityType string

const (
	ActivityCreate ActivityType = "create"
	ActivityView   ActivityType = "view"
	ActivityLike   ActivityType = "like"
	ActivityGrant  ActivityType = "grant"
)
