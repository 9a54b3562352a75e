package models

import (
	"errors"
	"time"
)

// ErrContentNotFound is returned by content backends for an unknown key
var ErrContentNotFound = errors.New("content not found")

// StoredContent is the full, untruncated content of a post kept off-ledger
type StoredContent struct {
	PostID      string    `json:"post_id" cbor:"1,keyasint"`
	ContentHash uint64    `json:"content_hash" cbor:"2,keyasint"`
	Title       string    `json:"title" cbor:"3,keyasint"`
	Content     string    `json:"content" cbor:"4,keyasint"`
	Author      string    `json:"author" cbor:"5,keyasint"`
	CreatedAt   time.Time `json:"created_at" cbor:"6,keyasint"`
	Category    uint8     `json:"category" cbor:"7,keyasint"`
}
