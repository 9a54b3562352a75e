package content

import (
	"time"

	"zblog/internal/models"
)

// SampleContentHash is the content hash of the built-in introduction article
const SampleContentHash uint64 = 12345

// Placeholder values used for records synthesized by RetrieveByHash
const (
	PlaceholderAuthor   = "Unknown"
	PlaceholderCategory = uint8(10)
)

const sampleIntroduction = `# Welcome to zBlog!

zBlog keeps posts, categories and engagement counters on an encryption-capable
ledger. Only parties holding a signed decryption grant can read them.

## Access levels

- Public: readable by everyone
- Friends: readable by readers the author granted access to
- Specific users: requires an explicit grant per reader
- Paid: unlocked after payment

## Private statistics

View and like counters are updated homomorphically. Only the author can
decrypt the real numbers.

## Storage

The ledger holds the first twelve characters of every post in three encrypted
words plus the true length. The full text lives in off-ledger content storage
and is joined back after decryption.`

func sampleRecords() map[uint64]models.StoredContent {
	return map[uint64]models.StoredContent{
		SampleContentHash: {
			PostID:      "sample-12345",
			ContentHash: SampleContentHash,
			Title:       "zBlog Platform Technical Introduction",
			Content:     sampleIntroduction,
			Author:      "zBlog Team",
			CreatedAt:   time.Unix(0, 0).UTC(),
			Category:    1,
		},
	}
}
