// Package reconstruct joins decrypted codec words with the content cache to
// produce the best available rendering of a post.
package reconstruct

import (
	"context"
	"errors"
	"fmt"
	"math"

	"zblog/internal/ledger"
	"zblog/internal/models"
	"zblog/internal/wordcodec"
)

// ErrMissingValue is returned when a content handle has no decrypted value
var ErrMissingValue = errors.New("missing decrypted value")

// Retriever is the part of the content cache reconstruction needs
type Retriever interface {
	Retrieve(ctx context.Context, postID string) (*models.StoredContent, bool)
}

// Result is a reconstructed post body
type Result struct {
	// Text is the rendering to display: the cached full text, or the
	// annotated on-ledger fragment
	Text string
	// Fragment is the decoded on-ledger text (at most 12 characters)
	Fragment       string
	OriginalLength int
	FromCache      bool
	Truncated      bool
}

// Reconstruct decodes the decrypted content words of a post and prefers the
// cached full text when it exists
func Reconstruct(ctx context.Context, cache Retriever, postID string, encrypted ledger.EncryptedContent, decrypted map[ledger.Handle]any) (Result, error) {
	var words [wordcodec.WordCount + 1]uint32
	for i, h := range encrypted.Handles() {
		raw, ok := decrypted[h]
		if !ok {
			return Result{}, fmt.Errorf("%w for handle %s", ErrMissingValue, h)
		}
		v, err := ledger.ClearValueToUint64(raw)
		if err != nil {
			return Result{}, fmt.Errorf("failed to normalize content word %d: %w", i, err)
		}
		if v > math.MaxUint32 {
			return Result{}, fmt.Errorf("content word %d out of range: %d", i, v)
		}
		words[i] = uint32(v)
	}

	fragment := wordcodec.Decode(words[0], words[1], words[2], words[3])
	res := Result{
		Fragment:       fragment,
		OriginalLength: int(words[3]),
		Truncated:      words[3] > wordcodec.MaxChars,
	}

	if cache != nil {
		if stored, ok := cache.Retrieve(ctx, postID); ok {
			res.Text = stored.Content
			res.FromCache = true
			return res, nil
		}
	}

	res.Text = Annotate(fragment, res.OriginalLength)
	return res, nil
}

// Annotate marks a fragment as the on-ledger prefix of a longer text
func Annotate(fragment string, originalLength int) string {
	return fmt.Sprintf("%s\n\n(Decrypted from ledger - first %d characters only)\nOriginal length: %d characters",
		fragment, wordcodec.MaxChars, originalLength)
}
