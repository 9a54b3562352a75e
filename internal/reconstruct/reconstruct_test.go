package reconstruct

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zblog/internal/content"
	"zblog/internal/ledger"
	"zblog/internal/wordcodec"
)

var handles = ledger.EncryptedContent{Part1: "0x01", Part2: "0x02", Part3: "0x03", Length: "0x04"}

func decryptedFor(text string) map[ledger.Handle]any {
	w := wordcodec.Encode(text)
	return map[ledger.Handle]any{
		handles.Part1:  big.NewInt(int64(w.Part1)),
		handles.Part2:  uint64(w.Part2),
		handles.Part3:  "0x" + big.NewInt(int64(w.Part3)).Text(16),
		handles.Length: float64(w.OriginalLength),
	}
}

func TestReconstructPrefersCache(t *testing.T) {
	ctx := context.Background()
	cache := content.NewCache(content.NewMemoryBackend())
	require.True(t, cache.Store(ctx, "1", "Welcome", "Welcome to zBlog", "GAUTHOR", 1))

	res, err := Reconstruct(ctx, cache, "1", handles, decryptedFor("Welcome to zBlog"))
	require.NoError(t, err)

	assert.Equal(t, "Welcome to zBlog", res.Text)
	assert.Equal(t, "Welcome to z", res.Fragment)
	assert.Equal(t, 16, res.OriginalLength)
	assert.True(t, res.FromCache)
	assert.True(t, res.Truncated)
}

func TestReconstructFallsBackToFragment(t *testing.T) {
	ctx := context.Background()
	cache := content.NewCache(content.NewMemoryBackend())

	res, err := Reconstruct(ctx, cache, "2", handles, decryptedFor("Hello, World! extra"))
	require.NoError(t, err)

	assert.False(t, res.FromCache)
	assert.Equal(t, "Hello, World", res.Fragment)
	assert.Equal(t, 19, res.OriginalLength)
	assert.Contains(t, res.Text, "Hello, World")
	assert.Contains(t, res.Text, "first 12 characters only")
	assert.Contains(t, res.Text, "Original length: 19 characters")
}

func TestReconstructShortTextWithoutCache(t *testing.T) {
	res, err := Reconstruct(context.Background(), nil, "3", handles, decryptedFor("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Fragment)
	assert.False(t, res.Truncated)
	assert.Equal(t, Annotate("hi", 2), res.Text)
}

func TestReconstructErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing handle", func(t *testing.T) {
		values := decryptedFor("abc")
		delete(values, handles.Part2)
		_, err := Reconstruct(ctx, nil, "1", handles, values)
		assert.ErrorIs(t, err, ErrMissingValue)
	})

	t.Run("word out of range", func(t *testing.T) {
		values := decryptedFor("abc")
		values[handles.Part1] = uint64(1) << 33
		_, err := Reconstruct(ctx, nil, "1", handles, values)
		assert.Error(t, err)
	})

	t.Run("unsupported value", func(t *testing.T) {
		values := decryptedFor("abc")
		values[handles.Part3] = struct{}{}
		_, err := Reconstruct(ctx, nil, "1", handles, values)
		assert.ErrorIs(t, err, ledger.ErrUnsupportedClearValue)
	})
}
