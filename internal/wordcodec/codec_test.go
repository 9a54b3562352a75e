package wordcodec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEncode_Empty(t *testing.T) {
	w := Encode("")

	assert.Equal(t, EncodedWords{}, w)
	assert.Equal(t, "", Decode(0, 0, 0, 0))
	assert.False(t, w.Truncated())
}

func TestEncode_LittleEndianPacking(t *testing.T) {
	w := Encode("abcd")

	// 'a'=0x61 in the least significant byte
	assert.Equal(t, uint32(0x64636261), w.Part1)
	assert.Equal(t, uint32(0), w.Part2)
	assert.Equal(t, uint32(0), w.Part3)
	assert.Equal(t, uint32(4), w.OriginalLength)
}

func TestEncode_PadsShortChunk(t *testing.T) {
	w := Encode("Hi")

	assert.Equal(t, uint32(0x6948), w.Part1)
	assert.Equal(t, "Hi", DecodeWords(w))
}

func TestEncode_TruncatesButKeepsLength(t *testing.T) {
	w := Encode("Hello, World! extra")

	assert.Equal(t, uint32(19), w.OriginalLength)
	assert.True(t, w.Truncated())
	assert.Equal(t, "Hello, World", DecodeWords(w))
	assert.Equal(t, Encode("Hello, World").Words(), w.Words())
}

func TestEncode_WelcomePost(t *testing.T) {
	w := Encode("Welcome to zBlog")

	assert.Equal(t, uint32(16), w.OriginalLength)
	assert.Equal(t, "Welcome to z", DecodeWords(w))
}

func TestDecode_StopsAtFirstZeroByte(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{"nul inside first word", "ab\x00cdefgh", "abdefgh"},
		{"nul at word start", "\x00bcdefgh", "efgh"},
		{"nul in last word", "abcdefgh\x00jkl", "abcdefgh"},
		{"no nul", "abcdefghijkl", "abcdefghijkl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DecodeWords(Encode(tt.text)))
		})
	}
}

func TestEncode_Latin1RoundTrip(t *testing.T) {
	text := "café déjà"
	assert.Equal(t, text, DecodeWords(Encode(text)))
}

func TestEncode_HighCodePointKeepsLowByte(t *testing.T) {
	// U+0141 has low byte 0x41 ('A')
	w := Encode("Ł")
	assert.Equal(t, uint32(0x41), w.Part1)
	assert.Equal(t, uint32(1), w.OriginalLength)
}

func TestEncode_RoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		codes := rapid.SliceOfN(rapid.IntRange(1, 255), 0, MaxChars).Draw(t, "codes")

		var sb strings.Builder
		for _, c := range codes {
			sb.WriteRune(rune(c))
		}
		text := sb.String()

		w := Encode(text)
		if got := DecodeWords(w); got != text {
			t.Fatalf("round trip mismatch: %q -> %q", text, got)
		}
		if int(w.OriginalLength) != len(codes) {
			t.Fatalf("length %d, expected %d", w.OriginalLength, len(codes))
		}
	})
}

func TestEncode_LongTextKeepsPrefixProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		codes := rapid.SliceOfN(rapid.IntRange(1, 255), MaxChars+1, 200).Draw(t, "codes")

		runes := make([]rune, len(codes))
		for i, c := range codes {
			runes[i] = rune(c)
		}

		w := Encode(string(runes))
		require.True(t, w.Truncated())
		require.Equal(t, string(runes[:MaxChars]), DecodeWords(w))
		require.Equal(t, uint32(len(runes)), w.OriginalLength)
	})
}
