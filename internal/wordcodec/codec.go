package wordcodec

import (
	"log/slog"
	"strings"
)

const (
	// CharsPerWord is the number of characters packed into one 32-bit word
	CharsPerWord = 4

	// WordCount is the number of content words stored on the ledger
	WordCount = 3

	// MaxChars is the longest text that survives the ledger encoding
	MaxChars = CharsPerWord * WordCount
)

// EncodedWords is the ledger representation of a text: three packed words plus
// the length of the untruncated source text
type EncodedWords struct {
	Part1          uint32 `json:"part1"`
	Part2          uint32 `json:"part2"`
	Part3          uint32 `json:"part3"`
	OriginalLength uint32 `json:"original_length"`
}

// Words returns the three packed words in ledger order
func (w EncodedWords) Words() [WordCount]uint32 {
	return [WordCount]uint32{w.Part1, w.Part2, w.Part3}
}

// Truncated reports whether the source text was longer than the packed window
func (w EncodedWords) Truncated() bool {
	return w.OriginalLength > MaxChars
}

// Encode packs the first MaxChars characters of text into three words.
// Each character occupies one byte, byte 0 being the least significant.
// Only code points 0-255 are representable; higher code points keep their low byte.
func Encode(text string) EncodedWords {
	chars := []rune(text)
	originalLength := len(chars)

	window := chars
	if len(window) > MaxChars {
		window = window[:MaxChars]
	}

	var words [WordCount]uint32
	for i, r := range window {
		words[i/CharsPerWord] |= uint32(byte(r)) << (uint(i%CharsPerWord) * 8)
	}

	slog.Debug("Text encoded into words",
		"original_length", originalLength,
		"packed_chars", len(window),
		"part1", words[0],
		"part2", words[1],
		"part3", words[2],
	)

	return EncodedWords{
		Part1:          words[0],
		Part2:          words[1],
		Part3:          words[2],
		OriginalLength: uint32(originalLength),
	}
}

// Decode rebuilds the packed text fragment from three words.
// A zero byte ends its word, so an embedded NUL truncates that word.
// length is the original text length; it is not used to trim the result.
func Decode(part1, part2, part3 uint32, length uint32) string {
	var sb strings.Builder
	for _, word := range [WordCount]uint32{part1, part2, part3} {
		sb.WriteString(unpackWord(word))
	}

	decoded := strings.ReplaceAll(sb.String(), "\x00", "")

	slog.Debug("Words decoded into text",
		"decoded_chars", len([]rune(decoded)),
		"original_length", length,
	)

	return decoded
}

// DecodeWords is Decode for an EncodedWords value
func DecodeWords(w EncodedWords) string {
	return Decode(w.Part1, w.Part2, w.Part3, w.OriginalLength)
}

func unpackWord(word uint32) string {
	var sb strings.Builder
	for i := 0; i < CharsPerWord; i++ {
		b := byte(word >> (uint(i) * 8))
		if b == 0 {
			break
		}
		sb.WriteRune(rune(b))
	}
	return sb.String()
}
