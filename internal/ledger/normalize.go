package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// ErrUnsupportedClearValue is returned for decrypted values of an unknown shape
var ErrUnsupportedClearValue = errors.New("unsupported decrypted value")

// ClearValueToUint64 converts a decrypted value into a canonical integer.
// Platforms return decrypted scalars as decimal or hex strings, machine
// integers, big integers or booleans depending on the ciphertext type.
func ClearValueToUint64(v any) (uint64, error) {
	switch val := v.(type) {
	case nil:
		return 0, fmt.Errorf("%w: nil", ErrUnsupportedClearValue)
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case uint8:
		return uint64(val), nil
	case uint16:
		return uint64(val), nil
	case uint32:
		return uint64(val), nil
	case uint64:
		return val, nil
	case uint:
		return uint64(val), nil
	case int8:
		return signedToUint64(int64(val))
	case int16:
		return signedToUint64(int64(val))
	case int32:
		return signedToUint64(int64(val))
	case int64:
		return signedToUint64(val)
	case int:
		return signedToUint64(int64(val))
	case float64:
		if val < 0 || val != math.Trunc(val) || val >= 1<<64 {
			return 0, fmt.Errorf("%w: non-integral float %v", ErrUnsupportedClearValue, val)
		}
		return uint64(val), nil
	case json.Number:
		return parseClearString(val.String())
	case string:
		return parseClearString(val)
	case *big.Int:
		if val == nil {
			return 0, fmt.Errorf("%w: nil big.Int", ErrUnsupportedClearValue)
		}
		return bigToUint64(val)
	case big.Int:
		return bigToUint64(&val)
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedClearValue, v)
	}
}

func signedToUint64(v int64) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("%w: negative value %d", ErrUnsupportedClearValue, v)
	}
	return uint64(v), nil
}

func bigToUint64(v *big.Int) (uint64, error) {
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s out of range", ErrUnsupportedClearValue, v.String())
	}
	return v.Uint64(), nil
}

func parseClearString(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}

	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		s = s[2:]
	}

	n, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedClearValue, s)
	}
	return n, nil
}
