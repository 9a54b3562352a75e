package ledger

import (
	"fmt"
	"slices"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// SecondsPerDay converts a grant's duration in days into seconds
const SecondsPerDay = 24 * 60 * 60

// DecryptionGrant is the structured request a signing identity signs to open a
// decryption session
type DecryptionGrant struct {
	NetworkPassphrase string   `cbor:"1,keyasint"`
	PublicKey         string   `cbor:"2,keyasint"`
	ContractAddresses []string `cbor:"3,keyasint"`
	UserAddress       string   `cbor:"4,keyasint"`
	StartTimestamp    int64    `cbor:"5,keyasint"`
	DurationDays      int      `cbor:"6,keyasint"`
}

var grantEncMode cbor.EncMode

func init() {
	var err error
	grantEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("ledger: CBOR encoder initialization failed: " + err.Error())
	}
}

// SigningPayload returns the deterministic bytes the signer signs.
// Contract addresses are sorted so the same set always yields the same payload.
func (g DecryptionGrant) SigningPayload() ([]byte, error) {
	normalized := g
	normalized.ContractAddresses = slices.Clone(g.ContractAddresses)
	slices.Sort(normalized.ContractAddresses)

	payload, err := grantEncMode.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to encode decryption grant: %w", err)
	}
	return payload, nil
}

// ExpiresAt returns the first instant at which the grant is no longer valid
func (g DecryptionGrant) ExpiresAt() time.Time {
	return time.Unix(g.StartTimestamp+int64(g.DurationDays)*SecondsPerDay, 0)
}

// ActiveAt reports whether now falls inside [start, start+duration)
func (g DecryptionGrant) ActiveAt(now time.Time) bool {
	unix := now.Unix()
	return unix >= g.StartTimestamp && unix < g.StartTimestamp+int64(g.DurationDays)*SecondsPerDay
}
