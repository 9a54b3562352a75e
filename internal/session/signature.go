package session

import (
	"slices"
	"time"

	"zblog/internal/ledger"
)

// DecryptionSignature is a signed, time-bounded decryption grant together with
// the ephemeral key pair it is bound to
type DecryptionSignature struct {
	PrivateKey        string   `json:"private_key"`
	PublicKey         string   `json:"public_key"`
	Signature         []byte   `json:"signature"`
	ContractAddresses []string `json:"contract_addresses"`
	UserAddress       string   `json:"user_address"`
	StartTimestamp    int64    `json:"start_timestamp"`
	DurationDays      int      `json:"duration_days"`
}

// ExpiresAt returns the first instant at which the signature is no longer valid
func (s *DecryptionSignature) ExpiresAt() time.Time {
	return time.Unix(s.StartTimestamp+int64(s.DurationDays)*ledger.SecondsPerDay, 0)
}

// IsValid reports whether now falls inside the signature's validity window.
// A signature is expired once now >= start + duration.
func (s *DecryptionSignature) IsValid(now time.Time) bool {
	if s == nil {
		return false
	}
	unix := now.Unix()
	return unix >= s.StartTimestamp && unix < s.StartTimestamp+int64(s.DurationDays)*ledger.SecondsPerDay
}

// Covers reports whether the signature authorizes user to decrypt resources of
// contractAddress at now
func (s *DecryptionSignature) Covers(contractAddress, user string, now time.Time) bool {
	return s.IsValid(now) &&
		s.UserAddress == user &&
		slices.Contains(s.ContractAddresses, contractAddress)
}

func (s *DecryptionSignature) coversAll(addresses []string, user string, now time.Time) bool {
	for _, addr := range addresses {
		if !s.Covers(addr, user, now) {
			return false
		}
	}
	return true
}

// DecryptParams returns the parameters presented with a UserDecrypt call
func (s *DecryptionSignature) DecryptParams() ledger.UserDecryptParams {
	return ledger.UserDecryptParams{
		PrivateKey:        s.PrivateKey,
		PublicKey:         s.PublicKey,
		Signature:         slices.Clone(s.Signature),
		ContractAddresses: slices.Clone(s.ContractAddresses),
		UserAddress:       s.UserAddress,
		StartTimestamp:    s.StartTimestamp,
		DurationDays:      s.DurationDays,
	}
}
