package ledger

import (
	"bytes"
	"testing"
	"time"
)

func TestDecryptionGrant_PayloadIgnoresAddressOrder(t *testing.T) {
	a := DecryptionGrant{
		NetworkPassphrase: "test",
		PublicKey:         "pk",
		ContractAddresses: []string{"CB", "CA"},
		UserAddress:       "GUSER",
		StartTimestamp:    1000,
		DurationDays:      1,
	}
	b := a
	b.ContractAddresses = []string{"CA", "CB"}

	pa, err := a.SigningPayload()
	if err != nil {
		t.Fatalf("payload a: %v", err)
	}
	pb, err := b.SigningPayload()
	if err != nil {
		t.Fatalf("payload b: %v", err)
	}
	if !bytes.Equal(pa, pb) {
		t.Error("expected identical payloads for the same address set")
	}
	if a.ContractAddresses[0] != "CB" {
		t.Error("SigningPayload must not reorder the caller's slice")
	}
}

func TestDecryptionGrant_ActiveAt(t *testing.T) {
	g := DecryptionGrant{StartTimestamp: 1000, DurationDays: 1}
	end := int64(1000 + SecondsPerDay)

	tests := []struct {
		name     string
		now      int64
		expected bool
	}{
		{"before start", 999, false},
		{"at start", 1000, true},
		{"inside", end - 1, true},
		{"at expiry", end, false},
		{"after expiry", end + 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.ActiveAt(time.Unix(tt.now, 0)); got != tt.expected {
				t.Errorf("ActiveAt(%d) = %v, expected %v", tt.now, got, tt.expected)
			}
		})
	}

	if !g.ExpiresAt().Equal(time.Unix(end, 0)) {
		t.Errorf("ExpiresAt = %v, expected %v", g.ExpiresAt(), time.Unix(end, 0))
	}
}
