package session

import (
	"context"
	"fmt"

	"github.com/stellar/go/keypair"
)

// Signer is the signing identity that authorizes decryption sessions
type Signer interface {
	// Address is the account address the grant is issued to
	Address() string
	// SignGrant signs a grant payload. It may fail when the identity declines.
	SignGrant(ctx context.Context, payload []byte) ([]byte, error)
}

// KeypairSigner signs grants with a Stellar ed25519 keypair
type KeypairSigner struct {
	kp *keypair.Full
}

// NewKeypairSigner parses a secret seed (S...)
func NewKeypairSigner(seed string) (*KeypairSigner, error) {
	kp, err := keypair.ParseFull(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signer seed: %w", err)
	}
	return &KeypairSigner{kp: kp}, nil
}

// RandomKeypairSigner creates a signer with a fresh random keypair
func RandomKeypairSigner() (*KeypairSigner, error) {
	kp, err := keypair.Random()
	if err != nil {
		return nil, fmt.Errorf("failed to generate signer keypair: %w", err)
	}
	return &KeypairSigner{kp: kp}, nil
}

func (s *KeypairSigner) Address() string {
	return s.kp.Address()
}

func (s *KeypairSigner) SignGrant(ctx context.Context, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sig, err := s.kp.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to sign grant: %w", err)
	}
	return sig, nil
}
