package devnet

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/stellar/go/keypair"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"

	"zblog/internal/ledger"
)

var (
	ErrGrantExpired       = fmt.Errorf("%w: outside its validity window", ledger.ErrGrantRejected)
	ErrContractNotInGrant = fmt.Errorf("%w: contract not covered", ledger.ErrGrantRejected)
	ErrInvalidSignature   = fmt.Errorf("%w: invalid signature", ledger.ErrGrantRejected)
	ErrKeypairMismatch    = fmt.Errorf("%w: public key does not match private key", ledger.ErrGrantRejected)
)

// GenerateKeypair returns a fresh NaCl box key pair, hex encoded
func (c *Chain) GenerateKeypair() (ledger.Keypair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return ledger.Keypair{}, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return ledger.Keypair{
		PublicKey:  hex.EncodeToString(pub[:]),
		PrivateKey: hex.EncodeToString(priv[:]),
	}, nil
}

// UserDecrypt decrypts every requested handle under one signed grant.
// 32-bit values come back as decimal strings and 8-bit values as uint64.
func (c *Chain) UserDecrypt(ctx context.Context, requests []ledger.DecryptRequest, params ledger.UserDecryptParams) (map[ledger.Handle]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	grant := ledger.DecryptionGrant{
		NetworkPassphrase: c.network,
		PublicKey:         params.PublicKey,
		ContractAddresses: params.ContractAddresses,
		UserAddress:       params.UserAddress,
		StartTimestamp:    params.StartTimestamp,
		DurationDays:      params.DurationDays,
	}
	if !grant.ActiveAt(c.now()) {
		return nil, fmt.Errorf("%w: expired at %s", ErrGrantExpired, grant.ExpiresAt().UTC())
	}
	for _, req := range requests {
		if req.ContractAddress != c.address || !slices.Contains(params.ContractAddresses, req.ContractAddress) {
			return nil, fmt.Errorf("%w: %s", ErrContractNotInGrant, req.ContractAddress)
		}
	}
	if err := verifyGrant(grant, params.Signature); err != nil {
		return nil, err
	}
	pub, priv, err := parseKeypair(params.PublicKey, params.PrivateKey)
	if err != nil {
		return nil, err
	}

	plain, err := c.readForUser(requests, params.UserAddress)
	if err != nil {
		return nil, err
	}

	out := make(map[ledger.Handle]any, len(plain))
	for h, ct := range plain {
		value, err := sealAndOpen(ct.value, pub, priv)
		if err != nil {
			return nil, err
		}
		out[h] = shape(value, ct.bits)
	}

	slog.Debug("Devnet decrypt", "handles", len(out), "user", params.UserAddress)
	return out, nil
}

func (c *Chain) readForUser(requests []ledger.DecryptRequest, user string) (map[ledger.Handle]ciphertext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.decryptFailure; err != nil {
		c.decryptFailure = nil
		return nil, err
	}

	plain := make(map[ledger.Handle]ciphertext, len(requests))
	for _, req := range requests {
		ct, ok := c.ciphertexts[req.Handle]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, req.Handle)
		}
		if !ct.allowed(user) {
			return nil, fmt.Errorf("handle %s: %w", req.Handle, ledger.ErrUnauthorized)
		}
		plain[req.Handle] = ciphertext{value: ct.value, bits: ct.bits}
	}
	return plain, nil
}

func verifyGrant(grant ledger.DecryptionGrant, signature []byte) error {
	signer, err := keypair.ParseAddress(grant.UserAddress)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnknownAccount, err)
	}
	payload, err := grant.SigningPayload()
	if err != nil {
		return err
	}
	if err := signer.Verify(payload, signature); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return nil
}

func parseKeypair(publicKey, privateKey string) (*[32]byte, *[32]byte, error) {
	pubBytes, err := hex.DecodeString(publicKey)
	if err != nil || len(pubBytes) != 32 {
		return nil, nil, fmt.Errorf("%w: malformed public key", ErrKeypairMismatch)
	}
	privBytes, err := hex.DecodeString(privateKey)
	if err != nil || len(privBytes) != 32 {
		return nil, nil, fmt.Errorf("%w: malformed private key", ErrKeypairMismatch)
	}

	derived, err := curve25519.X25519(privBytes, curve25519.Basepoint)
	if err != nil || !bytes.Equal(derived, pubBytes) {
		return nil, nil, ErrKeypairMismatch
	}

	var pub, priv [32]byte
	copy(pub[:], pubBytes)
	copy(priv[:], privBytes)
	return &pub, &priv, nil
}

// sealAndOpen reencrypts a value to the session key and opens it again, the
// way a relayer's response is decrypted client side
func sealAndOpen(value uint64, pub, priv *[32]byte) (uint64, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], value)

	sealed, err := box.SealAnonymous(nil, msg[:], pub, rand.Reader)
	if err != nil {
		return 0, fmt.Errorf("failed to seal value: %w", err)
	}
	opened, ok := box.OpenAnonymous(nil, sealed, pub, priv)
	if !ok || len(opened) != 8 {
		return 0, errors.New("failed to open sealed value")
	}
	return binary.BigEndian.Uint64(opened), nil
}

func shape(value uint64, bits int) any {
	if bits == 8 {
		return value
	}
	return strconv.FormatUint(value, 10)
}
