package devnet

import (
	"context"
	"fmt"

	"github.com/zeebo/blake3"

	"zblog/internal/ledger"
)

type inputValue struct {
	value uint64
	bits  int
}

type encryptedInput struct {
	chain    *Chain
	contract string
	user     string
	values   []inputValue
}

// CreateEncryptedInput starts an input batch bound to contractAddress and userAddress
func (c *Chain) CreateEncryptedInput(contractAddress, userAddress string) ledger.EncryptedInput {
	return &encryptedInput{chain: c, contract: contractAddress, user: userAddress}
}

func (in *encryptedInput) Add32(value uint32) ledger.EncryptedInput {
	in.values = append(in.values, inputValue{value: uint64(value), bits: 32})
	return in
}

func (in *encryptedInput) Add8(value uint8) ledger.EncryptedInput {
	in.values = append(in.values, inputValue{value: uint64(value), bits: 8})
	return in
}

// Encrypt registers every value as an input ciphertext owned by the user and
// returns the handles with a proof binding them to the contract and user
func (in *encryptedInput) Encrypt(ctx context.Context) (*ledger.EncryptedBundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in.contract != in.chain.address {
		return nil, fmt.Errorf("encrypt input: unknown contract %q", in.contract)
	}

	c := in.chain
	c.mu.Lock()
	defer c.mu.Unlock()

	handles := make([]ledger.Handle, 0, len(in.values))
	for _, v := range in.values {
		h := newHandle()
		c.ciphertexts[h] = &ciphertext{
			value:      v.value,
			bits:       v.bits,
			acl:        map[string]struct{}{},
			inputOwner: in.user,
		}
		handles = append(handles, h)
	}

	return &ledger.EncryptedBundle{
		Handles:    handles,
		InputProof: inputProof(in.contract, in.user, handles),
	}, nil
}

func inputProof(contract, user string, handles []ledger.Handle) []byte {
	h := blake3.New()
	_, _ = h.Write([]byte(contract))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(user))
	for _, handle := range handles {
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(handle))
	}
	return h.Sum(nil)
}
