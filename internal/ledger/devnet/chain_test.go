package devnet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zblog/internal/ledger"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func newChain(t *testing.T, opts ...Option) (*Chain, *testClock) {
	t.Helper()
	clk := &testClock{t: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)}
	c, err := New(append([]Option{WithClock(clk.Now)}, opts...)...)
	require.NoError(t, err)
	return c, clk
}

func createPost(t *testing.T, c *Chain, author string, words [4]uint32, category uint8) uint64 {
	t.Helper()
	ctx := context.Background()

	bundle, err := c.CreateEncryptedInput(c.Address(), author).
		Add32(words[0]).Add32(words[1]).Add32(words[2]).Add32(words[3]).
		Add8(category).Add8(0).Add32(0).
		Encrypt(ctx)
	require.NoError(t, err)
	require.Len(t, bundle.Handles, 7)

	receipt, err := c.CreatePost(ctx, ledger.TxOpts{From: author}, ledger.CreatePostInput{
		ContentPart1: bundle.Handles[0],
		ContentPart2: bundle.Handles[1],
		ContentPart3: bundle.Handles[2],
		Length:       bundle.Handles[3],
		Category:     bundle.Handles[4],
		AccessLevel:  bundle.Handles[5],
		Price:        bundle.Handles[6],
		InputProof:   bundle.InputProof,
	})
	require.NoError(t, err)
	require.True(t, receipt.Successful())

	log, ok := receipt.FindLog(ledger.EventPostCreated)
	require.True(t, ok)
	id, err := ledger.ClearValueToUint64(log.Args["postId"])
	require.NoError(t, err)
	return id
}

func signedParams(t *testing.T, c *Chain, kp *keypair.Full, start time.Time, days int) ledger.UserDecryptParams {
	t.Helper()
	session, err := c.GenerateKeypair()
	require.NoError(t, err)

	grant := ledger.DecryptionGrant{
		NetworkPassphrase: c.NetworkPassphrase(),
		PublicKey:         session.PublicKey,
		ContractAddresses: []string{c.Address()},
		UserAddress:       kp.Address(),
		StartTimestamp:    start.Unix(),
		DurationDays:      days,
	}
	payload, err := grant.SigningPayload()
	require.NoError(t, err)
	sig, err := kp.Sign(payload)
	require.NoError(t, err)

	return ledger.UserDecryptParams{
		PrivateKey:        session.PrivateKey,
		PublicKey:         session.PublicKey,
		Signature:         sig,
		ContractAddresses: grant.ContractAddresses,
		UserAddress:       grant.UserAddress,
		StartTimestamp:    grant.StartTimestamp,
		DurationDays:      days,
	}
}

func requests(c *Chain, handles ...ledger.Handle) []ledger.DecryptRequest {
	out := make([]ledger.DecryptRequest, len(handles))
	for i, h := range handles {
		out[i] = ledger.DecryptRequest{Handle: h, ContractAddress: c.Address()}
	}
	return out
}

func TestContractAddressIsContractStrkey(t *testing.T) {
	c, _ := newChain(t)
	raw, err := strkey.Decode(strkey.VersionByteContract, c.Address())
	require.NoError(t, err)
	assert.Len(t, raw, 32)
}

func TestCreateViewLikeAndDecrypt(t *testing.T) {
	ctx := context.Background()
	c, clk := newChain(t)
	author := keypair.MustRandom()

	id := createPost(t, c, author.Address(), [4]uint32{0x636c6557, 0x20656d6f, 0x7a206f74, 16}, 3)
	assert.Equal(t, uint64(1), id)

	total, err := c.GetTotalPosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)

	ids, err := c.GetUserPosts(ctx, author.Address())
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, ids)

	before, err := c.GetEncryptedViewCount(ctx, id)
	require.NoError(t, err)

	receipt, err := c.ViewPost(ctx, ledger.TxOpts{From: author.Address()}, id)
	require.NoError(t, err)
	require.True(t, receipt.Successful())
	_, ok := receipt.FindLog(ledger.EventPostViewed)
	assert.True(t, ok)

	_, err = c.LikePost(ctx, ledger.TxOpts{From: author.Address()}, id)
	require.NoError(t, err)
	_, err = c.LikePost(ctx, ledger.TxOpts{From: author.Address()}, id)
	require.NoError(t, err)

	views, err := c.GetEncryptedViewCount(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, before, views, "counter updates allocate a new handle")
	likes, err := c.GetEncryptedLikeCount(ctx, id)
	require.NoError(t, err)
	content, err := c.GetEncryptedContent(ctx, id)
	require.NoError(t, err)
	category, err := c.GetEncryptedCategory(ctx, id)
	require.NoError(t, err)

	params := signedParams(t, c, author, clk.t, 1)
	handles := append(content.Handles(), category, views, likes)
	values, err := c.UserDecrypt(ctx, requests(c, handles...), params)
	require.NoError(t, err)

	assert.Equal(t, "1668048215", values[content.Part1])
	assert.Equal(t, "16", values[content.Length])
	assert.Equal(t, uint64(3), values[category])
	assert.Equal(t, "1", values[views])
	assert.Equal(t, "2", values[likes])
}

func TestCreatePostRejectsForeignSender(t *testing.T) {
	ctx := context.Background()
	c, _ := newChain(t)
	author := keypair.MustRandom().Address()
	other := keypair.MustRandom().Address()

	bundle, err := c.CreateEncryptedInput(c.Address(), author).
		Add32(1).Add32(2).Add32(3).Add32(4).Add8(0).Add8(0).Add32(0).
		Encrypt(ctx)
	require.NoError(t, err)

	_, err = c.CreatePost(ctx, ledger.TxOpts{From: other}, ledger.CreatePostInput{
		ContentPart1: bundle.Handles[0],
		ContentPart2: bundle.Handles[1],
		ContentPart3: bundle.Handles[2],
		Length:       bundle.Handles[3],
		Category:     bundle.Handles[4],
		AccessLevel:  bundle.Handles[5],
		Price:        bundle.Handles[6],
		InputProof:   bundle.InputProof,
	})
	assert.ErrorIs(t, err, ErrInvalidProof)
}

func TestCreatePostRejectsWrongWidths(t *testing.T) {
	ctx := context.Background()
	c, _ := newChain(t)
	author := keypair.MustRandom().Address()

	bundle, err := c.CreateEncryptedInput(c.Address(), author).
		Add32(1).Add32(2).Add32(3).Add32(4).Add32(0).Add8(0).Add32(0).
		Encrypt(ctx)
	require.NoError(t, err)

	_, err = c.CreatePost(ctx, ledger.TxOpts{From: author}, ledger.CreatePostInput{
		ContentPart1: bundle.Handles[0],
		ContentPart2: bundle.Handles[1],
		ContentPart3: bundle.Handles[2],
		Length:       bundle.Handles[3],
		Category:     bundle.Handles[4],
		AccessLevel:  bundle.Handles[5],
		Price:        bundle.Handles[6],
		InputProof:   bundle.InputProof,
	})
	assert.ErrorIs(t, err, ErrInvalidProof)
}

func TestUserDecryptEnforcesGrant(t *testing.T) {
	ctx := context.Background()
	c, clk := newChain(t)
	author := keypair.MustRandom()
	id := createPost(t, c, author.Address(), [4]uint32{1, 2, 3, 4}, 0)
	category, err := c.GetEncryptedCategory(ctx, id)
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		params := signedParams(t, c, author, clk.t.Add(-48*time.Hour), 1)
		_, err := c.UserDecrypt(ctx, requests(c, category), params)
		assert.ErrorIs(t, err, ErrGrantExpired)
		assert.ErrorIs(t, err, ledger.ErrGrantRejected)
	})

	t.Run("not yet started", func(t *testing.T) {
		params := signedParams(t, c, author, clk.t.Add(time.Hour), 1)
		_, err := c.UserDecrypt(ctx, requests(c, category), params)
		assert.ErrorIs(t, err, ErrGrantExpired)
	})

	t.Run("tampered signature", func(t *testing.T) {
		params := signedParams(t, c, author, clk.t, 1)
		params.DurationDays = 2
		_, err := c.UserDecrypt(ctx, requests(c, category), params)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("foreign contract", func(t *testing.T) {
		params := signedParams(t, c, author, clk.t, 1)
		reqs := []ledger.DecryptRequest{{Handle: category, ContractAddress: "COTHER"}}
		_, err := c.UserDecrypt(ctx, reqs, params)
		assert.ErrorIs(t, err, ErrContractNotInGrant)
	})

	t.Run("mismatched keypair", func(t *testing.T) {
		params := signedParams(t, c, author, clk.t, 1)
		other, err := c.GenerateKeypair()
		require.NoError(t, err)
		params.PrivateKey = other.PrivateKey
		_, err = c.UserDecrypt(ctx, requests(c, category), params)
		assert.ErrorIs(t, err, ErrKeypairMismatch)
	})

	t.Run("not in ACL", func(t *testing.T) {
		stranger := keypair.MustRandom()
		params := signedParams(t, c, stranger, clk.t, 1)
		_, err := c.UserDecrypt(ctx, requests(c, category), params)
		assert.ErrorIs(t, err, ledger.ErrUnauthorized)
	})
}

func TestGrantAccess(t *testing.T) {
	ctx := context.Background()
	c, clk := newChain(t)
	author := keypair.MustRandom()
	reader := keypair.MustRandom()
	id := createPost(t, c, author.Address(), [4]uint32{1, 2, 3, 4}, 5)

	_, err := c.GrantAccess(ctx, ledger.TxOpts{From: reader.Address()}, id, reader.Address())
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	_, err = c.GrantAccess(ctx, ledger.TxOpts{From: author.Address()}, id, "not-an-address")
	assert.ErrorIs(t, err, ErrUnknownAccount)

	receipt, err := c.GrantAccess(ctx, ledger.TxOpts{From: author.Address()}, id, reader.Address())
	require.NoError(t, err)
	log, ok := receipt.FindLog(ledger.EventAccessGranted)
	require.True(t, ok)
	assert.Equal(t, reader.Address(), log.Args["reader"])

	content, err := c.GetEncryptedContent(ctx, id)
	require.NoError(t, err)
	category, err := c.GetEncryptedCategory(ctx, id)
	require.NoError(t, err)
	views, err := c.GetEncryptedViewCount(ctx, id)
	require.NoError(t, err)

	params := signedParams(t, c, reader, clk.t, 1)
	values, err := c.UserDecrypt(ctx, requests(c, append(content.Handles(), category)...), params)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), values[category])

	_, err = c.UserDecrypt(ctx, requests(c, views), params)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized, "counters stay private to the author")
}

func TestFailureHooks(t *testing.T) {
	ctx := context.Background()
	c, clk := newChain(t, WithoutCreateEvents())
	author := keypair.MustRandom()

	bundle, err := c.CreateEncryptedInput(c.Address(), author.Address()).
		Add32(1).Add32(2).Add32(3).Add32(4).Add8(0).Add8(0).Add32(0).
		Encrypt(ctx)
	require.NoError(t, err)
	receipt, err := c.CreatePost(ctx, ledger.TxOpts{From: author.Address()}, ledger.CreatePostInput{
		ContentPart1: bundle.Handles[0],
		ContentPart2: bundle.Handles[1],
		ContentPart3: bundle.Handles[2],
		Length:       bundle.Handles[3],
		Category:     bundle.Handles[4],
		AccessLevel:  bundle.Handles[5],
		Price:        bundle.Handles[6],
		InputProof:   bundle.InputProof,
	})
	require.NoError(t, err)
	assert.True(t, receipt.Successful())
	_, ok := receipt.FindLog(ledger.EventPostCreated)
	assert.False(t, ok)

	c.RevertNext("viewPost")
	receipt, err = c.ViewPost(ctx, ledger.TxOpts{From: author.Address()}, 1)
	require.NoError(t, err)
	assert.False(t, receipt.Successful())

	boom := errors.New("rpc unavailable")
	c.FailGetPost(1, boom)
	_, err = c.GetPost(ctx, 1)
	assert.ErrorIs(t, err, boom)
	c.FailGetPost(1, nil)
	_, err = c.GetPost(ctx, 1)
	assert.NoError(t, err)

	_, err = c.GetPost(ctx, 99)
	assert.ErrorIs(t, err, ledger.ErrPostNotFound)

	views, err := c.GetEncryptedViewCount(ctx, 1)
	require.NoError(t, err)
	c.FailNextDecrypt(boom)
	params := signedParams(t, c, author, clk.t, 1)
	_, err = c.UserDecrypt(ctx, requests(c, views), params)
	assert.ErrorIs(t, err, boom)

	values, err := c.UserDecrypt(ctx, requests(c, views), params)
	require.NoError(t, err)
	assert.Equal(t, "0", values[views], "reverted view left the counter untouched")
}
