package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zblog/internal/ledger"
)

const (
	contractA = "CA3D5KRYM6CB7OWQ6TWYRR3Z4T7GNZLKERYNZGGA5SOAOPIFY6YQGAXE"
	contractB = "CBQHNAXSI55GX2GN6D67GK7BHVPSLJUGZQEU7WJ5LKR5PNUCGLIMAO4K"
)

type fakeKeys struct {
	n atomic.Int32
}

func (f *fakeKeys) GenerateKeypair() (ledger.Keypair, error) {
	i := f.n.Add(1)
	return ledger.Keypair{PublicKey: fmt.Sprintf("pub-%d", i), PrivateKey: fmt.Sprintf("priv-%d", i)}, nil
}

type countingSigner struct {
	*KeypairSigner
	calls   atomic.Int32
	decline bool
}

func (s *countingSigner) SignGrant(ctx context.Context, payload []byte) ([]byte, error) {
	s.calls.Add(1)
	if s.decline {
		return nil, errors.New("user rejected the request")
	}
	return s.KeypairSigner.SignGrant(ctx, payload)
}

func newSigner(t *testing.T) *countingSigner {
	t.Helper()
	kp, err := RandomKeypairSigner()
	require.NoError(t, err)
	return &countingSigner{KeypairSigner: kp}
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newManager(storage Storage) (*Manager, *clock) {
	clk := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewManager(&fakeKeys{}, storage, Config{NetworkPassphrase: "Test SDF Network ; September 2015"}).WithClock(clk.Now)
	return m, clk
}

func TestLoadOrSignReusesValidSignature(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(NewMemoryStorage())
	signer := newSigner(t)

	first, err := m.LoadOrSign(ctx, []string{contractA}, signer)
	require.NoError(t, err)
	second, err := m.LoadOrSign(ctx, []string{contractA}, signer)
	require.NoError(t, err)

	assert.Equal(t, int32(1), signer.calls.Load())
	assert.Equal(t, first, second)
	assert.Equal(t, DefaultDurationDays, first.DurationDays)
	assert.Equal(t, signer.Address(), first.UserAddress)
}

func TestLoadOrSignSignatureVerifiesAgainstGrant(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(NewMemoryStorage())
	signer := newSigner(t)

	sig, err := m.LoadOrSign(ctx, []string{contractB, contractA}, signer)
	require.NoError(t, err)

	grant := ledger.DecryptionGrant{
		NetworkPassphrase: "Test SDF Network ; September 2015",
		PublicKey:         sig.PublicKey,
		ContractAddresses: sig.ContractAddresses,
		UserAddress:       sig.UserAddress,
		StartTimestamp:    sig.StartTimestamp,
		DurationDays:      sig.DurationDays,
	}
	payload, err := grant.SigningPayload()
	require.NoError(t, err)

	verifier, err := keypair.ParseAddress(signer.Address())
	require.NoError(t, err)
	assert.NoError(t, verifier.Verify(payload, sig.Signature))
}

func TestLoadOrSignExpiredSignatureIsResigned(t *testing.T) {
	ctx := context.Background()
	m, clk := newManager(NewMemoryStorage())
	signer := newSigner(t)

	first, err := m.LoadOrSign(ctx, []string{contractA}, signer)
	require.NoError(t, err)

	clk.Advance(time.Duration(DefaultDurationDays) * 24 * time.Hour)

	second, err := m.LoadOrSign(ctx, []string{contractA}, signer)
	require.NoError(t, err)
	assert.Equal(t, int32(2), signer.calls.Load())
	assert.NotEqual(t, first.PublicKey, second.PublicKey)
	assert.True(t, second.IsValid(clk.Now()))

	_, err = m.LoadOrSign(ctx, []string{contractA}, signer)
	require.NoError(t, err)
	assert.Equal(t, int32(2), signer.calls.Load(), "re-signed exactly once")
}

func TestLoadOrSignDifferentScopeSignsAgain(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(NewMemoryStorage())
	alice := newSigner(t)
	bob := newSigner(t)

	_, err := m.LoadOrSign(ctx, []string{contractA}, alice)
	require.NoError(t, err)
	_, err = m.LoadOrSign(ctx, []string{contractA, contractB}, alice)
	require.NoError(t, err)
	assert.Equal(t, int32(2), alice.calls.Load())

	_, err = m.LoadOrSign(ctx, []string{contractA}, bob)
	require.NoError(t, err)
	assert.Equal(t, int32(1), bob.calls.Load())
}

func TestLoadOrSignAddressOrderDoesNotMatter(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(NewMemoryStorage())
	signer := newSigner(t)

	_, err := m.LoadOrSign(ctx, []string{contractA, contractB}, signer)
	require.NoError(t, err)
	_, err = m.LoadOrSign(ctx, []string{contractB, contractA, contractB}, signer)
	require.NoError(t, err)

	assert.Equal(t, int32(1), signer.calls.Load())
}

func TestLoadOrSignDeclined(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	m, _ := newManager(storage)
	signer := newSigner(t)
	signer.decline = true

	sig, err := m.LoadOrSign(ctx, []string{contractA}, signer)
	assert.Nil(t, sig)
	assert.ErrorIs(t, err, ErrSignatureUnavailable)
	assert.Zero(t, storage.Len())

	_, err = m.LoadOrSign(ctx, []string{contractA}, nil)
	assert.ErrorIs(t, err, ErrSignatureUnavailable)
}

func TestLoadOrSignDropsUndecodableEntry(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	m, _ := newManager(storage)
	signer := newSigner(t)

	key := CacheKey(signer.Address(), []string{contractA})
	require.NoError(t, storage.SetItem(ctx, key, "{not json", 0))

	sig, err := m.LoadOrSign(ctx, []string{contractA}, signer)
	require.NoError(t, err)
	assert.Equal(t, int32(1), signer.calls.Load())

	raw, ok, err := storage.GetItem(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, sig.PublicKey)
}

func TestLoadOrSignConcurrentMissesSignOnce(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(NewMemoryStorage())
	signer := newSigner(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.LoadOrSign(ctx, []string{contractA}, signer)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), signer.calls.Load())
}

func TestLoadOrSignNoAddresses(t *testing.T) {
	m, _ := newManager(NewMemoryStorage())
	_, err := m.LoadOrSign(context.Background(), []string{" "}, newSigner(t))
	assert.ErrorIs(t, err, ErrNoContracts)
}

func TestSignatureValidityWindow(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	sig := &DecryptionSignature{
		ContractAddresses: []string{contractA},
		UserAddress:       "GUSER",
		StartTimestamp:    start.Unix(),
		DurationDays:      1,
	}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before start", start.Add(-time.Second), false},
		{"at start", start, true},
		{"last second", start.Add(24*time.Hour - time.Second), true},
		{"at expiry", start.Add(24 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sig.IsValid(tt.now))
		})
	}

	assert.True(t, sig.Covers(contractA, "GUSER", start))
	assert.False(t, sig.Covers(contractB, "GUSER", start))
	assert.False(t, sig.Covers(contractA, "GOTHER", start))

	var nilSig *DecryptionSignature
	assert.False(t, nilSig.IsValid(start))
}

func TestMemoryStorageTTL(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	storage.now = func() time.Time { return now }

	require.NoError(t, storage.SetItem(ctx, "k", "v", time.Minute))
	v, ok, err := storage.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	now = now.Add(time.Minute)
	_, ok, err = storage.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, storage.SetItem(ctx, "k", "v", 0))
	require.NoError(t, storage.RemoveItem(ctx, "k"))
	_, ok, _ = storage.GetItem(ctx, "k")
	assert.False(t, ok)
}

type gatedSigner struct {
	*countingSigner
	started chan struct{}
	release chan struct{}
}

func (s *gatedSigner) SignGrant(ctx context.Context, payload []byte) ([]byte, error) {
	if s.calls.Load() == 0 {
		close(s.started)
	}
	select {
	case <-ctx.Done():
		s.calls.Add(1)
		return nil, ctx.Err()
	case <-s.release:
	}
	return s.countingSigner.SignGrant(ctx, payload)
}

func TestLoadOrSignCancelledCallerDoesNotFailOthers(t *testing.T) {
	m, _ := newManager(NewMemoryStorage())
	signer := &gatedSigner{
		countingSigner: newSigner(t),
		started:        make(chan struct{}),
		release:        make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := m.LoadOrSign(ctx, []string{contractA}, signer)
		firstErr <- err
	}()

	<-signer.started
	cancel()
	err := <-firstErr
	assert.ErrorIs(t, err, ErrSignatureUnavailable)
	assert.ErrorIs(t, err, context.Canceled)

	type result struct {
		sig *DecryptionSignature
		err error
	}
	second := make(chan result, 1)
	go func() {
		sig, err := m.LoadOrSign(context.Background(), []string{contractA}, signer)
		second <- result{sig, err}
	}()

	time.Sleep(20 * time.Millisecond)
	close(signer.release)

	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, signer.Address(), res.sig.UserAddress)
	assert.Equal(t, int32(1), signer.calls.Load(), "the shared signing call survives the first caller's cancellation")
}
